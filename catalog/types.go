package catalog

import (
	"context"
	"errors"
	"time"
)

var ErrUnknownDriver = errors.New("unknown catalog driver")

// BandFile is one band of a scene stored as a raw little endian raster
// of Width x Height samples. Path is relative to the scene manifest.
type BandFile struct {
	Name   string   `json:"name" yaml:"name"`
	Path   string   `json:"path" yaml:"path"`
	Type   string   `json:"type" yaml:"type"`
	NoData *float64 `json:"nodata,omitempty" yaml:"nodata,omitempty"`
}

// SceneRecord is the index entry of one acquisition.
type SceneRecord struct {
	ID           string      `json:"id" yaml:"id"`
	Generation   string      `json:"generation" yaml:"generation"`
	Collection   string      `json:"collection" yaml:"collection"`
	TimeStamp    time.Time   `json:"timestamp" yaml:"timestamp"`
	BBox         []float64   `json:"bbox" yaml:"bbox"`
	CRS          string      `json:"crs" yaml:"crs"`
	GeoTransform []float64   `json:"geotransform" yaml:"geotransform"`
	Width        int         `json:"width" yaml:"width"`
	Height       int         `json:"height" yaml:"height"`
	CloudCover   float64     `json:"cloud_cover" yaml:"cloud_cover"`
	Manifest     string      `json:"manifest,omitempty" yaml:"-"`
	Bands        []*BandFile `json:"bands" yaml:"bands"`
}

func (r *SceneRecord) BandNames() []string {
	names := make([]string, len(r.Bands))
	for i, b := range r.Bands {
		names[i] = b.Name
	}
	return names
}

// SceneQuery selects the scenes of one generation acquired in
// [Start, End] whose footprint overlaps BBox. Zero fields do not
// constrain the query.
type SceneQuery struct {
	Generation string
	Start      time.Time
	End        time.Time
	BBox       []float64
}

type Catalog interface {
	Query(ctx context.Context, q SceneQuery) ([]*SceneRecord, error)
}

type SceneResponse struct {
	Scenes []*SceneRecord `json:"scenes"`
	Error  string         `json:"error,omitempty"`
}
