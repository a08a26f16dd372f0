package processor

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrSchemaMismatch   = errors.New("band schema mismatch")
	ErrDegenerateRatio  = errors.New("degenerate log ratio")
	ErrGridMismatch     = errors.New("raster grid mismatch")
	ErrBandNotFound     = errors.New("band not found")
	ErrYearNotAvailable = errors.New("year not available")
)

// Band is one layer of a RasterImage. Valid[i] is false where the band
// carries no value at pixel i.
type Band struct {
	Name  string
	Data  []float32
	Valid []bool
}

func NewBand(name string, size int) *Band {
	return &Band{Name: name, Data: make([]float32, size), Valid: make([]bool, size)}
}

func (b *Band) clone(name string) *Band {
	out := &Band{Name: name, Data: make([]float32, len(b.Data)), Valid: make([]bool, len(b.Valid))}
	copy(out.Data, b.Data)
	copy(out.Valid, b.Valid)
	return out
}

// Grid locates a raster in its native coordinate reference system.
// GeoTransform follows the GDAL convention.
type Grid struct {
	CRS           string
	GeoTransform  []float64
	Height, Width int
}

func (g Grid) Size() int {
	return g.Height * g.Width
}

func (g Grid) Equal(o Grid) bool {
	if g.Height != o.Height || g.Width != o.Width {
		return false
	}
	if len(g.GeoTransform) != len(o.GeoTransform) {
		return false
	}
	for i := range g.GeoTransform {
		if g.GeoTransform[i] != o.GeoTransform[i] {
			return false
		}
	}
	return true
}

// RasterImage is a multi band pixel grid. Images are never modified
// once built: every processing step returns a new one.
type RasterImage struct {
	Grid
	ID         string
	Generation string
	TimeStamp  time.Time
	Bands      []*Band
	Properties map[string]string
}

func (r *RasterImage) BandNames() []string {
	names := make([]string, len(r.Bands))
	for i, b := range r.Bands {
		names[i] = b.Name
	}
	return names
}

// Band looks a band up by name.
func (r *RasterImage) Band(name string) (*Band, error) {
	for _, b := range r.Bands {
		if b.Name == name {
			return b, nil
		}
	}
	return nil, fmt.Errorf("%w: %s in image %s", ErrBandNotFound, name, r.ID)
}

// derive returns a copy of the image header carrying the given bands.
func (r *RasterImage) derive(bands []*Band) *RasterImage {
	props := make(map[string]string, len(r.Properties))
	for k, v := range r.Properties {
		props[k] = v
	}
	return &RasterImage{
		Grid:       r.Grid,
		ID:         r.ID,
		Generation: r.Generation,
		TimeStamp:  r.TimeStamp,
		Bands:      bands,
		Properties: props,
	}
}

// ImageHeader is what the catalog knows about an image without reading
// its pixels.
type ImageHeader struct {
	ID         string
	Generation string
	TimeStamp  time.Time
	BBox       []float64
	BandNames  []string
}

type ImageLoader func(ctx context.Context) (*RasterImage, error)

type ImageTransform func(*RasterImage) (*RasterImage, error)

// ImageRef is a deferred image: the header is known, the pixels are
// computed by Load.
type ImageRef struct {
	ImageHeader
	load ImageLoader
}

func NewImageRef(header ImageHeader, load ImageLoader) *ImageRef {
	return &ImageRef{ImageHeader: header, load: load}
}

func (ref *ImageRef) Load(ctx context.Context) (*RasterImage, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	return ref.load(ctx)
}

func (ref *ImageRef) then(bandNames []string, fn ImageTransform) *ImageRef {
	header := ref.ImageHeader
	if bandNames != nil {
		header.BandNames = bandNames
	}
	load := ref.load
	return &ImageRef{
		ImageHeader: header,
		load: func(ctx context.Context) (*RasterImage, error) {
			img, err := load(ctx)
			if err != nil {
				return nil, err
			}
			return fn(img)
		},
	}
}

// CompositeMeta is the provenance attached to a yearly composite and
// carried over to the depth map derived from it.
type CompositeMeta struct {
	Year       int      `msgpack:"year" json:"year"`
	ImageIDs   []string `msgpack:"image_list" json:"image_list"`
	BandCount  int      `msgpack:"n_bands" json:"n_bands"`
	ImageCount int      `msgpack:"n_images" json:"n_images"`
}

// YearlyComposite is the per band median of every image acquired in
// Year. Land flags pixels suppressed by the land mask.
type YearlyComposite struct {
	*RasterImage
	CompositeMeta
	Land       []bool
	LandPolicy LandPolicy
}

// DepthMap is the single band depth raster of one year.
type DepthMap struct {
	*RasterImage
	CompositeMeta
	Land       []bool
	Degenerate int
}

// Depth returns the depth band, nil for an empty year.
func (d *DepthMap) Depth() *Band {
	if d.RasterImage == nil || len(d.Bands) == 0 {
		return nil
	}
	return d.Bands[0]
}

const DepthBandName = "depth"
