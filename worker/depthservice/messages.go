package depthservice

import (
	"sort"

	"github.com/nci/gbathy/processor"
)

type GridMsg struct {
	CRS          string    `msgpack:"crs"`
	GeoTransform []float64 `msgpack:"geotransform"`
	Width        int       `msgpack:"width"`
	Height       int       `msgpack:"height"`
}

func newGridMsg(g processor.Grid) GridMsg {
	return GridMsg{CRS: g.CRS, GeoTransform: g.GeoTransform, Width: g.Width, Height: g.Height}
}

func (g GridMsg) Grid() processor.Grid {
	return processor.Grid{CRS: g.CRS, GeoTransform: g.GeoTransform, Width: g.Width, Height: g.Height}
}

type ParamsMsg struct {
	Canonical        []string `msgpack:"canonical"`
	Chla             float64  `msgpack:"chla"`
	LandPolicy       string   `msgpack:"land_policy"`
	DegeneratePolicy string   `msgpack:"degenerate_policy"`
}

func (p ParamsMsg) ModelParams() (processor.ModelParams, error) {
	land, err := processor.ParseLandPolicy(p.LandPolicy)
	if err != nil {
		return processor.ModelParams{}, err
	}
	degenerate, err := processor.ParseDegeneratePolicy(p.DegeneratePolicy)
	if err != nil {
		return processor.ModelParams{}, err
	}
	return processor.ModelParams{Canonical: p.Canonical, Chla: p.Chla, LandPolicy: land, DegeneratePolicy: degenerate}, nil
}

// YearRequest asks a worker for the depth map of one year built from
// the listed scenes, keyed by generation.
type YearRequest struct {
	Year   int                 `msgpack:"year"`
	Scenes map[string][]string `msgpack:"scenes"`
	Grid   GridMsg             `msgpack:"grid"`
	Params ParamsMsg           `msgpack:"params"`
}

// NewYearRequest describes plan for a worker sampling onto grid.
func NewYearRequest(plan *processor.YearPlan, grid processor.Grid) *YearRequest {
	req := &YearRequest{
		Year:   plan.Year,
		Scenes: make(map[string][]string),
		Grid:   newGridMsg(grid),
		Params: ParamsMsg{
			Canonical:        plan.Params.Canonical,
			Chla:             plan.Params.Chla,
			LandPolicy:       plan.Params.LandPolicy.String(),
			DegeneratePolicy: plan.Params.DegeneratePolicy.String(),
		},
	}
	for _, ref := range plan.Series.Refs() {
		req.Scenes[ref.Generation] = append(req.Scenes[ref.Generation], ref.ID)
	}
	for gen := range req.Scenes {
		sort.Strings(req.Scenes[gen])
	}
	return req
}

type YearResult struct {
	Year       int                     `msgpack:"year"`
	ID         string                  `msgpack:"id"`
	Meta       processor.CompositeMeta `msgpack:"meta"`
	Grid       GridMsg                 `msgpack:"grid"`
	Properties map[string]string       `msgpack:"properties"`
	Depth      []float32               `msgpack:"depth"`
	Valid      []bool                  `msgpack:"valid"`
	Land       []bool                  `msgpack:"land"`
	Degenerate int                     `msgpack:"degenerate"`
	Worker     string                  `msgpack:"worker"`
}

func NewYearResult(d *processor.DepthMap, worker string) *YearResult {
	res := &YearResult{
		Year:       d.Year,
		Meta:       d.CompositeMeta,
		Land:       d.Land,
		Degenerate: d.Degenerate,
		Worker:     worker,
	}
	if d.RasterImage != nil {
		res.ID = d.ID
		res.Grid = newGridMsg(d.Grid)
		res.Properties = d.Properties
	}
	if depth := d.Depth(); depth != nil {
		res.Depth = depth.Data
		res.Valid = depth.Valid
	}
	return res
}

// DepthMap rebuilds the depth map carried by res. The worker name is
// kept in the "worker" property.
func (res *YearResult) DepthMap() *processor.DepthMap {
	props := make(map[string]string, len(res.Properties)+1)
	for k, v := range res.Properties {
		props[k] = v
	}
	if len(res.Worker) > 0 {
		props["worker"] = res.Worker
	}

	img := &processor.RasterImage{Grid: res.Grid.Grid(), ID: res.ID, Properties: props}
	if res.Depth != nil {
		img.Bands = []*processor.Band{{Name: processor.DepthBandName, Data: res.Depth, Valid: res.Valid}}
	}

	meta := res.Meta
	if meta.ImageIDs == nil {
		meta.ImageIDs = []string{}
	}
	return &processor.DepthMap{RasterImage: img, CompositeMeta: meta, Land: res.Land, Degenerate: res.Degenerate}
}
