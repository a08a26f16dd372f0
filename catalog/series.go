package catalog

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/nci/gbathy/processor"
	"github.com/nci/gbathy/utils"
	"go.uber.org/zap"
)

// Open returns the catalog configured in cfg. The closer releases the
// SQL index, it is a no-op for the HTTP API.
func Open(ctx context.Context, cfg utils.CatalogConfig) (Catalog, io.Closer, error) {
	switch cfg.Driver {
	case "http":
		if len(cfg.APIAddress) == 0 {
			return nil, nil, fmt.Errorf("%w: catalog driver http needs api_address", utils.ErrInvalidConfig)
		}
		return NewAPIClient(cfg.APIAddress), io.NopCloser(nil), nil
	default:
		store, err := OpenIndex(ctx, cfg.Driver, cfg.DSN)
		if err != nil {
			return nil, nil, err
		}
		return store, store, nil
	}
}

// SeriesSource turns catalog queries into lazy image series.
type SeriesSource struct {
	Catalog Catalog
	Loader  *Loader
	Filter  *Filter
	Region  *Region
	Log     *zap.SugaredLogger
}

func NewSeriesSource(cat Catalog, loader *Loader, filter *Filter, region *Region, log *zap.SugaredLogger) *SeriesSource {
	return &SeriesSource{Catalog: cat, Loader: loader, Filter: filter, Region: region, Log: utils.OrNop(log)}
}

// Records returns the filtered scenes of gen acquired in [start, end]
// over the region, with the number of scenes the filter removed.
func (s *SeriesSource) Records(ctx context.Context, gen string, start, end time.Time) ([]*SceneRecord, int, error) {
	q := SceneQuery{Generation: gen, Start: start, End: end}
	if s.Region != nil {
		q.BBox = s.Region.BBox()
	}
	records, err := s.Catalog.Query(ctx, q)
	if err != nil {
		return nil, 0, fmt.Errorf("generation %s: %w", gen, err)
	}
	return s.Filter.Apply(records)
}

// Series wraps records into an image series; no pixel is read.
func (s *SeriesSource) Series(records []*SceneRecord) *processor.ImageSeries {
	refs := make([]*processor.ImageRef, len(records))
	for i, rec := range records {
		refs[i] = s.Loader.Ref(rec)
	}
	return processor.NewImageSeries(refs...)
}

// SeriesFor is the catalog series of one generation over the
// configured date range and region.
func (s *SeriesSource) SeriesFor(ctx context.Context, cfg *utils.Config, gen *utils.Generation) (*processor.ImageSeries, int, error) {
	start, end, ok := cfg.GenerationRange(gen)
	if !ok {
		return processor.NewImageSeries(), 0, nil
	}
	records, removed, err := s.Records(ctx, gen.Name, start, end)
	if err != nil {
		return nil, 0, err
	}
	s.Log.Infow("catalog query", "generation", gen.Name, "scenes", len(records), "filtered", removed)
	return s.Series(records), removed, nil
}

// SeriesByGeneration runs SeriesFor for every configured generation.
func (s *SeriesSource) SeriesByGeneration(ctx context.Context, cfg *utils.Config) (map[string]*processor.ImageSeries, int, error) {
	out := make(map[string]*processor.ImageSeries)
	removed := 0
	for i := range cfg.Generations {
		gen := &cfg.Generations[i]
		series, n, err := s.SeriesFor(ctx, cfg, gen)
		if err != nil {
			return nil, 0, err
		}
		out[gen.Name] = series
		removed += n
	}
	return out, removed, nil
}
