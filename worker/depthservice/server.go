package depthservice

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/nci/gbathy/catalog"
	"github.com/nci/gbathy/processor"
	"github.com/nci/gbathy/utils"
	"go.uber.org/zap"
)

// Server computes year depth maps from its own view of the scene
// catalog. Generation masks and band mappings come from the server
// config, which may be swapped at runtime.
type Server struct {
	Pool    *ProcessPool
	Config  *atomic.Pointer[utils.Config]
	Catalog catalog.Catalog
	Name    string
	Log     *zap.SugaredLogger
}

func NewServer(config *atomic.Pointer[utils.Config], cat catalog.Catalog, poolSize int, name string, log *zap.SugaredLogger) *Server {
	s := &Server{Config: config, Catalog: cat, Name: name, Log: utils.OrNop(log)}
	s.Pool = CreateProcessPool(poolSize, s.Evaluate, s.Log)
	return s
}

func (s *Server) ComputeYear(ctx context.Context, in *YearRequest) (*YearResult, error) {
	task := NewTask(ctx, in)
	s.Pool.AddQueue(task)

	select {
	case out := <-task.Resp:
		return out, nil
	case err := <-task.Error:
		return nil, fmt.Errorf("Error in ops: %v", err)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Evaluate loads the requested scenes and runs the year pipeline.
func (s *Server) Evaluate(ctx context.Context, req *YearRequest) (*YearResult, error) {
	t0 := time.Now()

	cfg := *s.Config.Load()
	cfg.StartYear, cfg.FinalYear = req.Year, req.Year
	specs, err := processor.GenerationSpecs(&cfg)
	if err != nil {
		return nil, err
	}

	params, err := req.Params.ModelParams()
	if err != nil {
		return nil, err
	}

	loader := catalog.NewLoader(cfg.Catalog.DataRoot, req.Grid.Grid())
	start := time.Date(req.Year, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(req.Year+1, 1, 1, 0, 0, 0, 0, time.UTC).Add(-time.Nanosecond)

	known := make(map[string]bool, len(specs))
	for _, spec := range specs {
		known[spec.Name] = true
	}

	seriesByGen := make(map[string]*processor.ImageSeries)
	for gen, ids := range req.Scenes {
		if !known[gen] {
			return nil, fmt.Errorf("year %d: generation %s is not configured on worker %s", req.Year, gen, s.Name)
		}
		records, err := s.Catalog.Query(ctx, catalog.SceneQuery{Generation: gen, Start: start, End: end})
		if err != nil {
			return nil, err
		}

		wanted := make(map[string]bool, len(ids))
		for _, id := range ids {
			wanted[id] = true
		}
		var refs []*processor.ImageRef
		for _, rec := range records {
			if wanted[rec.ID] {
				refs = append(refs, loader.Ref(rec))
				delete(wanted, rec.ID)
			}
		}
		if len(wanted) > 0 {
			return nil, fmt.Errorf("year %d: %d %s scenes unknown to worker %s", req.Year, len(wanted), gen, s.Name)
		}
		seriesByGen[gen] = processor.NewImageSeries(refs...)
	}

	pool := processor.BuildPool(specs, seriesByGen)
	d, err := processor.EvaluateYear(ctx, &processor.YearPlan{Year: req.Year, Series: pool.FilterYear(req.Year), Params: params})
	if err != nil {
		return nil, err
	}

	s.Log.Infow("year computed", "year", req.Year, "images", d.ImageCount, "duration", time.Since(t0))
	return NewYearResult(d, s.Name), nil
}

func (s *Server) Close() {
	s.Pool.Close()
}
