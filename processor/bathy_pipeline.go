package processor

import (
	"context"
	"fmt"
	"time"

	"github.com/nci/gbathy/metrics"
	"github.com/nci/gbathy/utils"
	"go.uber.org/zap"
)

// DepthEvaluator turns year plans into depth maps, evaluating up to
// Concurrency years at once.
type DepthEvaluator struct {
	Context     context.Context
	In          chan *YearPlan
	Out         chan *DepthMap
	Error       chan error
	Evaluator   YearEvaluator
	Concurrency int
	Log         *zap.SugaredLogger
	Metrics     *metrics.RunCollector
}

func NewDepthEvaluator(ctx context.Context, evaluator YearEvaluator, concurrency int, log *zap.SugaredLogger, collector *metrics.RunCollector, errChan chan error) *DepthEvaluator {
	if concurrency < 1 {
		concurrency = 1
	}
	return &DepthEvaluator{
		Context:     ctx,
		In:          make(chan *YearPlan, 100),
		Out:         make(chan *DepthMap, 100),
		Error:       errChan,
		Evaluator:   evaluator,
		Concurrency: concurrency,
		Log:         utils.OrNop(log),
		Metrics:     collector,
	}
}

func (de *DepthEvaluator) Run() {
	defer close(de.Out)

	limiter := NewConcLimiter(de.Concurrency)
	for plan := range de.In {
		if de.checkCancellation() {
			break
		}

		if !limiter.Acquire(de.Context) {
			de.checkCancellation()
			break
		}
		go func(plan *YearPlan) {
			defer limiter.Release()
			de.evaluate(plan)
		}(plan)
	}
	limiter.Wait()

	// unblock the splitter after a cancellation
	for range de.In {
	}
}

func (de *DepthEvaluator) evaluate(plan *YearPlan) {
	t0 := time.Now()
	info := &metrics.YearInfo{Year: plan.Year, NumImages: plan.Series.Len()}
	defer de.Metrics.AddYear(info)

	d, err := de.Evaluator.Evaluate(de.Context, plan)
	info.Duration = time.Since(t0)
	if err != nil {
		info.Error = err.Error()
		de.Log.Errorw("year evaluation failed", "year", plan.Year, "error", err)
		de.sendError(err)
		return
	}

	info.NumBands = d.BandCount
	info.Kept = d.BandCount > 0
	info.DegeneratePixels = d.Degenerate
	if d.RasterImage != nil {
		info.Worker = d.Properties["worker"]
	}
	for _, isLand := range d.Land {
		if isLand {
			info.LandPixels++
		}
	}
	if depth := d.Depth(); depth != nil {
		info.DepthMean, info.DepthStdDev, info.ValidPixels = metrics.DepthSummary(depth.Data, depth.Valid)
	}

	de.Log.Debugw("year evaluated", "year", plan.Year, "images", d.ImageCount, "valid", info.ValidPixels, "degenerate", d.Degenerate, "duration", info.Duration)
	de.Out <- d
}

func (de *DepthEvaluator) sendError(err error) {
	select {
	case de.Error <- err:
	default:
	}
}

func (de *DepthEvaluator) checkCancellation() bool {
	select {
	case <-de.Context.Done():
		de.sendError(fmt.Errorf("Depth evaluator: context has been cancel: %v", de.Context.Err()))
		return true
	default:
		return false
	}
}

// YearAssembler gathers every depth map of a run into the year series.
type YearAssembler struct {
	In    chan *DepthMap
	Out   chan []*DepthMap
	Error chan error
}

func NewYearAssembler(errChan chan error) *YearAssembler {
	return &YearAssembler{
		In:    make(chan *DepthMap, 100),
		Out:   make(chan []*DepthMap, 1),
		Error: errChan,
	}
}

func (ya *YearAssembler) Run() {
	defer close(ya.Out)

	var maps []*DepthMap
	for d := range ya.In {
		maps = append(maps, d)
	}
	ya.Out <- AssembleYears(maps)
}

// BathyPipeline splits the merged image pool into years, evaluates
// each year and assembles the resulting depth series.
type BathyPipeline struct {
	Context     context.Context
	Error       chan error
	StartYear   int
	FinalYear   int
	Params      ModelParams
	Evaluator   YearEvaluator
	Concurrency int
	Log         *zap.SugaredLogger
	Metrics     *metrics.RunCollector
}

func NewBathyPipeline(ctx context.Context, cfg *utils.Config, evaluator YearEvaluator, log *zap.SugaredLogger, collector *metrics.RunCollector, errChan chan error) (*BathyPipeline, error) {
	params, err := ModelParamsFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	if evaluator == nil {
		evaluator = LocalEvaluator{}
	}
	if errChan == nil {
		errChan = make(chan error, 100)
	}
	return &BathyPipeline{
		Context:     ctx,
		Error:       errChan,
		StartYear:   cfg.StartYear,
		FinalYear:   cfg.FinalYear,
		Params:      params,
		Evaluator:   evaluator,
		Concurrency: cfg.Workers.Concurrency,
		Log:         utils.OrNop(log),
		Metrics:     collector,
	}, nil
}

// Plans returns the deferred per year computations over pool without
// evaluating any of them.
func (bp *BathyPipeline) Plans(pool *ImageSeries) []*YearPlan {
	return SplitYears(pool, bp.StartYear, bp.FinalYear, bp.Params)
}

func (bp *BathyPipeline) Process(pool *ImageSeries) chan []*DepthMap {
	s := NewYearSplitter(bp.StartYear, bp.FinalYear, bp.Params, bp.Error)
	go func() {
		s.In <- pool
		close(s.In)
	}()

	e := NewDepthEvaluator(bp.Context, bp.Evaluator, bp.Concurrency, bp.Log, bp.Metrics, bp.Error)
	a := NewYearAssembler(bp.Error)

	e.In = s.Out
	a.In = e.Out

	go s.Run()
	go e.Run()
	go a.Run()

	return a.Out
}

// Run processes pool and waits for the assembled series. The first
// error reported by any stage fails the run.
func (bp *BathyPipeline) Run(pool *ImageSeries) ([]*DepthMap, error) {
	series := <-bp.Process(pool)
	select {
	case err := <-bp.Error:
		return nil, err
	default:
	}
	if err := bp.Context.Err(); err != nil {
		return nil, err
	}
	return series, nil
}

// BuildPool masks and harmonises the catalog series of each generation
// and merges them into one pool. Generations without a series are
// skipped.
func BuildPool(specs []GenerationSpec, seriesByGen map[string]*ImageSeries) *ImageSeries {
	var parts []*HarmonizedSeries
	for _, spec := range specs {
		s, ok := seriesByGen[spec.Name]
		if !ok || s == nil {
			continue
		}
		parts = append(parts, spec.Prepare(s))
	}
	return MergeSeries(parts...)
}
