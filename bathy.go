package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/nci/gbathy/catalog"
	"github.com/nci/gbathy/export"
	"github.com/nci/gbathy/metrics"
	"github.com/nci/gbathy/processor"
	"github.com/nci/gbathy/utils"
	"github.com/nci/gbathy/worker/depthservice"
	"go.uber.org/zap"
)

var (
	configFile   = flag.String("conf", "", "Bathymetry config file. The built in Landsat set up is used when empty.")
	regionFile   = flag.String("region", "", "GeoJSON feature of the region of interest. Overrides the config region.")
	bboxStr      = flag.String("bbox", "", "Region of interest as xmin,ymin,xmax,ymax in the imagery CRS.")
	selectedYear = flag.Int("year", 0, "Year also exported on its own. Overrides export.selected_year.")
	outDir       = flag.String("out", "", "Export directory. Overrides export.dir.")
	metricsDir   = flag.String("log_dir", "", "Run metrics directory, - for stdout. Overrides log.metrics_dir.")
	verbose      = flag.Bool("v", false, "Verbose mode for more outputs.")
)

func loadConfig() (*utils.Config, error) {
	cfg := utils.DefaultConfig()
	if len(*configFile) > 0 {
		var err error
		cfg, err = utils.LoadConfigFile(*configFile)
		if err != nil {
			return nil, err
		}
	}

	if *selectedYear > 0 {
		cfg.Export.SelectedYear = *selectedYear
	}
	if len(*outDir) > 0 {
		cfg.Export.Dir = *outDir
	}
	if len(*metricsDir) > 0 {
		cfg.Log.MetricsDir = *metricsDir
	}
	cfg.Log.Debug = cfg.Log.Debug || *verbose
	return cfg, nil
}

func loadRegion(cfg *utils.Config) (*catalog.Region, error) {
	switch {
	case len(*bboxStr) > 0:
		bbox, err := catalog.ParseBBox(*bboxStr)
		if err != nil {
			return nil, err
		}
		return catalog.RegionFromBBox(bbox), nil
	case len(*regionFile) > 0:
		return catalog.LoadRegion(*regionFile)
	case len(cfg.Region) > 0:
		return catalog.LoadRegion(cfg.Region)
	}
	return nil, fmt.Errorf("%w: no region of interest, set region, -region or -bbox", utils.ErrInvalidConfig)
}

func newMetricsLogger(log *zap.SugaredLogger, dir string, verbose bool) metrics.Logger {
	switch dir {
	case "":
		return nil
	case "-":
		return metrics.NewStdoutLogger(log)
	}

	maxLogFileSize := int64(0)
	if val, ok := os.LookupEnv("GBATHY_MAX_LOG_FILE_SIZE"); ok {
		valInt, e := strconv.ParseInt(val, 10, 64)
		if e == nil {
			maxLogFileSize = valInt
		} else {
			log.Errorf("invalid GBATHY_MAX_LOG_FILE_SIZE: %v", e)
		}
	}

	maxLogFiles := -1
	if val, ok := os.LookupEnv("GBATHY_MAX_LOG_FILES"); ok {
		valInt, e := strconv.ParseInt(val, 10, 32)
		if e == nil {
			maxLogFiles = int(valInt)
		} else {
			log.Errorf("invalid GBATHY_MAX_LOG_FILES: %v", e)
		}
	}
	return metrics.NewFileLogger(log, dir, maxLogFileSize, maxLogFiles, verbose)
}

// run queries the catalog, evaluates every year of the configured
// range and exports the kept years.
func run(ctx context.Context, cfg *utils.Config, region *catalog.Region, log *zap.SugaredLogger, collector *metrics.RunCollector) error {
	info := collector.Info
	info.StartYear, info.FinalYear, info.Chla, info.LandPolicy = cfg.StartYear, cfg.FinalYear, cfg.Chla, cfg.LandPolicy
	info.Catalog.Region = region.WKT()

	cat, closer, err := catalog.Open(ctx, cfg.Catalog)
	if err != nil {
		return err
	}
	defer closer.Close()

	filter, err := catalog.ParseFilter(cfg.Catalog.Filter)
	if err != nil {
		return err
	}

	grid := catalog.TargetGrid(region.BBox(), cfg.Export.CRS, cfg.Export.Scale)
	loader := catalog.NewLoader(cfg.Catalog.DataRoot, grid)
	source := catalog.NewSeriesSource(cat, loader, filter, region, log)

	t0 := time.Now()
	seriesByGen, removed, err := source.SeriesByGeneration(ctx, cfg)
	if err != nil {
		return err
	}
	info.Catalog.Duration = time.Since(t0)
	info.Catalog.NumRemoved = removed
	for gen, s := range seriesByGen {
		collector.SetScenes(gen, s.Len())
	}

	specs, err := processor.GenerationSpecs(cfg)
	if err != nil {
		return err
	}
	pool := processor.BuildPool(specs, seriesByGen)

	var evaluator processor.YearEvaluator
	if len(cfg.Workers.Addresses) > 0 {
		client, err := depthservice.NewClient(cfg.Workers.Addresses, grid)
		if err != nil {
			return err
		}
		defer client.Close()
		evaluator = client
		log.Infow("evaluating years on depth workers", "workers", cfg.Workers.Addresses)
	}

	bp, err := processor.NewBathyPipeline(ctx, cfg, evaluator, log, collector, nil)
	if err != nil {
		return err
	}
	series, err := bp.Run(pool)
	if err != nil {
		return err
	}
	log.Infow("depth series assembled", "years", len(series), "pool", pool.Len(), "width", grid.Width, "height", grid.Height)

	_, err = export.NewExporter(cfg.Export, log).Export(series)
	return err
}

func main() {
	flag.Parse()

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error in loading config: %v\n", err)
		os.Exit(1)
	}

	log, err := utils.NewLogger(cfg.Log.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	region, err := loadRegion(cfg)
	if err != nil {
		log.Fatalw("failed to load region", "error", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		<-signals
		log.Warn("interrupted, cancelling run")
		cancel()
	}()

	metricsLogger := newMetricsLogger(log, cfg.Log.MetricsDir, cfg.Log.Debug)
	collector := metrics.NewRunCollector(metricsLogger)

	err = run(ctx, cfg, region, log, collector)
	if err != nil {
		collector.Info.Error = err.Error()
	}
	collector.Log()
	if fl, ok := metricsLogger.(*metrics.FileLogger); ok {
		fl.Close()
	}

	if err != nil {
		log.Errorw("bathymetry run failed", "run_id", collector.Info.RunID, "error", err)
		os.Exit(1)
	}
	log.Infow("bathymetry run done", "run_id", collector.Info.RunID, "kept", collector.Info.NumKept)
}
