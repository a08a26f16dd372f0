package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"

	"github.com/nci/gbathy/catalog"
	extr "github.com/nci/gbathy/crawl/extractor"
	"github.com/nci/gbathy/utils"
	"go.uber.org/zap"
)

var (
	rootDir       = flag.String("root", ".", "directory tree holding the scene manifests")
	conc          = flag.Int("conc", 8, "number of concurrent directory readers")
	pattern       = flag.String("pattern", "", "crawl pattern expression over 'path' and 'type'")
	manifest      = flag.String("manifest", extr.DefaultManifestName, "file name of the scene manifests")
	followSymlink = flag.Bool("follow", false, "follow symbolic links")
	driver        = flag.String("driver", "", "scene index driver: sqlite or postgres; empty prints JSON lines")
	dsn           = flag.String("dsn", utils.DefaultCatalogDSN, "scene index data source name")
	verbose       = flag.Bool("v", false, "verbose logging")
)

func ensure(log *zap.SugaredLogger, err error) {
	if err != nil {
		log.Fatal(err)
	}
}

func main() {
	flag.Parse()

	log, err := utils.NewLogger(*verbose)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	expr, err := extr.ParsePatternExpression(*pattern)
	ensure(log, err)

	var records []*catalog.SceneRecord
	var sink func(*catalog.SceneRecord) error
	if len(*driver) == 0 {
		enc := json.NewEncoder(os.Stdout)
		sink = func(rec *catalog.SceneRecord) error {
			return enc.Encode(rec)
		}
	} else {
		sink = func(rec *catalog.SceneRecord) error {
			records = append(records, rec)
			return nil
		}
	}

	crawler := extr.NewSceneCrawler(*conc, expr, *followSymlink, *manifest, sink)
	if err := crawler.Crawl(*rootDir); err != nil {
		log.Errorf("crawl errors:\n%v", err)
	}

	if len(*driver) == 0 {
		return
	}

	ctx := context.Background()
	store, err := catalog.OpenIndex(ctx, *driver, *dsn)
	ensure(log, err)
	defer store.Close()

	ensure(log, store.Upsert(ctx, records...))
	log.Infow("scenes indexed", "count", len(records), "driver", *driver)
}
