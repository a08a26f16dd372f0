// Scene catalog API

package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"

	reuseport "github.com/kavu/go_reuseport"
	"github.com/nci/gbathy/catalog"
	"github.com/nci/gbathy/utils"
	"github.com/nci/gomemcache/memcache"
	"golang.org/x/net/netutil"
)

var (
	dbDriver = flag.String("driver", "sqlite", "scene index driver: sqlite or postgres")
	dbDSN    = flag.String("dsn", utils.DefaultCatalogDSN, "scene index data source name")
	dbPool   = flag.Int("pool", 8, "database pool size")
	dbLimit  = flag.Int("limit", 64, "database concurrent requests")
	connMax  = flag.Int("conn", 256, "maximum number of concurrent http connections")
	httpPort = flag.Int("port", 8080, "http port")
	mcURI    = flag.String("memcache", "", "memcache uri host:port")
	verbose  = flag.Bool("v", false, "verbose logging")
)

func main() {
	flag.Parse()

	log, err := utils.NewLogger(*verbose)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	log.Infof("driver %s dsn %s pool %d httpPort %d", *dbDriver, *dbDSN, *dbPool, *httpPort)

	store, err := catalog.OpenIndex(context.Background(), *dbDriver, *dbDSN)
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	if *dbDriver != "sqlite" {
		store.DB().SetMaxIdleConns(*dbPool)
		store.DB().SetMaxOpenConns(*dbLimit)
	}

	s := &apiServer{catalog: store, log: log}
	if *mcURI != "" {
		// lazy connection; errors returned in .Get
		s.mc = memcache.New(*mcURI)
	}

	listener, err := reuseport.Listen("tcp", fmt.Sprintf(":%d", *httpPort))
	if err != nil {
		log.Fatal(err)
	}
	listener = netutil.LimitListener(listener, *connMax)

	log.Fatal(http.Serve(listener, newRouter(s)))
}
