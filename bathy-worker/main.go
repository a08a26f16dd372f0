package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	reuseport "github.com/kavu/go_reuseport"
	"github.com/nci/gbathy/catalog"
	"github.com/nci/gbathy/utils"
	pb "github.com/nci/gbathy/worker/depthservice"
	"google.golang.org/grpc"
)

func main() {
	configFile := flag.String("conf", "", "Bathymetry config file. The built in Landsat set up is used when empty.")
	port := flag.Int("p", 6000, "gRPC server listening port.")
	poolSize := flag.Int("n", 8, "Maximum number of years computed concurrently.")
	name := flag.String("name", "", "Worker name reported with each result. Defaults to the hostname.")
	verbose := flag.Bool("v", false, "verbose logging")
	flag.Parse()

	log, err := utils.NewLogger(*verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	cfg := utils.DefaultConfig()
	if len(*configFile) > 0 {
		cfg, err = utils.LoadConfigFile(*configFile)
		if err != nil {
			log.Fatalw("failed to load config", "error", err)
		}
	}
	var config atomic.Pointer[utils.Config]
	config.Store(cfg)
	if len(*configFile) > 0 {
		utils.WatchConfig(log, *configFile, &config)
	}

	cat, closer, err := catalog.Open(context.Background(), cfg.Catalog)
	if err != nil {
		log.Fatalw("failed to open catalog", "error", err)
	}
	defer closer.Close()

	workerName := *name
	if len(workerName) == 0 {
		workerName, _ = os.Hostname()
	}

	srv := pb.NewServer(&config, cat, *poolSize, workerName, log)
	s := grpc.NewServer(grpc.MaxSendMsgSize(pb.DefaultMaxRecvMsgSize))
	pb.RegisterDepthWorkerServer(s, srv)

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		<-signals
		log.Infow("shutting down", "worker", workerName)
		s.GracefulStop()
	}()

	lis, err := reuseport.Listen("tcp", fmt.Sprintf(":%d", *port))
	if err != nil {
		log.Fatalw("failed to listen", "port", *port, "error", err)
	}

	log.Infow("depth worker listening", "worker", workerName, "port", *port, "pool", *poolSize)
	if err := s.Serve(lis); err != nil {
		log.Fatalw("failed to serve", "error", err)
	}
	srv.Close()
}
