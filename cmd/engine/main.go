package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"exmatch/api/http"
	"exmatch/config"
	"exmatch/infra/cluster"
	"exmatch/infra/kafka"
	"exmatch/infra/snapstore"
	"exmatch/logging"
	"exmatch/service"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to engine configuration")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		// No logger yet.
		println("config:", err.Error())
		os.Exit(1)
	}

	log := logging.New(cfg.Logging.Level, cfg.Logging.Dir)
	log.Info().Int("node", cfg.Node.ID).Msg("engine starting")

	store, err := snapstore.Open(cfg.Snapshot.Dir)
	if err != nil {
		log.Fatal().Err(err).Str("dir", cfg.Snapshot.Dir).Msg("open snapshot store")
	}
	defer store.Close()

	publisher, err := kafka.NewPublisher(cfg.Kafka.Brokers, kafka.Topics{
		Trades:    cfg.Kafka.TradesTopic,
		Book:      cfg.Kafka.BookTopic,
		UserTasks: cfg.Kafka.UserTasksTopic,
	}, cfg.UserPartition, log)
	if err != nil {
		log.Fatal().Err(err).Msg("connect publisher")
	}
	defer publisher.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	elector, err := cluster.NewElector(cluster.NewMemoryMembership(), cfg.Node.ID, 5*time.Second, log)
	if err != nil {
		log.Fatal().Err(err).Msg("register cluster instance")
	}
	go elector.Run(ctx)

	svc := service.NewMatchService(cfg, store, publisher, log)
	if err := svc.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("start matching")
	}

	snapJob := service.NewSnapshotJob(svc,
		time.Duration(cfg.Snapshot.IntervalSec)*time.Second, log)
	snapJob.Start()

	server := http.NewServer(svc, log)
	go func() {
		if err := server.Listen(cfg.HTTP.Addr); err != nil {
			log.Error().Err(err).Msg("http server stopped")
		}
	}()
	log.Info().Str("addr", cfg.HTTP.Addr).Msg("engine ready")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info().Msg("shutting down")

	// Final snapshot first, while the workers are still live; then drain
	// the matching pipeline; the read surface goes last.
	snapJob.Stop()
	svc.Stop()
	if err := server.Shutdown(); err != nil {
		log.Warn().Err(err).Msg("http shutdown")
	}
	log.Info().Msg("engine stopped")
}
