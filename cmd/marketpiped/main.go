package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"marketpipe/internal/blob"
	"marketpipe/internal/config"
	"marketpipe/internal/daemon"
	"marketpipe/internal/logging"
	"marketpipe/internal/queue"
	"marketpipe/internal/workflow"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, err := config.Load("")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	graph := workflow.DefaultGraph()
	store, err := queue.Open(cfg, graph.Order())
	if err != nil {
		logger.Error("open item store", logging.Error(err))
		return
	}
	defer store.Close()

	blobs, err := blob.Open(cfg.DataDir)
	if err != nil {
		logger.Error("open blob store", logging.Error(err))
		return
	}
	defer blobs.Close()

	supervisor := workflow.NewSupervisor(store, graph, workerConfig(cfg), logger)
	if err := registerStages(supervisor, cfg, blobs); err != nil {
		logger.Error("register stages", logging.Error(err))
		return
	}

	d, err := daemon.New(cfg, store, blobs, graph, supervisor, logger)
	if err != nil {
		logger.Error("create daemon", logging.Error(err))
		return
	}
	if err := d.Start(ctx); err != nil {
		logger.Error("start daemon", logging.Error(err))
		return
	}
	defer d.Stop()

	<-ctx.Done()
	logger.Info("marketpiped shutting down")
}
