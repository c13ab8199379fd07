package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"newsroom/internal/articles"
	"newsroom/internal/config"
	"newsroom/internal/daemon"
	"newsroom/internal/logging"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load("")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	store, err := articles.Open(cfg)
	if err != nil {
		log.Fatalf("open article store: %v", err)
	}

	d, err := daemon.New(cfg, store, logger)
	if err != nil {
		_ = store.Close()
		log.Fatalf("create daemon: %v", err)
	}
	defer d.Close()

	if err := d.Start(ctx); err != nil {
		log.Fatalf("start daemon: %v", err)
	}

	<-ctx.Done()
	logger.Info("newsroomd shutting down")
}
