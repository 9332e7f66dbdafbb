package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"bobbin/internal/config"
	"bobbin/internal/daemon"
	"bobbin/internal/logging"
	"bobbin/internal/store"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load("")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("prepare directories: %v", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	st, err := store.Open(cfg)
	if err != nil {
		logger.Error("open store", logging.Error(err))
		return
	}

	d, err := daemon.New(cfg, st, logger, buildPipeline(cfg, st, logger), buildSettings(cfg, st))
	if err != nil {
		logger.Error("create daemon", logging.Error(err))
		st.Close()
		return
	}
	defer d.Close()

	if err := d.Start(ctx); err != nil {
		logger.Error("daemon start", logging.Error(err))
		return
	}

	<-ctx.Done()
	logger.Info("bobbind shutting down")
}
