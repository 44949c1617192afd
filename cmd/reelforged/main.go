package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"reelforge/internal/config"
	"reelforge/internal/logging"
	"reelforge/internal/queue"
)

func main() {
	configPath := flag.String("config", "", "Configuration file path")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := run(ctx, *configPath)
	stop()
	if err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "reelforged: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	cfg, path, _, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	startup, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	id := workerID()
	startup.Info("reelforged starting",
		logging.String(logging.FieldWorkerID, id),
		logging.String("config", path),
		logging.String("queue_db", cfg.Paths.QueueDB),
	)

	logger, err := logging.NewWorkerLogger(cfg, id)
	if err != nil {
		return fmt.Errorf("init worker logger: %w", err)
	}
	store, err := queue.Open(cfg)
	if err != nil {
		return fmt.Errorf("open queue: %w", err)
	}
	defer store.Close()

	w, err := newWorker(ctx, cfg, store, id, logger)
	if err != nil {
		return err
	}
	err = w.Run(ctx)
	logger.Info("reelforged shutting down")
	return err
}
