package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"reelforge/internal/config"
	"reelforge/internal/logging"
	"reelforge/internal/preflight"
	"reelforge/internal/textutil"
	"reelforge/internal/worker"
)

// workerID names this daemon's claims after the render node and process.
func workerID() string {
	host, err := os.Hostname()
	if err != nil {
		host = "render-node"
	}
	return textutil.SanitizeToken(fmt.Sprintf("%s-%d", host, os.Getpid()))
}

// newWorker runs preflight checks and returns a worker bound to store. A
// failed check is logged and refuses the start.
func newWorker(ctx context.Context, cfg *config.Config, store worker.Queue, id string, logger *slog.Logger) (*worker.Worker, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}
	failed := preflight.Failed(preflight.RunAll(ctx, cfg))
	for _, result := range failed {
		logging.ErrorWithContext(logger, "preflight check failed", "preflight_failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
		)
	}
	if len(failed) > 0 {
		return nil, fmt.Errorf("%d preflight checks failed", len(failed))
	}
	return worker.New(cfg, store, worker.WithID(id), worker.WithLogger(logger))
}
