package worker

import (
	"context"
	"log/slog"
	"os"
	"time"

	"reelforge/internal/encode"
	"reelforge/internal/logging"
)

// runTool executes one external command, streaming its output to the debug
// log.
func (w *Worker) runTool(ctx context.Context, logger *slog.Logger, tool string, command encode.Command) error {
	start := time.Now()
	logger.Info("running "+tool, logging.String("command", command.String()))
	err := w.executor.Run(ctx, command, func(line string) {
		logger.Debug(tool+" output", logging.String("line", line))
	})
	if err != nil {
		return err
	}
	logger.Info(tool+" finished", logging.Duration("duration", time.Since(start)))
	return nil
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
