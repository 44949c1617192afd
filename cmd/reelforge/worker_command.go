package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"reelforge/internal/config"
	"reelforge/internal/logging"
	"reelforge/internal/preflight"
	"reelforge/internal/queue"
	"reelforge/internal/textutil"
	"reelforge/internal/worker"
)

func newWorkerCommand(ctx *commandContext) *cobra.Command {
	var workerID string
	var drain bool
	var skipPreflight bool

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Claim and run work units on this render node",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			if !skipPreflight {
				if err := requirePreflight(signalCtx, cfg, cmd); err != nil {
					return err
				}
			}

			id := strings.TrimSpace(workerID)
			if id == "" {
				host, _ := os.Hostname()
				id = fmt.Sprintf("%s-%d", host, os.Getpid())
			}
			id = textutil.SanitizeToken(id)

			logger, err := logging.NewWorkerLogger(cfg, id)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			store, err := queue.Open(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			w, err := worker.New(cfg, store, worker.WithID(id), worker.WithLogger(logger))
			if err != nil {
				return err
			}

			if drain {
				count, err := w.Drain(signalCtx)
				fmt.Fprintf(cmd.OutOrStdout(), "Worker %s ran %d units\n", w.ID(), count)
				if err != nil && signalCtx.Err() == nil {
					return err
				}
				return nil
			}
			return w.Run(signalCtx)
		},
	}

	cmd.Flags().StringVar(&workerID, "id", "", "Worker identifier recorded on claimed units (default: hostname-pid)")
	cmd.Flags().BoolVar(&drain, "drain", false, "Exit once no unit is pending instead of polling")
	cmd.Flags().BoolVar(&skipPreflight, "skip-preflight", false, "Start without checking tools and directories")
	return cmd
}

// requirePreflight prints failing checks and refuses to start the worker.
func requirePreflight(ctx context.Context, cfg *config.Config, cmd *cobra.Command) error {
	failed := preflight.Failed(preflight.RunAll(ctx, cfg))
	if len(failed) == 0 {
		return nil
	}
	out := cmd.ErrOrStderr()
	for _, result := range failed {
		fmt.Fprintf(out, "preflight: %s: %s\n", result.Name, result.Detail)
	}
	return fmt.Errorf("%d preflight checks failed", len(failed))
}
