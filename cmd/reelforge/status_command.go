package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"reelforge/internal/deps"
	"reelforge/internal/preflight"
	"reelforge/internal/queue"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check whether this node can run workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			var lines []string
			lines = append(lines, renderSectionHeader("Directories", colorize)...)
			lines = append(lines, resultLine(preflight.CheckDirectoryAccess("Log directory", cfg.Paths.LogDir), colorize))
			if cfg.Paths.TranscoderDir != "" {
				lines = append(lines, resultLine(preflight.CheckDirectoryAccess("Transcoder directory", cfg.Paths.TranscoderDir), colorize))
			} else {
				lines = append(lines, renderStatusLine("Transcoder directory", statusInfo, "per job (_Transcoder beside each output)", colorize))
			}

			lines = append(lines, "")
			lines = append(lines, renderSectionHeader("Dependencies", colorize)...)
			statuses := append(preflight.CheckSystemDeps(cfg), deps.CheckInitScript(cfg.Encoder.InitScript))
			lines = append(lines, dependencyLines(statuses, colorize)...)

			lines = append(lines, "")
			lines = append(lines, renderSectionHeader("Queue", colorize)...)
			dbResult := preflight.CheckQueueDatabase(cmd.Context(), cfg)
			lines = append(lines, resultLine(dbResult, colorize))
			if dbResult.Passed {
				err := ctx.withStore(func(store *queue.Store) error {
					stats, err := store.Stats(cmd.Context())
					if err != nil {
						return err
					}
					lines = append(lines, renderStatusLine("Units", statusInfo, formatUnitCounts(stats), colorize))
					return nil
				})
				if err != nil {
					lines = append(lines, renderStatusLine("Units", statusWarn, err.Error(), colorize))
				}
			}

			fmt.Fprintln(out, strings.Join(lines, "\n"))
			return nil
		},
	}
}

func resultLine(result preflight.Result, colorize bool) string {
	if result.Passed {
		return renderStatusLine(result.Name, statusOK, result.Detail, colorize)
	}
	return renderStatusLine(result.Name, statusError, result.Detail, colorize)
}

func dependencyLines(statuses []deps.Status, colorize bool) []string {
	lines := make([]string, 0, len(statuses)+1)
	missing := make([]string, 0)
	for _, dep := range statuses {
		if dep.Available {
			message := "Ready"
			if dep.Command != "" {
				message = fmt.Sprintf("Ready (command: %s)", dep.Command)
			}
			lines = append(lines, renderStatusLine(dep.Name, statusOK, message, colorize))
			continue
		}

		detail := strings.TrimSpace(dep.Detail)
		if detail == "" {
			detail = "not available"
		}
		kind := statusError
		if dep.Optional {
			kind = statusWarn
		}
		lines = append(lines, renderStatusLine(dep.Name, kind, detail, colorize))
		missing = append(missing, dep.Name)
	}
	if len(missing) > 0 {
		lines = append(lines, renderStatusLine("Missing dependencies", statusWarn, strings.Join(missing, ", "), colorize))
	}
	return lines
}
