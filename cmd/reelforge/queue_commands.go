package main

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"reelforge/internal/jobgraph"
	"reelforge/internal/queue"
	"reelforge/internal/scratch"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the work queue",
	}

	queueCmd.AddCommand(newQueueStatusCommand(ctx))
	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueShowCommand(ctx))
	queueCmd.AddCommand(newQueueMoveCommand(ctx, "retry", "Return failed units to pending", (*queue.Store).Retry, "Retried"))
	queueCmd.AddCommand(newQueueMoveCommand(ctx, "block", "Block units so no worker runs them", (*queue.Store).Block, "Blocked"))
	queueCmd.AddCommand(newQueueMoveCommand(ctx, "unblock", "Return blocked units to pending", (*queue.Store).Unblock, "Unblocked"))
	queueCmd.AddCommand(newQueueRemoveCommand(ctx))
	queueCmd.AddCommand(newQueueClearCommand(ctx))
	queueCmd.AddCommand(newQueueHealthCommand(ctx))

	return queueCmd
}

func newQueueStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show unit counts by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *queue.Store) error {
				stats, err := store.Stats(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					counts := make(map[string]int, len(stats))
					for status, n := range stats {
						counts[string(status)] = n
					}
					return writeJSON(cmd, counts)
				}
				var rows [][]string
				for _, status := range unitStatusOrder {
					if n := stats[status]; n > 0 {
						rows = append(rows, []string{string(status), fmt.Sprintf("%d", n)})
					}
				}
				if len(rows) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable([]tableColumn{col("Status"), numCol("Units")}, rows))
				return nil
			})
		},
	}
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var listStatuses []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := make(map[queue.JobStatus]bool, len(listStatuses))
			for _, value := range listStatuses {
				filter[queue.JobStatus(strings.ToLower(strings.TrimSpace(value)))] = true
			}
			return ctx.withStore(func(store *queue.Store) error {
				jobs, err := store.Jobs(cmd.Context())
				if err != nil {
					return err
				}
				var selected []queue.Job
				for _, job := range jobs {
					if len(filter) > 0 && !filter[job.Status] {
						continue
					}
					selected = append(selected, job)
				}
				if ctx.JSONMode() {
					views := make([]jobJSON, 0, len(selected))
					for _, job := range selected {
						views = append(views, jobView(job))
					}
					return writeJSON(cmd, views)
				}
				if len(selected) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}
				colorize := shouldColorize(cmd.OutOrStdout())
				rows := make([][]string, 0, len(selected))
				for _, job := range selected {
					rows = append(rows, []string{
						job.ID,
						job.Name,
						renderUnitStatus(string(job.Status), colorize),
						progress(job.Counts),
						formatTimestamp(job.CreatedAt),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]tableColumn{col("ID"), col("Name"), col("Status"), numCol("Done"), col("Created")},
					rows,
				))
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&listStatuses, "status", "s", nil, "Filter by job status (repeatable)")
	return cmd
}

func newQueueShowCommand(ctx *commandContext) *cobra.Command {
	var showEvents bool

	cmd := &cobra.Command{
		Use:   "show <job id>",
		Short: "Show the units and callbacks of a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobID := strings.TrimSpace(args[0])
			return ctx.withStore(func(store *queue.Store) error {
				job, err := store.Job(cmd.Context(), jobID)
				if err != nil {
					return err
				}
				units, err := store.Units(cmd.Context(), jobID)
				if err != nil {
					return err
				}
				callbacks, err := store.Callbacks(cmd.Context(), jobID)
				if err != nil {
					return err
				}

				if ctx.JSONMode() {
					detail := jobDetailJSON{Job: jobView(*job)}
					for _, unit := range units {
						detail.Units = append(detail.Units, unitView(unit))
					}
					for _, cb := range callbacks {
						detail.Callbacks = append(detail.Callbacks, callbackView(cb.Callback, cb.FiredAt))
					}
					return writeJSON(cmd, detail)
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Job %s: %s\n", job.ID, job.Name)
				fmt.Fprintf(out, "Status: %s (%s)\n", job.Status, formatUnitCounts(job.Counts))
				fmt.Fprintf(out, "Sequence: %s frames %s\n", job.Package.Sequence, job.Package.FrameRange)
				fmt.Fprintf(out, "Output: %s\n", job.Package.OutputFile)
				fmt.Fprintf(out, "Smart update: %s  Self-contained: %s\n\n", yesNo(job.Package.SmartUpdate), yesNo(job.Package.SelfContained))

				colorize := shouldColorize(out)
				rows := make([][]string, 0, len(units))
				for _, unit := range units {
					rows = append(rows, []string{
						unit.Name,
						renderUnitStatus(string(unit.Status), colorize),
						fmt.Sprintf("%d", unit.Attempts),
						unit.WorkerID,
						unitDetail(unit),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]tableColumn{col("Unit"), col("Status"), numCol("Attempts"), col("Worker"), wideCol("Detail", 70)},
					rows,
				))

				pendingCallbacks := 0
				for _, cb := range callbacks {
					if cb.FiredAt == nil {
						pendingCallbacks++
					}
				}
				fmt.Fprintf(out, "Callbacks: %d fired, %d waiting\n", len(callbacks)-pendingCallbacks, pendingCallbacks)

				if showEvents {
					events, err := store.Events(cmd.Context(), jobID)
					if err != nil {
						return err
					}
					eventRows := make([][]string, 0, len(events))
					for _, event := range events {
						eventRows = append(eventRows, []string{
							formatTimestamp(event.CreatedAt),
							event.Unit,
							event.Type,
							event.WorkerID,
							event.Message,
						})
					}
					fmt.Fprintln(out, renderTable(
						[]tableColumn{col("Time"), col("Unit"), col("Event"), col("Worker"), wideCol("Message", 70)},
						eventRows,
					))
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&showEvents, "events", false, "Include the job history")
	return cmd
}

// unitDetail summarizes what a unit is doing or produced.
func unitDetail(unit queue.Unit) string {
	if unit.ErrorMessage != "" && unit.Status != jobgraph.StatusComplete {
		return unit.ErrorMessage
	}
	switch unit.Kind {
	case jobgraph.KindSegment:
		if result, err := jobgraph.DecodeSegmentResult(unit.Result); err == nil {
			if result.Changed {
				return "encoded " + result.SegmentFile
			}
			return "unchanged " + result.SegmentFile
		}
		return unit.Package[jobgraph.KeySegmentFile]
	case jobgraph.KindOutput:
		if result, err := jobgraph.DecodeOutputResult(unit.Result); err == nil {
			if result.Skipped {
				return "up to date " + result.OutputFile
			}
			return "wrote " + result.OutputFile
		}
		return unit.Package[jobgraph.KeyOutputFile]
	default:
		return ""
	}
}

type moveFunc func(*queue.Store, context.Context, string, ...string) (int64, error)

func newQueueMoveCommand(ctx *commandContext, use, short string, move moveFunc, verb string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <job id> [unit...]",
		Short: short + " (all matching units when none are named)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobID := strings.TrimSpace(args[0])
			names := args[1:]
			return ctx.withStore(func(store *queue.Store) error {
				moved, err := move(store, cmd.Context(), jobID, names...)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %d units of job %s\n", verb, moved, jobID)
				return nil
			})
		},
	}
}

func newQueueRemoveCommand(ctx *commandContext) *cobra.Command {
	var purgeScenes bool

	cmd := &cobra.Command{
		Use:   "remove <job id>...",
		Short: "Delete jobs and their history",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *queue.Store) error {
				var missing []string
				for _, arg := range args {
					id := strings.TrimSpace(arg)
					job, err := store.Job(cmd.Context(), id)
					if errors.Is(err, queue.ErrJobNotFound) {
						missing = append(missing, id)
						continue
					}
					if err != nil {
						return err
					}
					if err := store.RemoveJob(cmd.Context(), id); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Removed job %s\n", id)
					if purgeScenes {
						removed, err := scratch.RemoveJobScenes(job.Package.TranscoderFolder, id)
						if err != nil {
							return fmt.Errorf("remove scenes of %s: %w", id, err)
						}
						for _, path := range removed {
							fmt.Fprintf(cmd.OutOrStdout(), "Removed scene %s\n", path)
						}
					}
				}
				if len(missing) > 0 {
					sort.Strings(missing)
					return fmt.Errorf("jobs not found: %s", strings.Join(missing, ", "))
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&purgeScenes, "purge-scenes", false, "Also delete the job's prepared scenes")
	return cmd
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	var clearCompleted bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove jobs from the queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *queue.Store) error {
				out := cmd.OutOrStdout()
				if clearCompleted {
					removed, err := store.ClearCompleted(cmd.Context())
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "Cleared %d completed jobs\n", removed)
					return nil
				}
				removed, err := store.Clear(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Cleared %d jobs\n", removed)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&clearCompleted, "completed", false, "Only remove completed jobs")
	return cmd
}

func newQueueHealthCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check queue database health (schema, tables, integrity)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *queue.Store) error {
				health, err := store.CheckHealth(cmd.Context())
				if err != nil && health.DBPath == "" {
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, health)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Database path: %s\n", health.DBPath)
				fmt.Fprintf(out, "Database exists: %s\n", yesNo(health.DatabaseExists))
				fmt.Fprintf(out, "Readable: %s\n", yesNo(health.DatabaseReadable))
				fmt.Fprintf(out, "Schema version: %d\n", health.SchemaVersion)
				if len(health.TablesPresent) > 0 {
					fmt.Fprintf(out, "Tables: %s\n", strings.Join(health.TablesPresent, ", "))
				}
				if len(health.MissingTables) > 0 {
					fmt.Fprintf(out, "Missing tables: %s\n", strings.Join(health.MissingTables, ", "))
				} else {
					fmt.Fprintln(out, "Missing tables: none")
				}
				fmt.Fprintf(out, "Integrity check: %s\n", yesNo(health.IntegrityCheck))
				fmt.Fprintf(out, "Total jobs: %d\n", health.TotalJobs)
				if health.Error != "" {
					fmt.Fprintf(out, "Error: %s\n", health.Error)
				}
				return err
			})
		},
	}
}
