package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"reelforge/internal/jobgraph"
	"reelforge/internal/queue"
)

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var flags jobFlags

	cmd := &cobra.Command{
		Use:   "submit <sequence frame>",
		Short: "Queue a transcode job for an image sequence",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			opts, err := flags.options(cfg, args[0])
			if err != nil {
				return err
			}
			graph, err := jobgraph.Build(opts)
			if err != nil {
				return fmt.Errorf("build job: %w", err)
			}
			return ctx.withStore(func(store *queue.Store) error {
				job, err := store.Submit(cmd.Context(), graph)
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, jobView(*job))
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Submitted job %s (%s)\n", job.ID, job.Name)
				fmt.Fprintf(out, "Frames %s in %d segments, %d outputs\n",
					graph.Job.FrameRange,
					len(graph.UnitsOf(jobgraph.KindSegment)),
					len(graph.UnitsOf(jobgraph.KindOutput)),
				)
				return nil
			})
		},
	}
	flags.register(cmd)
	return cmd
}
