package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"reelforge/internal/jobgraph"
)

func newPlanCommand(ctx *commandContext) *cobra.Command {
	var flags jobFlags

	cmd := &cobra.Command{
		Use:   "plan <sequence frame>",
		Short: "Print the work units and callbacks a job would create",
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
			if ctx.JSONMode() {
				return writeJSON(cmd, planView(graph))
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Job %s: %s\n", graph.Job.ID, graph.Job.Name)
			fmt.Fprintf(out, "Sequence %s frames %s\n\n", graph.Job.Sequence, graph.Job.FrameRange)

			rows := make([][]string, 0, len(graph.Units))
			for i, unit := range graph.Units {
				rows = append(rows, []string{
					fmt.Sprintf("%d", i+1),
					unit.Name,
					string(unit.Kind),
					string(unit.Status),
					formatPackage(unit.Package),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]tableColumn{numCol("#"), col("Unit"), col("Kind"), col("Status"), wideCol("Package", 80)},
				rows,
			))

			callbackRows := make([][]string, 0, len(graph.Callbacks))
			for _, cb := range graph.Callbacks {
				callbackRows = append(callbackRows, []string{
					cb.Trigger.String(),
					string(cb.Action),
					strings.Join(cb.Units, ", "),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]tableColumn{wideCol("Trigger", 60), col("Action"), wideCol("Units", 60)},
				callbackRows,
			))
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}
