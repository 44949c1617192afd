package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"reelforge/internal/config"
	"reelforge/internal/scratch"
)

func newScratchCommand(ctx *commandContext) *cobra.Command {
	scratchCmd := &cobra.Command{
		Use:   "scratch",
		Short: "Inspect and clean the transcoder folder",
	}

	scratchCmd.AddCommand(newScratchListCommand(ctx))
	scratchCmd.AddCommand(newScratchCleanCommand(ctx))

	return scratchCmd
}

// scratchDir resolves --dir or falls back to the configured transcoder folder.
func scratchDir(ctx *commandContext, flagValue string) (string, error) {
	if value := strings.TrimSpace(flagValue); value != "" {
		return config.ExpandPath(value)
	}
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return "", err
	}
	if cfg.Paths.TranscoderDir == "" {
		return "", fmt.Errorf("paths.transcoder_dir is not set; pass --dir")
	}
	return cfg.Paths.TranscoderDir, nil
}

func newScratchListCommand(ctx *commandContext) *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List segment folders and prepared scenes",
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := scratchDir(ctx, dir)
			if err != nil {
				return err
			}
			entries, err := scratch.List(root)
			if err != nil {
				return err
			}
			if ctx.JSONMode() {
				return writeJSON(cmd, entries)
			}
			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintf(out, "Nothing in %s\n", root)
				return nil
			}
			rows := make([][]string, 0, len(entries))
			var total int64
			for _, entry := range entries {
				total += entry.Size
				rows = append(rows, []string{
					entry.Kind,
					entry.Name,
					humanize.IBytes(uint64(entry.Size)),
					humanize.Time(entry.ModTime),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]tableColumn{col("Kind"), col("Name"), numCol("Size"), col("Modified")},
				rows,
			))
			fmt.Fprintf(out, "Total: %s in %d entries\n", humanize.IBytes(uint64(total)), len(entries))
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "Transcoder folder (default: paths.transcoder_dir)")
	return cmd
}

func newScratchCleanCommand(ctx *commandContext) *cobra.Command {
	var dir string
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove segment folders and scenes not touched recently",
		RunE: func(cmd *cobra.Command, args []string) error {
			if olderThan <= 0 {
				return fmt.Errorf("--older-than must be positive")
			}
			root, err := scratchDir(ctx, dir)
			if err != nil {
				return err
			}
			result := scratch.CleanStale(cmd.Context(), root, olderThan, nil)
			out := cmd.OutOrStdout()
			for _, path := range result.Removed {
				fmt.Fprintf(out, "Removed %s\n", path)
			}
			fmt.Fprintf(out, "Removed %d entries older than %s\n", len(result.Removed), olderThan)
			if len(result.Errors) > 0 {
				for _, failure := range result.Errors {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", failure.Path, failure.Error)
				}
				return fmt.Errorf("%d entries could not be removed", len(result.Errors))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "Transcoder folder (default: paths.transcoder_dir)")
	cmd.Flags().DurationVar(&olderThan, "older-than", 7*24*time.Hour, "Minimum age of removed entries")
	return cmd
}
