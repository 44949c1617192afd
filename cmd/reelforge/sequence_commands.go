package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"reelforge/internal/config"
	"reelforge/internal/framerange"
	"reelforge/internal/sequence"
)

func newSequenceCommand(ctx *commandContext) *cobra.Command {
	sequenceCmd := &cobra.Command{
		Use:   "sequence",
		Short: "Inspect and repair image sequences",
	}

	sequenceCmd.AddCommand(newSequenceInfoCommand(ctx))
	sequenceCmd.AddCommand(newSequenceFillCommand(ctx))
	sequenceCmd.AddCommand(newSequenceDeleteCommand())

	return sequenceCmd
}

type sequenceInfoJSON struct {
	Template string `json:"template"`
	Folder   string `json:"folder"`
	Frames   string `json:"frames"`
	Count    int    `json:"count"`
	Missing  string `json:"missing"`
	Size     uint64 `json:"sizeBytes"`
	Duration string `json:"duration"`
}

// resolveSequence returns the descriptor for a frame path and the range to
// inspect: the --frames value, or the bounds of the frames on disk.
func resolveSequence(framePath, frames string) (sequence.Descriptor, framerange.Set, error) {
	expanded, err := config.ExpandPath(strings.TrimSpace(framePath))
	if err != nil {
		return sequence.Descriptor{}, framerange.Set{}, err
	}
	desc, err := sequence.FromExamplePath(expanded)
	if err != nil {
		return sequence.Descriptor{}, framerange.Set{}, err
	}
	if value := strings.TrimSpace(frames); value != "" && !strings.EqualFold(value, "all") {
		r, err := framerange.Parse(value)
		if err != nil {
			return sequence.Descriptor{}, framerange.Set{}, fmt.Errorf("--frames: %w", err)
		}
		return desc, r, nil
	}
	bounds, err := desc.Bounds()
	if err != nil {
		return sequence.Descriptor{}, framerange.Set{}, err
	}
	return desc, framerange.FromRuns(bounds), nil
}

func newSequenceInfoCommand(ctx *commandContext) *cobra.Command {
	var frames string

	cmd := &cobra.Command{
		Use:   "info <frame>",
		Short: "Summarize the frames of a sequence",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			desc, r, err := resolveSequence(args[0], frames)
			if err != nil {
				return err
			}
			existing := desc.ExistingFrames(r)
			missing := desc.MissingFrames(r)
			size, err := desc.Size(existing)
			if err != nil {
				return err
			}
			human, err := desc.HumanSize(existing)
			if err != nil {
				return err
			}
			duration := sequence.Timecode(r.Len(), cfg.Assembler.FrameRate)

			if ctx.JSONMode() {
				return writeJSON(cmd, sequenceInfoJSON{
					Template: desc.Template(),
					Folder:   desc.Folder,
					Frames:   existing.String(),
					Count:    existing.Len(),
					Missing:  missing.String(),
					Size:     size,
					Duration: duration,
				})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Sequence: %s\n", desc)
			fmt.Fprintf(out, "Range: %s\n", r)
			fmt.Fprintf(out, "Frames on disk: %d (%s)\n", existing.Len(), human)
			if missing.IsEmpty() {
				fmt.Fprintln(out, "Missing frames: none")
			} else {
				fmt.Fprintf(out, "Missing frames: %s\n", missing)
			}
			fmt.Fprintf(out, "Duration: %s at %.3f fps\n", duration, cfg.Assembler.FrameRate)
			return nil
		},
	}

	cmd.Flags().StringVar(&frames, "frames", "", "Frame range to inspect (default: frames on disk)")
	return cmd
}

func newSequenceFillCommand(ctx *commandContext) *cobra.Command {
	var frames string

	cmd := &cobra.Command{
		Use:   "fill <frame>",
		Short: "Copy the previous frame into every gap of a sequence",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			desc, r, err := resolveSequence(args[0], frames)
			if err != nil {
				return err
			}
			written, err := desc.FillGaps(r)
			out := cmd.OutOrStdout()
			if !written.IsEmpty() {
				fmt.Fprintf(out, "Filled frames %s of %s\n", written, desc)
			}
			if err != nil {
				return err
			}
			if written.IsEmpty() {
				fmt.Fprintf(out, "No gaps in %s\n", desc)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&frames, "frames", "", "Frame range to fill (default: frames on disk)")
	return cmd
}

func newSequenceDeleteCommand() *cobra.Command {
	var frames string

	cmd := &cobra.Command{
		Use:   "delete <frame> --frames <range>",
		Short: "Remove a range of frames from disk",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(frames) == "" {
				return fmt.Errorf("--frames is required")
			}
			desc, r, err := resolveSequence(args[0], frames)
			if err != nil {
				return err
			}
			removed, err := desc.DeleteFrames(r)
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d frames of %s\n", removed, desc)
			return err
		},
	}

	cmd.Flags().StringVar(&frames, "frames", "", "Frame range to remove, or \"all\"")
	return cmd
}
