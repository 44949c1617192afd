package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"reelforge/internal/config"
	"reelforge/internal/framerange"
	"reelforge/internal/jobgraph"
)

// jobFlags collects the options shared by submit and plan.
type jobFlags struct {
	output           string
	preset           string
	audio            string
	frames           string
	transcoderFolder string
	selfContained    bool
	smartUpdate      bool
	fillMissing      bool

	segmentDuration  int
	segmentTolerance int
	maxSegments      int
	outputTolerance  int
}

func (f *jobFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVarP(&f.output, "output", "o", "", "Deliverable movie path (required)")
	flags.StringVarP(&f.preset, "preset", "p", "", "Encoder preset scene (required)")
	flags.StringVar(&f.audio, "audio", "", "Audio file muxed into every output")
	flags.StringVar(&f.frames, "frames", "", "Frame range to encode, e.g. 1-240 (default: frames on disk)")
	flags.StringVar(&f.transcoderFolder, "transcoder-folder", "", "Folder for segments and scenes (default: config or _Transcoder beside the output)")
	flags.BoolVar(&f.selfContained, "self-contained", false, "Embed media in the output and split long jobs into lettered outputs")
	flags.BoolVar(&f.smartUpdate, "smart-update", true, "Only re-encode segments whose frames changed")
	flags.BoolVar(&f.fillMissing, "fill-missing", false, "Hold the previous frame over gaps in the sequence")
	flags.IntVar(&f.segmentDuration, "segment-duration", 0, "Frames per segment (default: config)")
	flags.IntVar(&f.segmentTolerance, "segment-tolerance", -1, "Frames a trailing segment may have before it stands alone (default: config)")
	flags.IntVar(&f.maxSegments, "max-segments", 0, "Segments per self-contained output (default: config)")
	flags.IntVar(&f.outputTolerance, "output-tolerance", -1, "Segments a trailing output may have before it stands alone (default: config)")
}

// options merges the flags with the configured chunking defaults.
func (f *jobFlags) options(cfg *config.Config, sequencePath string) (jobgraph.Options, error) {
	opts := jobgraph.Options{
		Sequence:             strings.TrimSpace(sequencePath),
		OutputFile:           strings.TrimSpace(f.output),
		Preset:               strings.TrimSpace(f.preset),
		AudioFile:            strings.TrimSpace(f.audio),
		SelfContained:        f.selfContained,
		SmartUpdate:          f.smartUpdate,
		FillMissingFrames:    f.fillMissing,
		TranscoderFolder:     strings.TrimSpace(f.transcoderFolder),
		SegmentDuration:      cfg.Chunking.SegmentDuration,
		SegmentTolerance:     cfg.Chunking.SegmentTolerance,
		MaxSegmentsPerOutput: cfg.Chunking.MaxSegmentsPerOutput,
		OutputTolerance:      cfg.Chunking.OutputTolerance,
	}
	for _, path := range []*string{&opts.Sequence, &opts.OutputFile, &opts.Preset, &opts.AudioFile, &opts.TranscoderFolder} {
		if *path == "" {
			continue
		}
		expanded, err := config.ExpandPath(*path)
		if err != nil {
			return jobgraph.Options{}, err
		}
		*path = expanded
	}
	if opts.TranscoderFolder == "" {
		opts.TranscoderFolder = cfg.Paths.TranscoderDir
	}
	if value := strings.TrimSpace(f.frames); value != "" && !strings.EqualFold(value, "all") {
		frames, err := framerange.Parse(value)
		if err != nil {
			return jobgraph.Options{}, fmt.Errorf("--frames: %w", err)
		}
		opts.FrameRange = frames
	}
	if f.segmentDuration > 0 {
		opts.SegmentDuration = f.segmentDuration
	}
	if f.segmentTolerance >= 0 {
		opts.SegmentTolerance = f.segmentTolerance
	}
	if f.maxSegments > 0 {
		opts.MaxSegmentsPerOutput = f.maxSegments
	}
	if f.outputTolerance >= 0 {
		opts.OutputTolerance = f.outputTolerance
	}
	return opts, nil
}
