package encode

import (
	"fmt"
	"strconv"
	"strings"

	"reelforge/internal/config"
)

// Command is one external tool invocation.
type Command struct {
	Binary string
	Args   []string
}

// String renders the command for logs, quoting words that contain spaces or
// quotes. The result is for display only and is never executed.
func (c Command) String() string {
	words := make([]string, 0, len(c.Args)+1)
	for _, word := range append([]string{c.Binary}, c.Args...) {
		if word == "" || strings.ContainsAny(word, " \t\"'\\") {
			word = strconv.Quote(word)
		}
		words = append(words, word)
	}
	return strings.Join(words, " ")
}

// Tools holds the configured binaries and the extra encoder arguments.
type Tools struct {
	Encoder    string
	InitScript string
	Concat     string
	MuxBinary  string
	ExtraArgs  []string
}

// NewTools reads tool locations from the configuration.
func NewTools(cfg *config.Config) (Tools, error) {
	if cfg == nil {
		return Tools{}, fmt.Errorf("config is nil")
	}
	extra, err := cfg.EncoderArgs()
	if err != nil {
		return Tools{}, err
	}
	return Tools{
		Encoder:    cfg.Encoder.Binary,
		InitScript: cfg.Encoder.InitScript,
		Concat:     cfg.Assembler.ConcatBinary,
		MuxBinary:  cfg.Assembler.MuxBinary,
		ExtraArgs:  extra,
	}, nil
}

// InitRequest describes the scene preparation step.
type InitRequest struct {
	Preset            string
	InitFile          string
	SceneFile         string
	FillMissingFrames bool
}

// Initialize prepares a scene from a preset:
//
//	blender -b <preset> -P <init script> [extra] -- <init file> <scene file> <fill missing>
func (t Tools) Initialize(req InitRequest) Command {
	args := []string{"-b", req.Preset, "-P", t.InitScript}
	args = append(args, t.ExtraArgs...)
	args = append(args, "--", req.InitFile, req.SceneFile, pythonBool(req.FillMissingFrames))
	return Command{Binary: t.Encoder, Args: args}
}

// SegmentRequest describes one segment render.
type SegmentRequest struct {
	SceneFile  string
	Start      int
	End        int
	OutputFile string
}

// Segment renders a frame span of the prepared scene:
//
//	blender -b <scene> -x 1 -s <start> -e <end> -o <output> [extra] -a
//
// Extra arguments go before -a because the encoder applies options in order
// and starts rendering at -a.
func (t Tools) Segment(req SegmentRequest) Command {
	args := []string{
		"-b", req.SceneFile,
		"-x", "1",
		"-s", strconv.Itoa(req.Start),
		"-e", strconv.Itoa(req.End),
		"-o", req.OutputFile,
	}
	args = append(args, t.ExtraArgs...)
	args = append(args, "-a")
	return Command{Binary: t.Encoder, Args: args}
}

// ConcatSegments joins segment movies in order into a temporary reference movie:
//
//	catmovie -o <output> - <segment>...
func (t Tools) ConcatSegments(outputFile string, segments []string) Command {
	args := append([]string{"-o", outputFile, "-"}, segments...)
	return Command{Binary: t.Concat, Args: args}
}

// MuxRequest describes the final mux of a concatenated movie.
type MuxRequest struct {
	OutputFile    string
	Input         string
	SelfContained bool
	AudioFile     string
	// AudioOffset is where the audio starts, in seconds.
	AudioOffset float64
}

// Mux writes the deliverable, optionally self-contained and with audio:
//
//	muxmovie -o <output> [-self-contained -trimToShortestTrack] [<audio> -startAt <seconds>] <input>
func (t Tools) Mux(req MuxRequest) Command {
	args := []string{"-o", req.OutputFile}
	if req.SelfContained {
		args = append(args, "-self-contained", "-trimToShortestTrack")
	}
	if req.AudioFile != "" {
		args = append(args, req.AudioFile, "-startAt", strconv.FormatFloat(req.AudioOffset, 'f', -1, 64))
	}
	args = append(args, req.Input)
	return Command{Binary: t.MuxBinary, Args: args}
}

// AudioOffset converts the first frame of an output into the audio start
// time in seconds.
func AudioOffset(startFrame int, frameRate float64) float64 {
	if frameRate <= 0 {
		return 0
	}
	return float64(startFrame) / frameRate
}

// pythonBool renders the flag the init script parses.
func pythonBool(value bool) string {
	if value {
		return "True"
	}
	return "False"
}
