package jobgraph

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"reelforge/internal/chunk"
	"reelforge/internal/framerange"
	"reelforge/internal/sequence"
)

const (
	DefaultSegmentDuration      = 200
	DefaultMaxSegmentsPerOutput = 20
	DefaultOutputTolerance      = 5

	// MaxSegments caps the Segment units one job may plan.
	MaxSegments = 100000
)

// Options describes a transcode request.
type Options struct {
	JobID string
	// Sequence is the path of any frame of the input image sequence.
	Sequence   string
	OutputFile string
	Preset     string
	AudioFile  string
	// SelfContained outputs embed their media and are split into groups of
	// at most MaxSegmentsPerOutput segments. Reference outputs always use a
	// single Output unit.
	SelfContained     bool
	SmartUpdate       bool
	FillMissingFrames bool
	// TranscoderFolder defaults to "_Transcoder" beside OutputFile.
	TranscoderFolder string
	// FrameRange defaults to the bounds of the frames on disk. Only its
	// bounds are used; segments always cover contiguous spans.
	FrameRange framerange.Set

	SegmentDuration      int
	SegmentTolerance     int
	MaxSegmentsPerOutput int
	OutputTolerance      int
}

func (o Options) withDefaults() Options {
	if o.SegmentDuration <= 0 {
		o.SegmentDuration = DefaultSegmentDuration
	}
	if o.MaxSegmentsPerOutput <= 0 {
		o.MaxSegmentsPerOutput = DefaultMaxSegmentsPerOutput
	}
	if o.OutputTolerance < 0 {
		o.OutputTolerance = 0
	}
	if o.SegmentTolerance < 0 {
		o.SegmentTolerance = 0
	}
	if strings.TrimSpace(o.JobID) == "" {
		o.JobID = uuid.NewString()
	}
	if strings.TrimSpace(o.TranscoderFolder) == "" && o.OutputFile != "" {
		o.TranscoderFolder = filepath.Join(filepath.Dir(o.OutputFile), "_Transcoder")
	}
	return o
}

func (o Options) validate() error {
	var err error
	if strings.TrimSpace(o.Sequence) == "" {
		err = multierr.Append(err, errors.New("sequence path is required"))
	}
	if strings.TrimSpace(o.OutputFile) == "" {
		err = multierr.Append(err, errors.New("output file is required"))
	} else if filepath.Ext(o.OutputFile) == "" {
		err = multierr.Append(err, fmt.Errorf("output file %q has no extension", o.OutputFile))
	}
	if strings.TrimSpace(o.Preset) == "" {
		err = multierr.Append(err, errors.New("preset is required"))
	}
	return err
}

// SceneFile returns where the Initialize unit writes the prepared scene:
// <transcoder folder>/Blender/<job id>-<init file stem>.blend.
func SceneFile(transcoderFolder, jobID, initFile string) string {
	base := filepath.Base(initFile)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(transcoderFolder, "Blender", jobID+"-"+stem+".blend")
}

// SegmentFile returns where a segment starting at start is written:
// <transcoder folder>/Segments/<output stem>/Segment<start><output ext>.
func SegmentFile(transcoderFolder, outputFile string, start int) string {
	stem, ext := splitName(outputFile)
	return filepath.Join(transcoderFolder, "Segments", stem, "Segment"+strconv.Itoa(start)+ext)
}

// ConcatFile returns the intermediate file an Output unit concatenates into
// before muxing.
func ConcatFile(transcoderFolder, outputFile string) string {
	return filepath.Join(transcoderFolder, "Segments", filepath.Base(outputFile))
}

func splitName(path string) (string, string) {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	return strings.TrimSuffix(base, ext), ext
}

// groupOutputFile returns the deliverable path for output group index (0
// based) out of count groups. Multiple groups get _A, _B, ... suffixes.
func groupOutputFile(outputFile string, index, count int) string {
	if count <= 1 {
		return outputFile
	}
	stem, ext := splitName(outputFile)
	return filepath.Join(filepath.Dir(outputFile), stem+"_"+groupLetters(index)+ext)
}

// groupLetters returns A..Z, then AA, AB, ... for larger indexes.
func groupLetters(index int) string {
	var b []byte
	for n := index; ; n = n/26 - 1 {
		b = append([]byte{byte('A' + n%26)}, b...)
		if n < 26 {
			break
		}
	}
	return string(b)
}

// Build assembles the unit graph and callbacks for a transcode request.
func Build(opts Options) (*Graph, error) {
	opts = opts.withDefaults()
	if err := opts.validate(); err != nil {
		return nil, err
	}
	desc, err := sequence.FromExamplePath(opts.Sequence)
	if err != nil {
		return nil, err
	}

	bounds, ok := opts.FrameRange.Bounds()
	if !ok {
		bounds, err = desc.Bounds()
		if err != nil {
			return nil, err
		}
	}
	frames := framerange.Span(bounds.Start, bounds.End)
	if count := (frames.Len() + opts.SegmentDuration - 1) / opts.SegmentDuration; count > MaxSegments {
		return nil, fmt.Errorf("frame range %s needs %d segments of %d frames, more than the limit of %d",
			frames, count, opts.SegmentDuration, MaxSegments)
	}

	job := Job{
		ID:                opts.JobID,
		Name:              "Transcode: " + filepath.Base(opts.OutputFile),
		Sequence:          desc.InitialFile(),
		OutputFile:        opts.OutputFile,
		Preset:            opts.Preset,
		AudioFile:         opts.AudioFile,
		SelfContained:     opts.SelfContained,
		SmartUpdate:       opts.SmartUpdate,
		FillMissingFrames: opts.FillMissingFrames,
		FrameRange:        frames,
		TranscoderFolder:  opts.TranscoderFolder,
		SceneFile:         SceneFile(opts.TranscoderFolder, opts.JobID, desc.InitialFile()),
	}

	segments, err := buildSegments(opts, frames)
	if err != nil {
		return nil, err
	}
	outputs, err := buildOutputs(opts, segments)
	if err != nil {
		return nil, err
	}

	units := make([]WorkUnit, 0, 1+len(segments)+len(outputs))
	units = append(units, WorkUnit{
		Kind:    KindInitialize,
		Name:    InitializeName,
		Status:  StatusPending,
		Package: InitializePackage{}.Map(),
	})
	units = append(units, segments...)
	for outputNum, output := range outputs {
		pkg, _ := DecodeOutputPackage(output.Package)
		last := pkg.SegmentSubjobs[len(pkg.SegmentSubjobs)-1]
		idx := slices.IndexFunc(segments, func(u WorkUnit) bool { return u.Name == last })
		// One slot for Initialize, one to land after the last segment, and
		// one per output already inserted ahead of this one.
		units = slices.Insert(units, idx+2+outputNum, output)
	}

	graph := &Graph{
		Job:       job,
		Units:     units,
		Callbacks: buildCallbacks(segments, outputs),
	}
	if err := graph.Validate(); err != nil {
		return nil, fmt.Errorf("built graph is inconsistent: %w", err)
	}
	return graph, nil
}

func buildSegments(opts Options, frames framerange.Set) ([]WorkUnit, error) {
	pieces := chunk.Frames(frames, opts.SegmentDuration, opts.SegmentTolerance)
	units := make([]WorkUnit, 0, len(pieces))
	for _, piece := range pieces {
		start, _ := piece.Min()
		pkg, err := NewSegmentPackage(piece, SegmentFile(opts.TranscoderFolder, opts.OutputFile, start))
		if err != nil {
			return nil, err
		}
		units = append(units, WorkUnit{
			Kind:    KindSegment,
			Name:    SegmentName(piece),
			Status:  StatusBlocked,
			Package: pkg.Map(),
		})
	}
	return units, nil
}

func buildOutputs(opts Options, segments []WorkUnit) ([]WorkUnit, error) {
	groups := [][]WorkUnit{segments}
	if opts.SelfContained {
		groups = chunk.Split(segments, opts.MaxSegmentsPerOutput, opts.OutputTolerance)
	}
	units := make([]WorkUnit, 0, len(groups))
	for i, group := range groups {
		names := make([]string, len(group))
		for j, seg := range group {
			names[j] = seg.Name
		}
		outputFile := groupOutputFile(opts.OutputFile, i, len(groups))
		pkg, err := NewOutputPackage(names, outputFile)
		if err != nil {
			return nil, err
		}
		units = append(units, WorkUnit{
			Kind:    KindOutput,
			Name:    OutputName(filepath.Base(outputFile)),
			Status:  StatusBlocked,
			Package: pkg.Map(),
		})
	}
	return units, nil
}

func buildCallbacks(segments, outputs []WorkUnit) []Callback {
	segmentNames := make([]string, len(segments))
	for i, seg := range segments {
		segmentNames[i] = seg.Name
	}
	callbacks := []Callback{{
		Trigger: OnComplete(InitializeName),
		Action:  ActionUnblock,
		Units:   segmentNames,
	}}
	for _, output := range outputs {
		pkg, _ := DecodeOutputPackage(output.Package)
		callbacks = append(callbacks, Callback{
			Trigger: OnComplete(pkg.SegmentSubjobs...),
			Action:  ActionUnblock,
			Units:   []string{output.Name},
		})
	}
	return callbacks
}
