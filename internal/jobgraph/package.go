package jobgraph

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/multierr"

	"reelforge/internal/framerange"
)

// Package keys exchanged with the queue.
const (
	KeyFrameRange     = "frameRange"
	KeySegmentFile    = "segmentFile"
	KeySegmentSubjobs = "segmentSubjobs"
	KeyOutputFile     = "outputFile"
	KeyChanged        = "changed"
	KeySkipped        = "skipped"
)

// PackageError describes one problem with a unit package.
type PackageError struct {
	Kind    Kind
	Key     string
	Problem string
}

func (e *PackageError) Error() string {
	return fmt.Sprintf("%s package: key %q: %s", e.Kind, e.Key, e.Problem)
}

// checkKeys reports every unknown key and every missing or blank required key.
func checkKeys(kind Kind, values map[string]string, required []string, optional ...string) error {
	known := make(map[string]bool, len(required)+len(optional))
	var err error
	for _, key := range required {
		known[key] = true
		if strings.TrimSpace(values[key]) == "" {
			err = multierr.Append(err, &PackageError{Kind: kind, Key: key, Problem: "missing"})
		}
	}
	for _, key := range optional {
		known[key] = true
	}
	unknown := make([]string, 0)
	for key := range values {
		if !known[key] {
			unknown = append(unknown, key)
		}
	}
	sort.Strings(unknown)
	for _, key := range unknown {
		err = multierr.Append(err, &PackageError{Kind: kind, Key: key, Problem: "unknown"})
	}
	return err
}

// InitializePackage carries no per-unit values; the Initialize unit reads
// everything it needs from the job.
type InitializePackage struct{}

// DecodeInitializePackage validates an Initialize unit package.
func DecodeInitializePackage(values map[string]string) (InitializePackage, error) {
	return InitializePackage{}, checkKeys(KindInitialize, values, nil)
}

// Map renders the package for the queue.
func (InitializePackage) Map() map[string]string {
	return map[string]string{}
}

// SegmentPackage tells a Segment unit which frames to encode and where.
type SegmentPackage struct {
	FrameRange  framerange.Set
	SegmentFile string
}

// NewSegmentPackage validates and builds a Segment package.
func NewSegmentPackage(frames framerange.Set, segmentFile string) (SegmentPackage, error) {
	return DecodeSegmentPackage(SegmentPackage{FrameRange: frames, SegmentFile: segmentFile}.Map())
}

// DecodeSegmentPackage validates a Segment unit package.
func DecodeSegmentPackage(values map[string]string) (SegmentPackage, error) {
	if err := checkKeys(KindSegment, values, []string{KeyFrameRange, KeySegmentFile}); err != nil {
		return SegmentPackage{}, err
	}
	frames, err := framerange.Parse(values[KeyFrameRange])
	if err != nil {
		return SegmentPackage{}, &PackageError{Kind: KindSegment, Key: KeyFrameRange, Problem: err.Error()}
	}
	if frames.IsEmpty() {
		return SegmentPackage{}, &PackageError{Kind: KindSegment, Key: KeyFrameRange, Problem: "empty frame range"}
	}
	return SegmentPackage{FrameRange: frames, SegmentFile: values[KeySegmentFile]}, nil
}

// Map renders the package for the queue.
func (p SegmentPackage) Map() map[string]string {
	return map[string]string{
		KeyFrameRange:  p.FrameRange.String(),
		KeySegmentFile: p.SegmentFile,
	}
}

// OutputPackage tells an Output unit which segments to assemble and where.
type OutputPackage struct {
	SegmentSubjobs []string
	OutputFile     string
}

// NewOutputPackage validates and builds an Output package.
func NewOutputPackage(segments []string, outputFile string) (OutputPackage, error) {
	return DecodeOutputPackage(OutputPackage{SegmentSubjobs: segments, OutputFile: outputFile}.Map())
}

// DecodeOutputPackage validates an Output unit package.
func DecodeOutputPackage(values map[string]string) (OutputPackage, error) {
	if err := checkKeys(KindOutput, values, []string{KeySegmentSubjobs, KeyOutputFile}); err != nil {
		return OutputPackage{}, err
	}
	var (
		names []string
		err   error
	)
	for _, raw := range splitSubjobs(values[KeySegmentSubjobs]) {
		if !IsSegmentName(raw) {
			err = multierr.Append(err, &PackageError{Kind: KindOutput, Key: KeySegmentSubjobs, Problem: fmt.Sprintf("%q is not a segment unit", raw)})
			continue
		}
		names = append(names, raw)
	}
	if err != nil {
		return OutputPackage{}, err
	}
	if len(names) == 0 {
		return OutputPackage{}, &PackageError{Kind: KindOutput, Key: KeySegmentSubjobs, Problem: "no segments listed"}
	}
	return OutputPackage{SegmentSubjobs: names, OutputFile: values[KeyOutputFile]}, nil
}

// Map renders the package for the queue. Segment names are comma separated,
// which is safe because segment ranges are contiguous spans.
func (p OutputPackage) Map() map[string]string {
	return map[string]string{
		KeySegmentSubjobs: strings.Join(p.SegmentSubjobs, ","),
		KeyOutputFile:     p.OutputFile,
	}
}

// splitSubjobs splits a comma separated list of segment names. A comma that
// is not followed by the segment prefix belongs to the previous name's frame
// range, so lists written by other tools with gapped ranges still parse.
func splitSubjobs(value string) []string {
	var names []string
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if len(names) > 0 && !strings.HasPrefix(part, segmentPrefix) {
			names[len(names)-1] += "," + part
			continue
		}
		names = append(names, part)
	}
	return names
}

// SegmentResult is what a Segment unit reports on completion.
type SegmentResult struct {
	Changed     bool
	SegmentFile string
}

// DecodeSegmentResult validates a Segment result package.
func DecodeSegmentResult(values map[string]string) (SegmentResult, error) {
	if err := checkKeys(KindSegment, values, []string{KeyChanged, KeySegmentFile}); err != nil {
		return SegmentResult{}, err
	}
	changed, err := strconv.ParseBool(values[KeyChanged])
	if err != nil {
		return SegmentResult{}, &PackageError{Kind: KindSegment, Key: KeyChanged, Problem: err.Error()}
	}
	return SegmentResult{Changed: changed, SegmentFile: values[KeySegmentFile]}, nil
}

// Map renders the result for the queue.
func (r SegmentResult) Map() map[string]string {
	return map[string]string{
		KeyChanged:     strconv.FormatBool(r.Changed),
		KeySegmentFile: r.SegmentFile,
	}
}

// OutputResult is what an Output unit reports on completion.
type OutputResult struct {
	OutputFile string
	Skipped    bool
}

// DecodeOutputResult validates an Output result package.
func DecodeOutputResult(values map[string]string) (OutputResult, error) {
	if err := checkKeys(KindOutput, values, []string{KeyOutputFile}, KeySkipped); err != nil {
		return OutputResult{}, err
	}
	result := OutputResult{OutputFile: values[KeyOutputFile]}
	if raw, ok := values[KeySkipped]; ok {
		skipped, err := strconv.ParseBool(raw)
		if err != nil {
			return OutputResult{}, &PackageError{Kind: KindOutput, Key: KeySkipped, Problem: err.Error()}
		}
		result.Skipped = skipped
	}
	return result, nil
}

// Map renders the result for the queue.
func (r OutputResult) Map() map[string]string {
	return map[string]string{
		KeyOutputFile: r.OutputFile,
		KeySkipped:    strconv.FormatBool(r.Skipped),
	}
}
