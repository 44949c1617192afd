package jobgraph_test

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"reelforge/internal/framerange"
	"reelforge/internal/jobgraph"
	"reelforge/internal/sequence"
	"reelforge/internal/testsupport"
)

func baseOptions() jobgraph.Options {
	return jobgraph.Options{
		JobID:           "job1",
		Sequence:        "/shots/a/shot_0001.png",
		OutputFile:      "/deliver/shot.mov",
		Preset:          "/presets/prores.blend",
		SmartUpdate:     true,
		FrameRange:      framerange.Span(1, 199),
		SegmentDuration: 10,
	}
}

func unitNames(units []jobgraph.WorkUnit) []string {
	out := make([]string, len(units))
	for i, u := range units {
		out[i] = u.Name
	}
	return out
}

func TestBuildSingleOutputGraph(t *testing.T) {
	graph, err := jobgraph.Build(baseOptions())
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}

	segments := graph.UnitsOf(jobgraph.KindSegment)
	if len(segments) != 20 {
		t.Fatalf("expected 20 segments, got %d", len(segments))
	}
	if segments[19].Name != "Segment:191-199" {
		t.Fatalf("unexpected last segment %q", segments[19].Name)
	}
	if len(graph.UnitsOf(jobgraph.KindInitialize)) != 1 {
		t.Fatal("expected a single initialize unit")
	}
	outputs := graph.UnitsOf(jobgraph.KindOutput)
	if len(outputs) != 1 || outputs[0].Name != "Output:shot.mov" {
		t.Fatalf("unexpected outputs %v", unitNames(outputs))
	}
	pkg, err := jobgraph.DecodeOutputPackage(outputs[0].Package)
	if err != nil {
		t.Fatalf("DecodeOutputPackage returned error: %v", err)
	}
	if diff := cmp.Diff(unitNames(segments), pkg.SegmentSubjobs); diff != "" {
		t.Fatalf("output dependencies mismatch (-want +got):\n%s", diff)
	}
	if pkg.OutputFile != "/deliver/shot.mov" {
		t.Fatalf("unexpected output file %q", pkg.OutputFile)
	}

	names := unitNames(graph.Units)
	if names[0] != jobgraph.InitializeName || names[len(names)-1] != "Output:shot.mov" {
		t.Fatalf("unexpected unit order %v", names)
	}
	if graph.Units[0].Status != jobgraph.StatusPending {
		t.Fatalf("initialize should be pending, got %s", graph.Units[0].Status)
	}
	for _, u := range graph.Units[1:] {
		if u.Status != jobgraph.StatusBlocked {
			t.Fatalf("%s should start blocked, got %s", u.Name, u.Status)
		}
	}

	first, err := jobgraph.DecodeSegmentPackage(segments[0].Package)
	if err != nil {
		t.Fatalf("DecodeSegmentPackage returned error: %v", err)
	}
	wantFile := filepath.Join("/deliver", "_Transcoder", "Segments", "shot", "Segment1.mov")
	if first.SegmentFile != wantFile || first.FrameRange.String() != "1-10" {
		t.Fatalf("unexpected first segment package %+v", first)
	}

	if graph.Job.SceneFile != filepath.Join("/deliver", "_Transcoder", "Blender", "job1-shot_0001.blend") {
		t.Fatalf("unexpected scene file %q", graph.Job.SceneFile)
	}
	if graph.Job.FrameRange.String() != "1-199" || !graph.Job.SmartUpdate {
		t.Fatalf("unexpected job %+v", graph.Job)
	}
}

func TestBuildCallbacks(t *testing.T) {
	graph, err := jobgraph.Build(baseOptions())
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	if len(graph.Callbacks) != 2 {
		t.Fatalf("expected 2 callbacks, got %d", len(graph.Callbacks))
	}
	initCB := graph.Callbacks[0]
	if initCB.Trigger.String() != "complete-work-self-Initialize" || initCB.Action != jobgraph.ActionUnblock {
		t.Fatalf("unexpected initialize callback %+v", initCB)
	}
	if diff := cmp.Diff(unitNames(graph.UnitsOf(jobgraph.KindSegment)), initCB.Units); diff != "" {
		t.Fatalf("initialize callback units mismatch (-want +got):\n%s", diff)
	}
	outCB := graph.Callbacks[1]
	if len(outCB.Trigger.Completed) != 20 || !strings.HasPrefix(outCB.Trigger.String(), "complete-work-self-Segment:1-10 and complete-work-self-Segment:11-20") {
		t.Fatalf("unexpected output trigger %q", outCB.Trigger.String())
	}
	if diff := cmp.Diff([]string{"Output:shot.mov"}, outCB.Units); diff != "" {
		t.Fatalf("output callback units mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildSelfContainedGroupsOutputs(t *testing.T) {
	opts := baseOptions()
	opts.SelfContained = true
	opts.FrameRange = framerange.Span(1, 450)
	opts.MaxSegmentsPerOutput = 20
	opts.OutputTolerance = 5

	graph, err := jobgraph.Build(opts)
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	outputs := graph.UnitsOf(jobgraph.KindOutput)
	if diff := cmp.Diff([]string{"Output:shot_A.mov", "Output:shot_B.mov"}, unitNames(outputs)); diff != "" {
		t.Fatalf("outputs mismatch (-want +got):\n%s", diff)
	}
	second, err := jobgraph.DecodeOutputPackage(outputs[1].Package)
	if err != nil {
		t.Fatalf("DecodeOutputPackage returned error: %v", err)
	}
	if len(second.SegmentSubjobs) != 25 {
		t.Fatalf("trailing group of 5 segments should merge, got %d segments", len(second.SegmentSubjobs))
	}
	if second.OutputFile != "/deliver/shot_B.mov" {
		t.Fatalf("unexpected output file %q", second.OutputFile)
	}

	names := unitNames(graph.Units)
	// Output A lands right after Segment:191-200, the 20th segment.
	if names[20] != "Segment:191-200" || names[21] != "Output:shot_A.mov" || names[22] != "Segment:201-210" {
		t.Fatalf("output A misplaced: %v", names[19:24])
	}
	if names[len(names)-2] != "Segment:441-450" || names[len(names)-1] != "Output:shot_B.mov" {
		t.Fatalf("output B misplaced: %v", names[len(names)-3:])
	}
	if len(graph.Callbacks) != 3 {
		t.Fatalf("expected 3 callbacks, got %d", len(graph.Callbacks))
	}
}

func TestBuildReferenceOutputIgnoresGroupLimit(t *testing.T) {
	opts := baseOptions()
	opts.FrameRange = framerange.Span(1, 450)
	opts.MaxSegmentsPerOutput = 5
	graph, err := jobgraph.Build(opts)
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	if outputs := graph.UnitsOf(jobgraph.KindOutput); len(outputs) != 1 {
		t.Fatalf("reference outputs should never split, got %v", unitNames(outputs))
	}
}

func TestBuildSegmentTolerance(t *testing.T) {
	opts := baseOptions()
	opts.FrameRange = framerange.Span(1, 23)
	opts.SegmentTolerance = 5
	graph, err := jobgraph.Build(opts)
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	want := []string{"Segment:1-10", "Segment:11-23"}
	if diff := cmp.Diff(want, unitNames(graph.UnitsOf(jobgraph.KindSegment))); diff != "" {
		t.Fatalf("segments mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildUsesSequenceBounds(t *testing.T) {
	dir := t.TempDir()
	example := testsupport.WriteSequence(t, dir, "plate.", 4, ".exr", 12, 13, 14, 15, 40)
	opts := baseOptions()
	opts.Sequence = example
	opts.FrameRange = framerange.Set{}
	opts.OutputFile = filepath.Join(dir, "out", "plate.mov")
	opts.TranscoderFolder = filepath.Join(dir, "scratch")

	graph, err := jobgraph.Build(opts)
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	want := []string{"Segment:12-21", "Segment:22-31", "Segment:32-40"}
	if diff := cmp.Diff(want, unitNames(graph.UnitsOf(jobgraph.KindSegment))); diff != "" {
		t.Fatalf("segments mismatch (-want +got):\n%s", diff)
	}
	seg, _ := jobgraph.DecodeSegmentPackage(graph.UnitsOf(jobgraph.KindSegment)[2].Package)
	if seg.SegmentFile != filepath.Join(dir, "scratch", "Segments", "plate", "Segment32.mov") {
		t.Fatalf("unexpected segment file %q", seg.SegmentFile)
	}
}

func TestBuildErrors(t *testing.T) {
	opts := baseOptions()
	opts.Sequence = "/shots/readme.txt"
	_, err := jobgraph.Build(opts)
	var invalid *sequence.InvalidSequenceError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidSequenceError, got %v", err)
	}

	opts = baseOptions()
	opts.Sequence = filepath.Join(t.TempDir(), "none_0001.png")
	opts.FrameRange = framerange.Set{}
	_, err = jobgraph.Build(opts)
	var empty *sequence.EmptySequenceError
	if !errors.As(err, &empty) {
		t.Fatalf("expected EmptySequenceError, got %v", err)
	}

	_, err = jobgraph.Build(jobgraph.Options{})
	if err == nil {
		t.Fatal("expected validation error for empty options")
	}
	for _, want := range []string{"sequence path", "output file", "preset"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q should mention %q", err, want)
		}
	}
}

func TestBuildBoundsSegmentCount(t *testing.T) {
	opts := baseOptions()
	opts.FrameRange = framerange.Span(1, 2000000000)
	_, err := jobgraph.Build(opts)
	if err == nil || !strings.Contains(err.Error(), "segments") {
		t.Fatalf("expected segment limit error, got %v", err)
	}

	opts.SegmentDuration = 1000000
	graph, err := jobgraph.Build(opts)
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	segments := graph.UnitsOf(jobgraph.KindSegment)
	if len(segments) != 2000 {
		t.Fatalf("expected 2000 segments, got %d", len(segments))
	}
	if segments[1999].Name != "Segment:1999000001-2000000000" {
		t.Fatalf("unexpected last segment %q", segments[1999].Name)
	}
}

func TestBuiltGraphsSatisfyStructuralRules(t *testing.T) {
	for _, selfContained := range []bool{false, true} {
		for _, span := range []int{1, 9, 10, 11, 199, 1000, 4321} {
			opts := baseOptions()
			opts.SelfContained = selfContained
			opts.FrameRange = framerange.Span(1, span)
			opts.MaxSegmentsPerOutput = 7
			opts.OutputTolerance = 3
			graph, err := jobgraph.Build(opts)
			if err != nil {
				t.Fatalf("Build(span=%d, selfContained=%v) returned error: %v", span, selfContained, err)
			}
			if err := graph.Validate(); err != nil {
				t.Fatalf("Validate(span=%d) returned error: %v", span, err)
			}
		}
	}
}
