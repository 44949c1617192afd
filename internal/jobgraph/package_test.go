package jobgraph_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"reelforge/internal/framerange"
	"reelforge/internal/jobgraph"
)

func TestSegmentPackageRoundTrip(t *testing.T) {
	pkg, err := jobgraph.NewSegmentPackage(framerange.Span(11, 20), "/tmp/Segment11.mov")
	if err != nil {
		t.Fatalf("NewSegmentPackage returned error: %v", err)
	}
	decoded, err := jobgraph.DecodeSegmentPackage(pkg.Map())
	if err != nil {
		t.Fatalf("DecodeSegmentPackage returned error: %v", err)
	}
	if !decoded.FrameRange.Equal(pkg.FrameRange) || decoded.SegmentFile != pkg.SegmentFile {
		t.Fatalf("decoded %+v, want %+v", decoded, pkg)
	}
}

func TestDecodeSegmentPackageRejectsUnknownAndMissing(t *testing.T) {
	_, err := jobgraph.DecodeSegmentPackage(map[string]string{
		"frameRange": "1-10",
		"segmentFle": "/tmp/typo.mov",
	})
	if err == nil {
		t.Fatal("expected error")
	}
	msg := err.Error()
	if !strings.Contains(msg, `"segmentFile": missing`) || !strings.Contains(msg, `"segmentFle": unknown`) {
		t.Fatalf("error should list both problems, got %q", msg)
	}
	var pkgErr *jobgraph.PackageError
	if !errors.As(err, &pkgErr) {
		t.Fatalf("expected PackageError in %v", err)
	}
}

func TestDecodeSegmentPackageRejectsBadRange(t *testing.T) {
	_, err := jobgraph.DecodeSegmentPackage(map[string]string{"frameRange": "10-1", "segmentFile": "/tmp/a.mov"})
	var pkgErr *jobgraph.PackageError
	if !errors.As(err, &pkgErr) || pkgErr.Key != jobgraph.KeyFrameRange {
		t.Fatalf("expected frameRange PackageError, got %v", err)
	}
}

func TestOutputPackage(t *testing.T) {
	names := []string{"Segment:1-10", "Segment:11-20"}
	pkg, err := jobgraph.NewOutputPackage(names, "/deliver/a.mov")
	if err != nil {
		t.Fatalf("NewOutputPackage returned error: %v", err)
	}
	if got := pkg.Map()[jobgraph.KeySegmentSubjobs]; got != "Segment:1-10,Segment:11-20" {
		t.Fatalf("unexpected subjob list %q", got)
	}
	decoded, err := jobgraph.DecodeOutputPackage(map[string]string{
		"segmentSubjobs": "Segment:1-3,7, Segment:8-9",
		"outputFile":     "/deliver/a.mov",
	})
	if err != nil {
		t.Fatalf("DecodeOutputPackage returned error: %v", err)
	}
	if diff := cmp.Diff([]string{"Segment:1-3,7", "Segment:8-9"}, decoded.SegmentSubjobs); diff != "" {
		t.Fatalf("subjobs mismatch (-want +got):\n%s", diff)
	}

	if _, err := jobgraph.NewOutputPackage([]string{"Initialize"}, "/deliver/a.mov"); err == nil {
		t.Fatal("expected error for non-segment dependency")
	}
	if _, err := jobgraph.DecodeOutputPackage(map[string]string{"outputFile": "/x.mov"}); err == nil {
		t.Fatal("expected error for missing segment list")
	}
}

func TestInitializePackageRejectsKeys(t *testing.T) {
	if _, err := jobgraph.DecodeInitializePackage(nil); err != nil {
		t.Fatalf("empty initialize package should be valid: %v", err)
	}
	if _, err := jobgraph.DecodeInitializePackage(map[string]string{"frameRange": "1"}); err == nil {
		t.Fatal("expected unknown key error")
	}
}

func TestResults(t *testing.T) {
	seg, err := jobgraph.DecodeSegmentResult(jobgraph.SegmentResult{Changed: true, SegmentFile: "/s/Segment1_1.mov"}.Map())
	if err != nil || !seg.Changed || seg.SegmentFile != "/s/Segment1_1.mov" {
		t.Fatalf("unexpected segment result %+v, %v", seg, err)
	}
	if _, err := jobgraph.DecodeSegmentResult(map[string]string{"changed": "maybe", "segmentFile": "/s"}); err == nil {
		t.Fatal("expected error for malformed changed flag")
	}
	out, err := jobgraph.DecodeOutputResult(map[string]string{"outputFile": "/d/a.mov"})
	if err != nil || out.Skipped || out.OutputFile != "/d/a.mov" {
		t.Fatalf("unexpected output result %+v, %v", out, err)
	}
}

func TestJobEncoding(t *testing.T) {
	job := jobgraph.Job{
		ID:         "j1",
		Sequence:   "/s/a_0001.png",
		OutputFile: "/d/a.mov",
		SceneFile:  "/t/Blender/j1-a_0001.blend",
		FrameRange: framerange.Span(1, 50),
	}
	data, err := jobgraph.EncodeJob(job)
	if err != nil {
		t.Fatalf("EncodeJob returned error: %v", err)
	}
	if !strings.Contains(string(data), `"frameRange":"1-50"`) {
		t.Fatalf("frame range should serialize as text, got %s", data)
	}
	decoded, err := jobgraph.DecodeJob(data)
	if err != nil {
		t.Fatalf("DecodeJob returned error: %v", err)
	}
	if !decoded.FrameRange.Equal(job.FrameRange) || decoded.SceneFile != job.SceneFile {
		t.Fatalf("decoded %+v", decoded)
	}
	if _, err := jobgraph.DecodeJob([]byte(`{"id":"j1","bogus":1}`)); err == nil {
		t.Fatal("expected unknown field error")
	}
	if _, err := jobgraph.DecodeJob([]byte(`{"id":"j1"}`)); err == nil {
		t.Fatal("expected missing field error")
	}
}
