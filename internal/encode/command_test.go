package encode_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"reelforge/internal/encode"
	"reelforge/internal/testsupport"
)

func TestToolsFromConfig(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Encoder.ExtraArgs = `--threads 4 --python-expr "print('hi there')"`

	tools, err := encode.NewTools(cfg)
	if err != nil {
		t.Fatalf("NewTools returned error: %v", err)
	}
	want := []string{"--threads", "4", "--python-expr", "print('hi there')"}
	if diff := cmp.Diff(want, tools.ExtraArgs); diff != "" {
		t.Fatalf("extra args mismatch (-want +got):\n%s", diff)
	}

	cfg.Encoder.ExtraArgs = `"unterminated`
	if _, err := encode.NewTools(cfg); err == nil {
		t.Fatal("expected error for unbalanced quotes")
	}
}

func TestInitializeCommand(t *testing.T) {
	tools := encode.Tools{Encoder: "blender", InitScript: "/scripts/init.py"}
	cmd := tools.Initialize(encode.InitRequest{
		Preset:            "/presets/Pro Res.blend",
		InitFile:          "/plates/shot_0001.png",
		SceneFile:         "/t/Blender/j1-shot_0001.blend",
		FillMissingFrames: true,
	})
	want := []string{"-b", "/presets/Pro Res.blend", "-P", "/scripts/init.py", "--", "/plates/shot_0001.png", "/t/Blender/j1-shot_0001.blend", "True"}
	if diff := cmp.Diff(want, cmd.Args); diff != "" {
		t.Fatalf("args mismatch (-want +got):\n%s", diff)
	}
	if cmd.Binary != "blender" {
		t.Fatalf("unexpected binary %q", cmd.Binary)
	}
}

func TestSegmentCommandPlacesExtraArgsBeforeRender(t *testing.T) {
	tools := encode.Tools{Encoder: "blender", ExtraArgs: []string{"-t", "8"}}
	cmd := tools.Segment(encode.SegmentRequest{SceneFile: "/t/scene.blend", Start: 191, End: 199, OutputFile: "/t/Segments/shot/Segment191.mov"})
	want := []string{"-b", "/t/scene.blend", "-x", "1", "-s", "191", "-e", "199", "-o", "/t/Segments/shot/Segment191.mov", "-t", "8", "-a"}
	if diff := cmp.Diff(want, cmd.Args); diff != "" {
		t.Fatalf("args mismatch (-want +got):\n%s", diff)
	}
}

func TestConcatAndMuxCommands(t *testing.T) {
	tools := encode.Tools{Concat: "catmovie", MuxBinary: "muxmovie"}

	concat := tools.ConcatSegments("/t/Segments/shot.mov", []string{"/s/Segment1.mov", "/s/Segment11.mov"})
	if diff := cmp.Diff([]string{"-o", "/t/Segments/shot.mov", "-", "/s/Segment1.mov", "/s/Segment11.mov"}, concat.Args); diff != "" {
		t.Fatalf("concat args mismatch (-want +got):\n%s", diff)
	}

	mux := tools.Mux(encode.MuxRequest{
		OutputFile:    "/deliver/shot.mov",
		Input:         "/t/Segments/shot.mov",
		SelfContained: true,
		AudioFile:     "/audio/mix.wav",
		AudioOffset:   encode.AudioOffset(30, 30),
	})
	want := []string{"-o", "/deliver/shot.mov", "-self-contained", "-trimToShortestTrack", "/audio/mix.wav", "-startAt", "1", "/t/Segments/shot.mov"}
	if diff := cmp.Diff(want, mux.Args); diff != "" {
		t.Fatalf("mux args mismatch (-want +got):\n%s", diff)
	}

	plain := tools.Mux(encode.MuxRequest{OutputFile: "/d/a.mov", Input: "/t/a.mov"})
	if diff := cmp.Diff([]string{"-o", "/d/a.mov", "/t/a.mov"}, plain.Args); diff != "" {
		t.Fatalf("plain mux args mismatch (-want +got):\n%s", diff)
	}
}

func TestAudioOffset(t *testing.T) {
	if got := encode.AudioOffset(0, 29.97); got != 0 {
		t.Fatalf("expected 0, got %v", got)
	}
	if got := encode.AudioOffset(48, 24); got != 2 {
		t.Fatalf("expected 2, got %v", got)
	}
	if got := encode.AudioOffset(10, 0); got != 0 {
		t.Fatalf("zero frame rate should give 0, got %v", got)
	}
}

func TestCommandString(t *testing.T) {
	cmd := encode.Command{Binary: "muxmovie", Args: []string{"-o", "/my movies/a.mov", ""}}
	if got := cmd.String(); got != `muxmovie -o "/my movies/a.mov" ""` {
		t.Fatalf("unexpected rendering %s", got)
	}
}
