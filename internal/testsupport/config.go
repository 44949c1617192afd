package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"reelforge/internal/config"
)

// ConfigOption adjusts the configuration NewConfig builds.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig returns a default configuration whose logs, queue database,
// scratch directory and init script all live under a fresh temp directory.
// Worker intervals are shortened to one second.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths = config.Paths{
		LogDir:        filepath.Join(base, "logs"),
		QueueDB:       filepath.Join(base, "queue", "queue.db"),
		TranscoderDir: filepath.Join(base, "transcoder"),
	}
	cfg.Encoder.InitScript = filepath.Join(base, "scripts", "init_sequence.py")
	cfg.Worker.PollInterval, cfg.Worker.HeartbeatInterval, cfg.Worker.HeartbeatTimeout = 1, 1, 5

	b := &configBuilder{t: t, baseDir: base, cfg: &cfg}
	for _, opt := range opts {
		opt(b)
	}
	return b.cfg
}

// WithChunking overrides the segment and output sizes on the test config.
func WithChunking(segmentDuration, segmentTolerance, maxSegments, outputTolerance int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Chunking = config.Chunking{
			SegmentDuration:      segmentDuration,
			SegmentTolerance:     segmentTolerance,
			MaxSegmentsPerOutput: maxSegments,
			OutputTolerance:      outputTolerance,
		}
	}
}

// WithFingerprintPolicy sets the smart update policy on the test config.
func WithFingerprintPolicy(policy string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Fingerprint.Policy = policy
	}
}

// WithStub writes one stub executable with the given shell body and points
// the matching config field at it when the name is a known tool.
func WithStub(name, body string) ConfigOption {
	return func(b *configBuilder) {
		target := writeStub(b.t, filepath.Join(b.baseDir, "bin"), name, body)
		switch name {
		case "blender":
			b.cfg.Encoder.Binary = target
		case "catmovie":
			b.cfg.Assembler.ConcatBinary = target
		case "muxmovie":
			b.cfg.Assembler.MuxBinary = target
		}
	}
}

// WithStubbedBinaries writes stub executables that exit 0 and puts their
// directory first on PATH. With no names the encoder and both assembler
// tools are stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"blender", "catmovie", "muxmovie"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		for _, name := range names {
			writeStub(b.t, binDir, name, "exit 0")
		}
		b.t.Setenv("PATH", binDir+string(os.PathListSeparator)+os.Getenv("PATH"))
	}
}

func writeStub(t testing.TB, binDir, name, body string) string {
	t.Helper()
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		t.Fatalf("mkdir bin dir: %v", err)
	}
	target := filepath.Join(binDir, name)
	script := []byte("#!/bin/sh\n" + body + "\n")
	if err := os.WriteFile(target, script, 0o755); err != nil {
		t.Fatalf("write stub %s: %v", name, err)
	}
	return target
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.LogDir)
}
