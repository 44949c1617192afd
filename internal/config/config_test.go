package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"reelforge/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("REELFORGE_QUEUE_DB", "")
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantLogs := filepath.Join(tempHome, ".local", "share", "reelforge", "logs")
	if cfg.Paths.LogDir != wantLogs {
		t.Fatalf("unexpected log dir: got %q want %q", cfg.Paths.LogDir, wantLogs)
	}
	if cfg.Paths.QueueDB != filepath.Join(wantLogs, "queue.db") {
		t.Fatalf("unexpected queue db: %q", cfg.Paths.QueueDB)
	}
	if cfg.Paths.TranscoderDir != "" {
		t.Fatalf("expected empty transcoder dir, got %q", cfg.Paths.TranscoderDir)
	}
	if cfg.Chunking.SegmentDuration != 200 || cfg.Chunking.MaxSegmentsPerOutput != 20 || cfg.Chunking.OutputTolerance != 5 {
		t.Fatalf("unexpected chunking defaults: %+v", cfg.Chunking)
	}
	if cfg.Fingerprint.Policy != "mtime" {
		t.Fatalf("unexpected fingerprint policy %q", cfg.Fingerprint.Policy)
	}
	if !strings.HasPrefix(cfg.Encoder.InitScript, tempHome) {
		t.Fatalf("init script not expanded: %q", cfg.Encoder.InitScript)
	}
}

func TestLoadQueueDBFromEnv(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	dbPath := filepath.Join(t.TempDir(), "farm", "queue.db")
	t.Setenv("REELFORGE_QUEUE_DB", dbPath)

	cfg, _, _, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Paths.QueueDB != dbPath {
		t.Fatalf("queue db = %q, want %q", cfg.Paths.QueueDB, dbPath)
	}
}

func TestLoadCustomConfig(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	path := filepath.Join(dir, "reelforge.toml")

	custom := config.Default()
	custom.Paths.TranscoderDir = filepath.Join(dir, "scratch")
	custom.Encoder.ExtraArgs = `--python-expr "import bpy" -t 4`
	custom.Chunking.SegmentDuration = 100
	custom.Chunking.SegmentTolerance = 10
	custom.Fingerprint.Policy = "HASH"
	custom.Logging.Format = "JSON"

	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected %q to be loaded, got %q (exists=%v)", path, resolved, exists)
	}
	if cfg.Chunking.SegmentDuration != 100 || cfg.Chunking.SegmentTolerance != 10 {
		t.Fatalf("unexpected chunking: %+v", cfg.Chunking)
	}
	if cfg.Fingerprint.Policy != "hash" || cfg.Logging.Format != "json" {
		t.Fatalf("expected normalized values, got %q %q", cfg.Fingerprint.Policy, cfg.Logging.Format)
	}
	args, err := cfg.EncoderArgs()
	if err != nil {
		t.Fatalf("EncoderArgs returned error: %v", err)
	}
	want := []string{"--python-expr", "import bpy", "-t", "4"}
	if strings.Join(args, "|") != strings.Join(want, "|") {
		t.Fatalf("EncoderArgs = %q, want %q", args, want)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "bad.toml")
	if err := os.WriteFile(path, []byte("[chunking]\nsegment_size = 10\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(path); err == nil {
		t.Fatal("expected unknown key to be rejected")
	}
}

func TestValidateReportsEveryProblem(t *testing.T) {
	cfg := config.Default()
	cfg.Chunking.SegmentDuration = 0
	cfg.Chunking.MaxSegmentsPerOutput = -1
	cfg.Fingerprint.Policy = "sha"
	cfg.Worker.HeartbeatTimeout = 1
	cfg.Encoder.ExtraArgs = `"unterminated`

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	msg := err.Error()
	for _, want := range []string{
		"chunking.segment_duration",
		"chunking.max_segments_per_output",
		"fingerprint.policy",
		"worker.heartbeat_timeout",
		"encoder.extra_args",
	} {
		if !strings.Contains(msg, want) {
			t.Fatalf("validation error %q missing %q", msg, want)
		}
	}
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestCreateSampleLoads(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample returned error: %v", err)
	}
	if _, _, exists, err := config.Load(path); err != nil || !exists {
		t.Fatalf("sample config should load cleanly: exists=%v err=%v", exists, err)
	}
}
