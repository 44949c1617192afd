package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"reelforge/internal/logging"
	"reelforge/internal/testsupport"
)

func TestNewWorkerPassesPreflight(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStub("blender", "exit 0"),
		testsupport.WithStub("catmovie", "exit 0"),
		testsupport.WithStub("muxmovie", "exit 0"),
	)
	testsupport.WriteFile(t, cfg.Encoder.InitScript, 16)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	store := testsupport.MustOpenStore(t, cfg)

	w, err := newWorker(context.Background(), cfg, store, "node-3", logging.NewNop())
	if err != nil {
		t.Fatalf("newWorker: %v", err)
	}
	if w.ID() != "node-3" {
		t.Fatalf("worker id = %q, want node-3", w.ID())
	}
}

func TestNewWorkerRefusesFailedPreflight(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Encoder.Binary = "reelforge-missing-encoder"
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	store := testsupport.MustOpenStore(t, cfg)

	_, err := newWorker(context.Background(), cfg, store, "node-3", logging.NewNop())
	if err == nil || !strings.Contains(err.Error(), "preflight") {
		t.Fatalf("expected preflight error, got %v", err)
	}
}

func TestWorkerIDIsToken(t *testing.T) {
	id := workerID()
	if id == "" || strings.ContainsAny(id, " /") {
		t.Fatalf("workerID() = %q, want a filesystem-safe token", id)
	}
}

func TestRunRejectsInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[chunking]\nsegment_duration = 0\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	err := run(context.Background(), path)
	if err == nil || !strings.Contains(err.Error(), "load config") {
		t.Fatalf("expected load config error, got %v", err)
	}
}
