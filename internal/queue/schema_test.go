package queue_test

import (
	"database/sql"
	"errors"
	"testing"

	"reelforge/internal/queue"
	"reelforge/internal/testsupport"
)

func TestOpenReusesExistingSchema(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	first := testsupport.MustOpenStore(t, cfg)
	if err := first.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	testsupport.MustOpenStore(t, cfg)
}

func TestOpenRejectsForeignSchemaVersion(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	db, err := sql.Open("sqlite", cfg.Paths.QueueDB)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if _, err := db.Exec(`UPDATE schema_version SET version = 99`); err != nil {
		t.Fatalf("bump version: %v", err)
	}
	_ = db.Close()

	if _, err := queue.Open(cfg); !errors.Is(err, queue.ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}
