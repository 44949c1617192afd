package encode

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"reelforge/internal/services"
)

func TestValidOutputPathMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Segment1.mov")
	got, err := ValidOutputPath(path, 5)
	if err != nil || got != path {
		t.Fatalf("ValidOutputPath = %q, %v", got, err)
	}
}

func TestValidOutputPathRemovesExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Segment1.mov")
	if err := os.WriteFile(path, []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := ValidOutputPath(path, 5)
	if err != nil || got != path {
		t.Fatalf("ValidOutputPath = %q, %v", got, err)
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("existing file should be removed, stat err %v", err)
	}
}

func TestValidOutputPathManglesLockedNames(t *testing.T) {
	locked := map[string]bool{"/t/Segment1.mov": true, "/t/Segment1_1.mov": true}
	var tried []string
	removeFile = func(path string) error {
		tried = append(tried, path)
		if locked[path] {
			return os.ErrPermission
		}
		return os.ErrNotExist
	}
	t.Cleanup(func() { removeFile = os.Remove })

	got, err := ValidOutputPath("/t/Segment1.mov", 5)
	if err != nil {
		t.Fatalf("ValidOutputPath returned error: %v", err)
	}
	if got != "/t/Segment1_2.mov" {
		t.Fatalf("expected second mangled name, got %q (tried %v)", got, tried)
	}
}

func TestValidOutputPathGivesUp(t *testing.T) {
	attempts := 0
	removeFile = func(string) error {
		attempts++
		return os.ErrPermission
	}
	t.Cleanup(func() { removeFile = os.Remove })

	_, err := ValidOutputPath("/t/Segment1.mov", 5)
	var collision *OutputPathCollisionError
	if !errors.As(err, &collision) {
		t.Fatalf("expected OutputPathCollisionError, got %v", err)
	}
	if attempts != 6 || collision.Attempts != 6 {
		t.Fatalf("expected 6 attempts, got %d (%d)", attempts, collision.Attempts)
	}
	if !errors.Is(err, services.ErrConfiguration) || !errors.Is(err, os.ErrPermission) {
		t.Fatalf("collision should wrap configuration marker and cause: %v", err)
	}
}
