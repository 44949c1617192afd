package testsupport

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// WriteFile creates path, and any missing parent directories, holding size
// bytes of filler. A size <= 0 writes a single byte.
func WriteFile(t testing.TB, path string, size int) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, bytes.Repeat([]byte{'#'}, max(size, 1)), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// FramePath returns the path of one frame of a numbered sequence.
func FramePath(dir, prefix string, padding int, ext string, frame int) string {
	return filepath.Join(dir, fmt.Sprintf("%s%0*d%s", prefix, padding, frame, ext))
}

// WriteSequence writes one small file per frame, each with distinct content,
// and returns the path of the first frame written.
func WriteSequence(t testing.TB, dir, prefix string, padding int, ext string, frames ...int) string {
	t.Helper()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
	first := ""
	for _, frame := range frames {
		path := FramePath(dir, prefix, padding, ext, frame)
		if err := os.WriteFile(path, []byte(fmt.Sprintf("frame %d", frame)), 0o644); err != nil {
			t.Fatalf("write frame %s: %v", path, err)
		}
		if first == "" {
			first = path
		}
	}
	return first
}
