package scratch

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"reelforge/internal/logging"
)

// Subdirectories of a transcoder folder.
const (
	SegmentsDir = "Segments"
	ScenesDir   = "Blender"
)

// CleanResult contains the outcome of a cleanup operation.
type CleanResult struct {
	Removed []string
	Errors  []CleanupError
}

// CleanupError pairs a path with its cleanup error.
type CleanupError struct {
	Path  string
	Error error
}

// Entry describes one segment folder or prepared scene.
type Entry struct {
	Kind    string
	Name    string
	Path    string
	ModTime time.Time
	Size    int64
}

// Entry kinds.
const (
	KindSegments = "segments"
	KindScene    = "scene"
)

// List returns the segment folders and scene files under transcoderDir,
// oldest first. A missing folder yields no entries.
func List(transcoderDir string) ([]Entry, error) {
	transcoderDir = strings.TrimSpace(transcoderDir)
	if transcoderDir == "" {
		return nil, nil
	}

	var entries []Entry
	segments, err := readEntries(filepath.Join(transcoderDir, SegmentsDir), KindSegments, true)
	if err != nil {
		return nil, err
	}
	entries = append(entries, segments...)
	scenes, err := readEntries(filepath.Join(transcoderDir, ScenesDir), KindScene, false)
	if err != nil {
		return nil, err
	}
	entries = append(entries, scenes...)

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].ModTime.Before(entries[j].ModTime)
	})
	return entries, nil
}

func readEntries(dir, kind string, wantDirs bool) ([]Entry, error) {
	items, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var entries []Entry
	for _, item := range items {
		if item.IsDir() != wantDirs {
			continue
		}
		info, err := item.Info()
		if err != nil {
			continue
		}
		entry := Entry{
			Kind:    kind,
			Name:    item.Name(),
			Path:    filepath.Join(dir, item.Name()),
			ModTime: info.ModTime(),
			Size:    info.Size(),
		}
		if wantDirs {
			size, newest := dirStats(entry.Path)
			entry.Size = size
			entry.ModTime = latest(entry.ModTime, newest)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// CleanStale removes segment folders and scenes whose newest file is older
// than maxAge.
func CleanStale(ctx context.Context, transcoderDir string, maxAge time.Duration, logger *slog.Logger) CleanResult {
	result := CleanResult{}

	entries, err := List(transcoderDir)
	if err != nil {
		result.Errors = append(result.Errors, CleanupError{Path: transcoderDir, Error: err})
		return result
	}

	cutoff := time.Now().Add(-maxAge)
	for _, entry := range entries {
		if ctx.Err() != nil {
			break
		}
		if !entry.ModTime.Before(cutoff) {
			continue
		}
		if err := os.RemoveAll(entry.Path); err != nil {
			result.Errors = append(result.Errors, CleanupError{Path: entry.Path, Error: err})
			if logger != nil {
				logging.WarnWithContext(logger, "failed to remove stale transcoder entry", "scratch_cleanup_failed",
					logging.String("path", entry.Path),
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "check transcoder folder permissions"),
					logging.String(logging.FieldImpact, "disk space not reclaimed"),
				)
			}
			continue
		}
		result.Removed = append(result.Removed, entry.Path)
		if logger != nil {
			logger.Info("removed stale transcoder entry",
				logging.String("path", entry.Path),
				logging.String("kind", entry.Kind),
				logging.Duration("age", time.Since(entry.ModTime)),
				logging.String(logging.FieldEventType, "scratch_cleanup"),
			)
		}
	}

	return result
}

// RemoveJobScenes deletes the prepared scenes of one job.
func RemoveJobScenes(transcoderDir, jobID string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(transcoderDir, ScenesDir, jobID+"-*"))
	if err != nil {
		return nil, err
	}
	var removed []string
	for _, path := range matches {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return removed, err
		}
		removed = append(removed, path)
	}
	return removed, nil
}

// dirStats returns the total size and newest modification time below path.
func dirStats(path string) (int64, time.Time) {
	var size int64
	var newest time.Time
	_ = filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			size += info.Size()
		}
		newest = latest(newest, info.ModTime())
		return nil
	})
	return size, newest
}

func latest(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}
