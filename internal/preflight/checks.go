package preflight

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"golang.org/x/sys/unix"

	"reelforge/internal/config"
	"reelforge/internal/deps"
	"reelforge/internal/queue"
)

func passed(name, format string, args ...any) Result {
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf(format, args...)}
}

func failed(name, path, format string, args ...any) Result {
	return Result{Name: name, Detail: path + " (error: " + fmt.Sprintf(format, args...) + ")"}
}

// CheckDirectoryAccess verifies that path is a directory this process can
// list, create files in and traverse. A passing result reports the free
// space left on its filesystem.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return failed(name, path, "does not exist")
	case err != nil:
		return failed(name, path, "stat: %v", err)
	case !info.IsDir():
		return failed(name, path, "is not a directory")
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return failed(name, path, "insufficient permissions: %v", err)
	}
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return passed(name, "%s (read/write ok)", path)
	}
	return passed(name, "%s (read/write ok, %s free)", path, humanize.IBytes(st.Bavail*uint64(st.Bsize)))
}

// CheckSystemDeps probes the encoder and assembler binaries named by cfg.
// Workers and the status command share it.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	return deps.CheckBinaries(deps.ToolRequirements(cfg))
}

// CheckQueueDatabase opens the queue database, creating it when absent, and
// requires every table to exist and SQLite's integrity check to pass.
func CheckQueueDatabase(ctx context.Context, cfg *config.Config) Result {
	const name = "Queue database"
	if cfg == nil || strings.TrimSpace(cfg.Paths.QueueDB) == "" {
		return Result{Name: name, Detail: "queue database not configured"}
	}
	path := cfg.Paths.QueueDB
	if dir := CheckDirectoryAccess(name, filepath.Dir(path)); !dir.Passed {
		return dir
	}

	store, err := queue.Open(cfg)
	if err != nil {
		return failed(name, path, "%v", err)
	}
	defer store.Close()
	health, err := store.CheckHealth(ctx)
	switch {
	case err != nil:
		return failed(name, path, "%v", err)
	case len(health.MissingTables) > 0:
		return failed(name, path, "missing tables %s", strings.Join(health.MissingTables, ", "))
	case !health.IntegrityCheck:
		return failed(name, path, "integrity check failed")
	}
	return passed(name, "%s (schema v%d, %d jobs)", path, health.SchemaVersion, health.TotalJobs)
}
