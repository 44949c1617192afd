package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"reelforge/internal/config"
	"reelforge/internal/textutil"
)

// Options describes logger construction parameters. OutputPaths and
// ErrorOutputPaths accept "stdout", "stderr" or file paths.
type Options struct {
	Level            string
	Format           string
	OutputPaths      []string
	ErrorOutputPaths []string
	Development      bool
	// Color forces ANSI level colours on the console handler. When nil the
	// handler colours only if stdout is a terminal.
	Color *bool
}

// New constructs a slog logger using the provided options.
func New(opts Options) (*slog.Logger, error) {
	handler, err := newHandler(opts)
	if err != nil {
		return nil, err
	}
	return slog.New(handler), nil
}

func newHandler(opts Options) (slog.Handler, error) {
	format := strings.ToLower(strings.TrimSpace(opts.Format))
	if format != "" && format != "json" && format != "console" {
		return nil, fmt.Errorf("log format: unsupported value %q", opts.Format)
	}

	levelVar := new(slog.LevelVar)
	levelVar.Set(parseLevel(opts.Level))
	addSource := opts.Development || levelVar.Level() <= slog.LevelDebug

	outputs := orDefault(opts.OutputPaths, "stdout")
	w, err := openWriters(outputs, orDefault(opts.ErrorOutputPaths, "stderr"))
	if err != nil {
		return nil, err
	}

	if format == "json" {
		return newJSONHandler(w, levelVar, addSource), nil
	}
	color := shouldColorize(outputs)
	if opts.Color != nil {
		color = *opts.Color
	}
	return newPrettyHandler(w, levelVar, addSource, color), nil
}

// NewFromConfig builds the command line logger: console or JSON per cfg,
// written to stdout and appended to reelforge.log in the log directory.
func NewFromConfig(cfg *config.Config) (*slog.Logger, error) {
	if cfg == nil {
		return New(Options{Level: "info", Format: "console"})
	}
	outputs := []string{"stdout"}
	if cfg.Paths.LogDir != "" {
		outputs = append(outputs, filepath.Join(cfg.Paths.LogDir, "reelforge.log"))
	}
	return New(Options{
		Level:            cfg.Logging.Level,
		Format:           cfg.Logging.Format,
		OutputPaths:      outputs,
		ErrorOutputPaths: outputs,
	})
}

// WorkerLogPath returns the per-worker JSON log location.
func WorkerLogPath(cfg *config.Config, workerID string) string {
	return filepath.Join(cfg.Paths.LogDir, "reelforge-worker-"+textutil.SanitizeFileName(workerID)+".log")
}

// NewWorkerLogger writes human readable records to stdout and mirrors every
// record as JSON into the worker's own log file, so a unit's history can be
// read back from a single file per render node slot.
func NewWorkerLogger(cfg *config.Config, workerID string) (*slog.Logger, error) {
	base, err := New(Options{
		Level:            cfg.Logging.Level,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	})
	if err != nil {
		return nil, err
	}
	fileHandler, err := newHandler(Options{
		Level:            cfg.Logging.Level,
		Format:           "json",
		OutputPaths:      []string{WorkerLogPath(cfg, workerID)},
		ErrorOutputPaths: []string{WorkerLogPath(cfg, workerID)},
	})
	if err != nil {
		return nil, err
	}
	return TeeLogger(base, fileHandler).With(String(FieldWorkerID, workerID)), nil
}

func parseLevel(level string) slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		if strings.EqualFold(strings.TrimSpace(level), "warning") {
			return slog.LevelWarn
		}
		return slog.LevelInfo
	}
	return lvl
}

func orDefault(value []string, fallback ...string) []string {
	if len(value) == 0 {
		return fallback
	}
	return value
}

// openWriters resolves "stdout", "stderr" and file paths into one writer.
// Each destination is opened once. stderr is dropped when stdout is already
// a destination, so console records are not printed twice.
func openWriters(paths ...[]string) (io.Writer, error) {
	var all []string
	for _, list := range paths {
		all = append(all, list...)
	}
	seen := make(map[string]bool)
	for _, p := range all {
		seen[strings.TrimSpace(p)] = true
	}

	var writers []io.Writer
	opened := make(map[string]bool)
	for _, p := range all {
		p = strings.TrimSpace(p)
		if p == "" || opened[p] {
			continue
		}
		opened[p] = true
		switch p {
		case "stdout":
			writers = append(writers, os.Stdout)
		case "stderr":
			if !seen["stdout"] {
				writers = append(writers, os.Stderr)
			}
		default:
			f, err := openLogFile(p)
			if err != nil {
				return nil, err
			}
			writers = append(writers, f)
		}
	}

	switch len(writers) {
	case 0:
		return os.Stdout, nil
	case 1:
		return writers[0], nil
	default:
		return io.MultiWriter(writers...), nil
	}
}

func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory for %s: %w", path, err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o664)
	if err != nil {
		return nil, fmt.Errorf("open log file %s: %w", path, err)
	}
	return f, nil
}
