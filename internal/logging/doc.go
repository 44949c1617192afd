// Package logging assembles structured slog loggers and formatting helpers used
// across reelforge commands and workers.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so executor code can automatically
// tag log lines with job IDs, unit names, and worker IDs. The package also
// provides a no-op logger for tests and wiring code that cannot fail.
//
// Prefer these constructors over hand-rolled slog setup so every worker emits
// records with the same shape.
package logging
