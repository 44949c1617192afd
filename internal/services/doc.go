// Package services defines shared utilities consumed by the worker executors
// and the CLI.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, work unit names, unit kinds, and
//     worker identifiers for logging.
//   - Structured error markers plus the Wrap helper that decide whether a
//     failed unit is worth handing back to the queue for another attempt.
//
// Use these helpers when wiring new executor logic so failure handling and
// observability stay uniform across unit kinds.
package services
