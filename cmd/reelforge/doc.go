// Package main hosts the reelforge CLI entrypoint and command graph.
//
// The Cobra-based command tree submits transcode jobs, previews job graphs,
// runs workers, inspects and repairs the shared work queue, and reports on
// image sequences and node readiness. It centralizes configuration
// resolution and queue access so subcommands can focus on presentation.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
