// Package config loads, normalizes, and validates reelforge configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours the REELFORGE_QUEUE_DB environment
// fallback. The Config type centralizes the encoder and assembler binaries,
// chunking parameters, fingerprint policy, and worker timing so the CLI and
// worker processes discover them in one pass.
//
// Always obtain settings through this package so downstream code receives
// expanded paths, canonical log formats, and clear validation errors.
package config
