// Package config loads, normalizes, and validates episodereel configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// EPISODEREEL_FFMPEG. Command-line flags are layered on top by the CLI after
// Load returns, so the precedence is defaults, file, environment, flags.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
