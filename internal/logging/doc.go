// Package logging assembles structured slog loggers and formatting helpers used
// across episodereel.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so pipeline code can tag log
// lines with the run ID and stage automatically. The package also provides a
// no-op logger for tests and wiring code that cannot fail, and a progress
// sampler that keeps non-interactive progress output readable.
package logging
