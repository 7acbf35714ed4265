// Package services defines shared utilities consumed by the conversion
// pipeline and its external tool integrations.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs and stage names for logging.
//   - Structured error markers plus the Wrap helper that tag failures as
//     lookup, decode, external tool, validation, or I/O problems.
//   - Classify, which maps a tagged error onto the short status label the run
//     journal persists.
//
// Use these helpers when wiring new pipeline code so error handling and
// observability stay uniform.
package services
