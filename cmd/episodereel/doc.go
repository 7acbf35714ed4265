// Package main hosts the episodereel CLI entrypoint and command graph.
//
// The Cobra command tree resolves configuration once, applies flag overrides,
// and hands the result to the internal packages: convert runs the dataset to
// video conversion, inspect reports on a dataset without writing anything,
// history reads the run journal, and config scaffolds or checks the TOML file.
//
// Keep this package lean: new behaviour belongs in internal packages first and
// is surfaced here through commands or flags.
package main
