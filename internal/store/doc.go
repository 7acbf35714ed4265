// Package store reads the source dataset from a read-only LMDB environment.
//
// Every value in the environment is a Python pickle. The package exposes one
// typed accessor per key namespace (dataset length, per-frame episode index,
// per-frame image payload, per-episode instruction) backed by one decoder per
// namespace, so malformed values surface as ErrDecode and absent keys as
// ErrNotFound instead of as loosely typed blobs.
//
// The environment is opened with Readonly|NoLock: the store never writes and
// assumes no concurrent writer, matching how datasets are produced offline.
package store
