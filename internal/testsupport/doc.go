// Package testsupport holds fixtures shared by package tests: LMDB datasets
// with pickled values, JPEG payloads, and stub ffmpeg/ffprobe executables.
package testsupport
