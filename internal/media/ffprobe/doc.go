// Package ffprobe provides a typed wrapper around ffprobe JSON output and a
// verifier for videos written by the converter.
//
// Key types:
//   - Result: parsed ffprobe output containing streams and format metadata
//   - Stream: individual video stream properties, including nb_frames
//   - Verifier: post-encode check of stream and frame counts
package ffprobe
