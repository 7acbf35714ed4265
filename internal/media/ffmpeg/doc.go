// Package ffmpeg encodes sequences of RGB frames into video files by piping
// rawvideo into an ffmpeg process.
//
// Key types:
//   - Encoder: codec, pixel format, frame rate, and binary location
//   - Writer: one running ffmpeg process accepting frames on stdin
//
// Frames are submitted one at a time; Close flushes the encoder by closing
// stdin and waits for the container to be finalized.
package ffmpeg
