// Package convert turns a frame-indexed dataset into per-episode videos and a
// metadata.json manifest.
//
// Converter walks a contiguous frame range in order, buffering decoded frames
// until the episode index increases. The buffered episode is then encoded to
// <out_dir>/<episode>.mp4 and recorded in the manifest together with its
// language annotation. The buffer still open when the range ends is discarded
// unless Options.FlushTrailing is set. Any lookup, decode, or encode failure
// aborts the run; videos already written stay on disk and the manifest is not
// written.
package convert
