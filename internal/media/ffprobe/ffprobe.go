package ffprobe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"episodereel/internal/services"
)

// Result represents the parsed output from an ffprobe inspection.
type Result struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
}

// Stream describes a single stream in the media container.
type Stream struct {
	Index      int    `json:"index"`
	CodecName  string `json:"codec_name"`
	CodecType  string `json:"codec_type"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	PixFmt     string `json:"pix_fmt"`
	FrameRate  string `json:"avg_frame_rate"`
	RFrameRate string `json:"r_frame_rate"`
	NBFrames   string `json:"nb_frames"`
}

// Format captures container-level metadata extracted by ffprobe.
type Format struct {
	Filename   string `json:"filename"`
	NBStreams  int    `json:"nb_streams"`
	Duration   string `json:"duration"`
	FormatName string `json:"format_name"`
}

// Inspect executes ffprobe against the provided path and decodes the JSON response.
func Inspect(ctx context.Context, binary string, path string) (Result, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffprobe"
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return Result{}, services.Wrap(services.ErrValidation, "ffprobe", "inspect", "empty path", nil)
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, binary, "-v", "error", "-hide_banner", "-show_format", "-show_streams", "-of", "json", "--", path)
	cmd.Stderr = &stderr
	output, err := cmd.Output()
	if err != nil {
		return Result{}, services.Wrap(services.ErrExternalTool, "ffprobe", "inspect", strings.TrimSpace(stderr.String()), err)
	}

	var result Result
	if err := json.Unmarshal(output, &result); err != nil {
		return Result{}, services.Wrap(services.ErrExternalTool, "ffprobe", "parse", path, err)
	}
	return result, nil
}

// VideoStreamCount returns the number of video streams discovered.
func (r Result) VideoStreamCount() int {
	count := 0
	for _, stream := range r.Streams {
		if strings.EqualFold(stream.CodecType, "video") {
			count++
		}
	}
	return count
}

// VideoFrameCount returns the frame count of the first video stream and
// whether the container reported one.
func (r Result) VideoFrameCount() (int, bool) {
	for _, stream := range r.Streams {
		if !strings.EqualFold(stream.CodecType, "video") {
			continue
		}
		count, err := strconv.Atoi(strings.TrimSpace(stream.NBFrames))
		if err != nil || count < 0 {
			return 0, false
		}
		return count, true
	}
	return 0, false
}

// Verifier checks freshly encoded videos.
type Verifier struct {
	Binary string
}

// Verify inspects path and fails unless it holds exactly one video stream
// whose reported frame count, when present, equals frames.
func (v Verifier) Verify(ctx context.Context, path string, frames int) error {
	result, err := Inspect(ctx, v.Binary, path)
	if err != nil {
		return err
	}
	if count := result.VideoStreamCount(); count != 1 {
		return services.Wrap(services.ErrValidation, "ffprobe", "verify", fmt.Sprintf("%s has %d video streams, expected 1", path, count), nil)
	}
	if got, ok := result.VideoFrameCount(); ok && got != frames {
		return services.Wrap(services.ErrValidation, "ffprobe", "verify", fmt.Sprintf("%s has %d frames, expected %d", path, got, frames), nil)
	}
	return nil
}
