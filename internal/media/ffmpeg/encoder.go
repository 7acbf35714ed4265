package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"

	ffmpeggo "github.com/u2takey/ffmpeg-go"

	"episodereel/internal/frames"
	"episodereel/internal/logging"
	"episodereel/internal/services"
)

// Options configures the encoder.
type Options struct {
	Binary      string
	Codec       string
	PixelFormat string
	FrameRate   int
	Preset      string
}

// Encoder creates video files from RGB frames.
type Encoder struct {
	opts   Options
	logger *slog.Logger
}

// NewEncoder constructs an encoder, filling unset options with libx264,
// yuv420p, and 5 fps.
func NewEncoder(opts Options, logger *slog.Logger) *Encoder {
	if strings.TrimSpace(opts.Binary) == "" {
		opts.Binary = "ffmpeg"
	}
	if strings.TrimSpace(opts.Codec) == "" {
		opts.Codec = "libx264"
	}
	if strings.TrimSpace(opts.PixelFormat) == "" {
		opts.PixelFormat = "yuv420p"
	}
	if opts.FrameRate <= 0 {
		opts.FrameRate = 5
	}
	return &Encoder{opts: opts, logger: logging.NewComponentLogger(logger, "ffmpeg")}
}

// Args returns the ffmpeg arguments used to encode width x height rgb24
// frames from stdin into path.
func (e *Encoder) Args(path string, width, height int) []string {
	input := ffmpeggo.KwArgs{
		"f":         "rawvideo",
		"pix_fmt":   "rgb24",
		"s":         fmt.Sprintf("%dx%d", width, height),
		"framerate": e.opts.FrameRate,
	}
	output := ffmpeggo.KwArgs{
		"c:v":      e.opts.Codec,
		"pix_fmt":  e.opts.PixelFormat,
		"r":        e.opts.FrameRate,
		"f":        "mp4",
		"movflags": "+faststart",
	}
	if e.opts.Preset != "" {
		output["preset"] = e.opts.Preset
	}
	return ffmpeggo.Input("pipe:", input).
		Output(path, output).
		GlobalArgs("-hide_banner", "-loglevel", "error", "-nostdin").
		OverWriteOutput().
		GetArgs()
}

// Encode writes frames to path, one frame at a time, then flushes the encoder.
func (e *Encoder) Encode(ctx context.Context, path string, buffered []frames.Frame) error {
	if len(buffered) == 0 {
		return services.Wrap(services.ErrValidation, "ffmpeg", "encode", fmt.Sprintf("no frames for %s", path), nil)
	}
	writer, err := e.Create(ctx, path, buffered[0].Width, buffered[0].Height)
	if err != nil {
		return err
	}
	for _, frame := range buffered {
		if err := writer.WriteFrame(frame); err != nil {
			_ = writer.Abort()
			return err
		}
	}
	return writer.Close()
}

// Create starts an ffmpeg process writing to path.
func (e *Encoder) Create(ctx context.Context, path string, width, height int) (*Writer, error) {
	if width <= 0 || height <= 0 {
		return nil, services.Wrap(services.ErrValidation, "ffmpeg", "create", fmt.Sprintf("invalid frame size %dx%d", width, height), nil)
	}
	args := e.Args(path, width, height)
	cmd := exec.CommandContext(ctx, e.opts.Binary, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "ffmpeg", "create", "open stdin pipe", err)
	}
	w := &Writer{cmd: cmd, stdin: stdin, path: path, width: width, height: height}
	cmd.Stdout = io.Discard
	cmd.Stderr = &w.stderr

	e.logger.Debug("launching ffmpeg",
		logging.String("command", e.opts.Binary+" "+strings.Join(args, " ")),
		logging.String(logging.FieldPath, path),
	)
	if err := cmd.Start(); err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "ffmpeg", "start", e.opts.Binary, err)
	}
	return w, nil
}

// Writer feeds frames into one running ffmpeg process.
type Writer struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stderr bytes.Buffer
	path   string
	width  int
	height int
	frames int
	done   bool
}

// Frames reports how many frames have been written.
func (w *Writer) Frames() int { return w.frames }

// WriteFrame submits one frame. Every frame must match the writer's size.
func (w *Writer) WriteFrame(frame frames.Frame) error {
	if w.done {
		return services.Wrap(services.ErrExternalTool, "ffmpeg", "write", "writer already closed", nil)
	}
	if frame.Width != w.width || frame.Height != w.height || len(frame.Pix) != frame.Size() {
		return services.Wrap(services.ErrValidation, "ffmpeg", "write",
			fmt.Sprintf("frame %d is %dx%d, expected %dx%d", w.frames, frame.Width, frame.Height, w.width, w.height), nil)
	}
	if _, err := w.stdin.Write(frame.Pix); err != nil {
		// The process most likely exited; Wait surfaces its stderr.
		waitErr := w.finish()
		if waitErr != nil {
			return waitErr
		}
		return services.Wrap(services.ErrExternalTool, "ffmpeg", "write", w.path, err)
	}
	w.frames++
	return nil
}

// Close flushes buffered frames through the encoder and waits for ffmpeg to
// finalize the container.
func (w *Writer) Close() error {
	if w.done {
		return nil
	}
	return w.finish()
}

// Abort stops the process without waiting for a clean flush.
func (w *Writer) Abort() error {
	if w.done {
		return nil
	}
	if w.cmd.Process != nil {
		_ = w.cmd.Process.Kill()
	}
	_ = w.finish()
	return nil
}

func (w *Writer) finish() error {
	w.done = true
	closeErr := w.stdin.Close()
	waitErr := w.cmd.Wait()
	if waitErr != nil {
		detail := strings.TrimSpace(w.stderr.String())
		if detail == "" {
			detail = w.path
		}
		return services.Wrap(services.ErrExternalTool, "ffmpeg", "encode", detail, waitErr)
	}
	if closeErr != nil && !errors.Is(closeErr, io.ErrClosedPipe) {
		return services.Wrap(services.ErrExternalTool, "ffmpeg", "flush", w.path, closeErr)
	}
	return nil
}
