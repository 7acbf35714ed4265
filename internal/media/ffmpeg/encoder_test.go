package ffmpeg_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"episodereel/internal/frames"
	"episodereel/internal/logging"
	"episodereel/internal/media/ffmpeg"
	"episodereel/internal/services"
	"episodereel/internal/testsupport"
)

func solidFrame(size int, level byte) frames.Frame {
	return frames.Frame{Width: size, Height: size, Pix: bytes.Repeat([]byte{level}, size*size*3)}
}

func TestArgsDescribeRawvideoToH264(t *testing.T) {
	enc := ffmpeg.NewEncoder(ffmpeg.Options{}, logging.NewNop())
	args := enc.Args("out/3.mp4", 200, 200)
	joined := strings.Join(args, " ")

	for _, want := range []string{
		"-f rawvideo",
		"-pix_fmt rgb24",
		"-s 200x200",
		"-framerate 5",
		"-i pipe:",
		"-c:v libx264",
		"-pix_fmt yuv420p",
		"-r 5",
		"out/3.mp4",
		"-y",
	} {
		if !strings.Contains(joined, want) {
			t.Fatalf("expected %q in %q", want, joined)
		}
	}
	if strings.Index(joined, "-i pipe:") > strings.Index(joined, "-c:v") {
		t.Fatalf("input options must precede output options: %q", joined)
	}
}

func TestArgsHonourOptions(t *testing.T) {
	enc := ffmpeg.NewEncoder(ffmpeg.Options{Codec: "libx265", PixelFormat: "yuv444p", FrameRate: 15, Preset: "veryfast"}, nil)
	joined := strings.Join(enc.Args("x.mp4", 64, 48), " ")
	for _, want := range []string{"-c:v libx265", "-pix_fmt yuv444p", "-r 15", "-framerate 15", "-preset veryfast", "-s 64x48"} {
		if !strings.Contains(joined, want) {
			t.Fatalf("expected %q in %q", want, joined)
		}
	}
}

func TestEncodePipesFramesInOrder(t *testing.T) {
	binary := testsupport.StubBinary(t, "ffmpeg", testsupport.CaptureFFmpegScript)
	enc := ffmpeg.NewEncoder(ffmpeg.Options{Binary: binary}, logging.NewNop())
	out := filepath.Join(t.TempDir(), "7.mp4")

	input := []frames.Frame{solidFrame(4, 10), solidFrame(4, 20), solidFrame(4, 30)}
	if err := enc.Encode(context.Background(), out, input); err != nil {
		t.Fatalf("Encode: %v", err)
	}

	captured := testsupport.ReadFrames(t, out, 4, 4)
	if len(captured) != len(input) {
		t.Fatalf("captured %d frames, want %d", len(captured), len(input))
	}
	for i, frame := range captured {
		if !bytes.Equal(frame, input[i].Pix) {
			t.Fatalf("frame %d mismatch", i)
		}
	}
	args, err := os.ReadFile(out + ".args")
	if err != nil {
		t.Fatalf("read args: %v", err)
	}
	if !strings.Contains(string(args), "libx264") {
		t.Fatalf("expected codec in recorded args, got %q", args)
	}
}

func TestWriterRejectsSizeChange(t *testing.T) {
	binary := testsupport.StubBinary(t, "ffmpeg", testsupport.CaptureFFmpegScript)
	enc := ffmpeg.NewEncoder(ffmpeg.Options{Binary: binary}, logging.NewNop())
	out := filepath.Join(t.TempDir(), "1.mp4")

	err := enc.Encode(context.Background(), out, []frames.Frame{solidFrame(4, 1), solidFrame(6, 1)})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation for mismatched frame, got %v", err)
	}
}

func TestEncodeSurfacesFFmpegFailure(t *testing.T) {
	binary := testsupport.StubBinary(t, "ffmpeg", testsupport.FailingScript("Unknown encoder"))
	enc := ffmpeg.NewEncoder(ffmpeg.Options{Binary: binary}, logging.NewNop())

	err := enc.Encode(context.Background(), filepath.Join(t.TempDir(), "0.mp4"), []frames.Frame{solidFrame(2, 0)})
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected ErrExternalTool, got %v", err)
	}
	if !strings.Contains(err.Error(), "Unknown encoder") {
		t.Fatalf("expected ffmpeg stderr in error, got %v", err)
	}
}

func TestEncodeMissingBinary(t *testing.T) {
	enc := ffmpeg.NewEncoder(ffmpeg.Options{Binary: filepath.Join(t.TempDir(), "nope")}, logging.NewNop())
	err := enc.Encode(context.Background(), filepath.Join(t.TempDir(), "0.mp4"), []frames.Frame{solidFrame(2, 0)})
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected ErrExternalTool, got %v", err)
	}
}

func TestEncodeRequiresFrames(t *testing.T) {
	enc := ffmpeg.NewEncoder(ffmpeg.Options{}, logging.NewNop())
	if err := enc.Encode(context.Background(), "x.mp4", nil); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}
