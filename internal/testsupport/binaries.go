package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

// CaptureFFmpegScript stands in for ffmpeg: it copies the raw frames piped on
// stdin into the .mp4 output argument so tests can inspect exactly what the
// encoder received, and records its arguments next to it.
const CaptureFFmpegScript = `#!/bin/sh
out=""
for arg in "$@"; do
	case "$arg" in
		*.mp4) out="$arg" ;;
	esac
done
if [ -z "$out" ]; then
	echo "no output path" >&2
	exit 2
fi
printf '%s\n' "$@" > "$out.args"
cat > "$out"
`

// FailingScript exits non-zero after draining stdin and printing message.
func FailingScript(message string) string {
	return "#!/bin/sh\ncat > /dev/null\necho '" + message + "' >&2\nexit 1\n"
}

// StubBinary writes an executable script named name into a temp directory and
// returns its absolute path.
func StubBinary(t testing.TB, name, script string) string {
	t.Helper()

	binDir := filepath.Join(t.TempDir(), "bin")
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		t.Fatalf("mkdir bin dir: %v", err)
	}
	target := filepath.Join(binDir, name)
	if err := os.WriteFile(target, []byte(script), 0o755); err != nil {
		t.Fatalf("write stub %s: %v", name, err)
	}
	return target
}

// ReadFrames splits a raw rgb24 capture into per-frame pixel slices.
func ReadFrames(t testing.TB, path string, width, height int) [][]byte {
	t.Helper()

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read capture %s: %v", path, err)
	}
	frameSize := width * height * 3
	if frameSize == 0 || len(raw)%frameSize != 0 {
		t.Fatalf("capture %s has %d bytes, not a multiple of %d", path, len(raw), frameSize)
	}
	frames := make([][]byte, 0, len(raw)/frameSize)
	for off := 0; off < len(raw); off += frameSize {
		frames = append(frames, raw[off:off+frameSize])
	}
	return frames
}

// NearLevel reports whether every byte of pix is within tolerance of level.
func NearLevel(pix []byte, level uint8, tolerance int) bool {
	for _, b := range pix {
		diff := int(b) - int(level)
		if diff < -tolerance || diff > tolerance {
			return false
		}
	}
	return true
}
