package testsupport

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"strconv"
	"testing"

	"github.com/PowerDNS/lmdb-go/lmdb"
	pickle "github.com/kisielk/og-rek"
)

// Dataset describes an LMDB fixture laid out like a recorded robot dataset.
type Dataset struct {
	// Episodes holds the episode index of each frame; its length is the
	// number of frames written.
	Episodes []int
	// Instructions maps episode index to language annotation.
	Instructions map[int]string
	// Size is the square frame edge in pixels. Zero means 16.
	Size int
	// Omit lists keys that must not be written.
	Omit []string
	// Raw overrides the stored bytes for specific keys.
	Raw map[string][]byte
	// TensorFrames stores frames as pickled uint8 torch tensors instead of
	// pickled bytes.
	TensorFrames bool
}

// FrameLevel is the gray level painted into frame i by WriteDataset.
func FrameLevel(i int) uint8 {
	return uint8(16 + (i*29)%224)
}

// WriteDataset creates an LMDB environment at dir holding ds with every value
// pickled the way the Python recorder stores it.
func WriteDataset(t testing.TB, dir string, ds Dataset) {
	t.Helper()

	size := ds.Size
	if size <= 0 {
		size = 16
	}
	values := map[string][]byte{
		"cur_step": Pickle(t, len(ds.Episodes)-1),
	}
	for i, episode := range ds.Episodes {
		values[keyf("cur_episode_", i)] = Pickle(t, episode)
		frame := SolidJPEG(t, size, FrameLevel(i))
		if ds.TensorFrames {
			values[keyf("rgb_static_", i)] = TorchTensor(t, frame, 0, TorchZip)
		} else {
			values[keyf("rgb_static_", i)] = Pickle(t, pickle.Bytes(frame))
		}
	}
	for episode, text := range ds.Instructions {
		values[keyf("inst_", episode)] = Pickle(t, text)
	}
	for _, key := range ds.Omit {
		delete(values, key)
	}
	for key, raw := range ds.Raw {
		values[key] = raw
	}
	WriteRaw(t, dir, values)
}

// WriteRaw stores values verbatim in a fresh LMDB environment at dir.
func WriteRaw(t testing.TB, dir string, values map[string][]byte) {
	t.Helper()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
	env, err := lmdb.NewEnv()
	if err != nil {
		t.Fatalf("lmdb.NewEnv: %v", err)
	}
	defer env.Close()
	if err := env.SetMapSize(64 << 20); err != nil {
		t.Fatalf("SetMapSize: %v", err)
	}
	if err := env.Open(dir, 0, 0o644); err != nil {
		t.Fatalf("open lmdb env: %v", err)
	}
	err = env.Update(func(txn *lmdb.Txn) error {
		dbi, err := txn.OpenRoot(0)
		if err != nil {
			return err
		}
		for key, value := range values {
			if err := txn.Put(dbi, []byte(key), value, 0); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("write lmdb fixture: %v", err)
	}
}

// Pickle serializes v with pickle protocol 3.
func Pickle(t testing.TB, v any) []byte {
	t.Helper()

	var buf bytes.Buffer
	enc := pickle.NewEncoderWithConfig(&buf, &pickle.EncoderConfig{Protocol: 3})
	if err := enc.Encode(v); err != nil {
		t.Fatalf("pickle %T: %v", v, err)
	}
	return buf.Bytes()
}

// SolidJPEG encodes a size x size gray image.
func SolidJPEG(t testing.TB, size int, level uint8) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, size, size))
	fill := color.RGBA{R: level, G: level, B: level, A: 0xFF}
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.SetRGBA(x, y, fill)
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95}); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	return buf.Bytes()
}

func keyf(prefix string, n int) string {
	return prefix + strconv.Itoa(n)
}
