package testsupport

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"math/big"
	"testing"

	pickle "github.com/kisielk/og-rek"
)

// TorchLayout selects how the storage inside a pickled tensor is serialized.
type TorchLayout int

const (
	// TorchZip is the torch.save zip container (archive/data.pkl + archive/data/<key>).
	TorchZip TorchLayout = iota
	// TorchLegacy is the stream layout Storage.__reduce__ writes.
	TorchLegacy
)

// TorchTensor pickles payload the way pickle.dumps(torch.tensor(..., dtype=uint8))
// does. pad bytes are placed before payload in the storage and skipped through
// the storage offset.
func TorchTensor(t testing.TB, payload []byte, pad int, layout TorchLayout) []byte {
	t.Helper()

	storage := append(bytes.Repeat([]byte{0xAB}, pad), payload...)
	var blob []byte
	switch layout {
	case TorchLegacy:
		blob = legacyStorage(t, storage)
	default:
		blob = zipStorage(t, storage)
	}
	return Pickle(t, pickle.Call{
		Callable: pickle.Class{Module: "torch._utils", Name: "_rebuild_tensor_v2"},
		Args: pickle.Tuple{
			pickle.Call{
				Callable: pickle.Class{Module: "torch.storage", Name: "_load_from_bytes"},
				Args:     pickle.Tuple{pickle.Bytes(blob)},
			},
			pad,
			pickle.Tuple{len(payload)},
			pickle.Tuple{1},
			false,
			pickle.Call{Callable: pickle.Class{Module: "collections", Name: "OrderedDict"}, Args: pickle.Tuple{}},
		},
	})
}

func storagePid(numel int) pickle.Ref {
	return pickle.Ref{Pid: pickle.Tuple{
		"storage",
		pickle.Class{Module: "torch", Name: "ByteStorage"},
		"0",
		"cpu",
		numel,
	}}
}

func zipStorage(t testing.TB, storage []byte) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	files := []struct {
		name string
		data []byte
	}{
		{"archive/data.pkl", pickleProto(t, 2, storagePid(len(storage)))},
		{"archive/byteorder", []byte("little")},
		{"archive/data/0", storage},
		{"archive/version", []byte("3\n")},
	}
	for _, f := range files {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: f.name, Method: zip.Store})
		if err != nil {
			t.Fatalf("zip %s: %v", f.name, err)
		}
		if _, err := w.Write(f.data); err != nil {
			t.Fatalf("zip %s: %v", f.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

func legacyStorage(t testing.TB, storage []byte) []byte {
	t.Helper()

	magic, _ := new(big.Int).SetString("1950a86a20f9469cfc6c", 16)
	var buf bytes.Buffer
	buf.Write(pickleProto(t, 2, magic))
	buf.Write(pickleProto(t, 2, 1001))
	buf.Write(pickleProto(t, 2, map[string]any{"protocol_version": 1001, "little_endian": true}))
	buf.Write(pickleProto(t, 2, storagePid(len(storage))))
	buf.Write(pickleProto(t, 2, []any{"0"}))
	if err := binary.Write(&buf, binary.LittleEndian, int64(len(storage))); err != nil {
		t.Fatalf("write storage size: %v", err)
	}
	buf.Write(storage)
	return buf.Bytes()
}

func pickleProto(t testing.TB, protocol int, v any) []byte {
	t.Helper()

	var buf bytes.Buffer
	if err := pickle.NewEncoderWithConfig(&buf, &pickle.EncoderConfig{Protocol: protocol}).Encode(v); err != nil {
		t.Fatalf("pickle %T: %v", v, err)
	}
	return buf.Bytes()
}
