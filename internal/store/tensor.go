package store

import (
	"archive/zip"
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math/big"
	"path"

	pickle "github.com/kisielk/og-rek"
)

// A pickled torch tensor is _rebuild_tensor_v2(storage, offset, size, stride,
// requires_grad, backward_hooks[, metadata]) where storage is
// _load_from_bytes(<torch.save stream>).
var (
	rebuildTensor = pickle.Class{Module: "torch._utils", Name: "_rebuild_tensor_v2"}
	loadFromBytes = pickle.Class{Module: "torch.storage", Name: "_load_from_bytes"}
)

// legacyMagic opens a torch.save stream written without the zip container.
var legacyMagic, _ = new(big.Int).SetString("1950a86a20f9469cfc6c", 16)

const legacyProtocolVersion = 1001

var zipMagic = []byte("PK\x03\x04")

// Only single-byte storages can back a JPEG byte tensor.
var byteStorages = map[string]bool{
	"ByteStorage":    true,
	"UntypedStorage": true,
}

// storageRef is the persistent id torch writes for a storage:
// ('storage', <class>, key, location, numel[, view_metadata]).
type storageRef struct {
	key   string
	numel int
}

func isTensor(value any) (pickle.Call, bool) {
	call, ok := value.(pickle.Call)
	return call, ok && call.Callable == rebuildTensor
}

// tensorBytes returns the contents of a contiguous uint8 tensor.
func tensorBytes(call pickle.Call) ([]byte, error) {
	if len(call.Args) < 4 {
		return nil, fmt.Errorf("tensor rebuild takes at least 4 arguments, got %d", len(call.Args))
	}
	storageCall, ok := call.Args[0].(pickle.Call)
	if !ok || storageCall.Callable != loadFromBytes || len(storageCall.Args) != 1 {
		return nil, fmt.Errorf("unsupported tensor storage %T", call.Args[0])
	}
	blob, ok := byteString(storageCall.Args[0])
	if !ok {
		return nil, fmt.Errorf("storage payload is %T, not bytes", storageCall.Args[0])
	}
	storage, err := loadStorage(blob)
	if err != nil {
		return nil, err
	}

	offset, err := pyInt(call.Args[1])
	if err != nil {
		return nil, fmt.Errorf("storage offset: %w", err)
	}
	size, err := intTuple(call.Args[2])
	if err != nil {
		return nil, fmt.Errorf("tensor size: %w", err)
	}
	stride, err := intTuple(call.Args[3])
	if err != nil {
		return nil, fmt.Errorf("tensor stride: %w", err)
	}
	if len(size) != len(stride) {
		return nil, fmt.Errorf("tensor has %d dims but %d strides", len(size), len(stride))
	}

	numel := 1
	for i := len(size) - 1; i >= 0; i-- {
		if size[i] < 0 {
			return nil, fmt.Errorf("negative tensor dim %d", size[i])
		}
		if size[i] == 0 {
			return []byte{}, nil
		}
		if size[i] != 1 && stride[i] != numel {
			return nil, errors.New("tensor is not contiguous")
		}
		if numel > len(storage)/size[i] {
			return nil, fmt.Errorf("tensor exceeds storage of %d bytes", len(storage))
		}
		numel *= size[i]
	}
	if offset < 0 || offset > len(storage)-numel {
		return nil, fmt.Errorf("tensor [%d, %d) outside storage of %d bytes", offset, offset+numel, len(storage))
	}
	return bytes.Clone(storage[offset : offset+numel]), nil
}

// loadStorage reads the bytes of the storage serialized by torch.save, in
// either the zip container or the legacy stream layout.
func loadStorage(blob []byte) ([]byte, error) {
	if bytes.HasPrefix(blob, zipMagic) {
		return loadZipStorage(blob)
	}
	return loadLegacyStorage(blob)
}

func loadZipStorage(blob []byte) ([]byte, error) {
	archive, err := zip.NewReader(bytes.NewReader(blob), int64(len(blob)))
	if err != nil {
		return nil, fmt.Errorf("open storage archive: %w", err)
	}
	files := make(map[string]*zip.File, len(archive.File))
	var pkl *zip.File
	for _, f := range archive.File {
		files[f.Name] = f
		if pkl == nil && path.Base(f.Name) == "data.pkl" {
			pkl = f
		}
	}
	if pkl == nil {
		return nil, errors.New("storage archive has no data.pkl")
	}

	rc, err := pkl.Open()
	if err != nil {
		return nil, fmt.Errorf("open data.pkl: %w", err)
	}
	ref, err := decodeStorageRoot(rc)
	rc.Close()
	if err != nil {
		return nil, err
	}

	name := path.Join(path.Dir(pkl.Name), "data", ref.key)
	record, ok := files[name]
	if !ok {
		return nil, fmt.Errorf("storage archive has no %s", name)
	}
	rc, err = record.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(io.LimitReader(rc, int64(len(blob))+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	if len(data) < ref.numel {
		return nil, fmt.Errorf("storage %s holds %d bytes, want %d", ref.key, len(data), ref.numel)
	}
	return data[:ref.numel], nil
}

// loadLegacyStorage walks magic, protocol version, sys info, the root pickle,
// the storage key list and then one size-prefixed record per key. All pickle
// decoders share one bufio.Reader so none reads past its STOP opcode.
func loadLegacyStorage(blob []byte) ([]byte, error) {
	r := bufio.NewReader(bytes.NewReader(blob))

	magic, err := pickle.NewDecoder(r).Decode()
	if err != nil {
		return nil, fmt.Errorf("storage magic: %w", err)
	}
	if m, ok := magic.(*big.Int); !ok || m.Cmp(legacyMagic) != 0 {
		return nil, errors.New("storage payload is not a torch.save stream")
	}
	version, err := pickle.NewDecoder(r).Decode()
	if err != nil {
		return nil, fmt.Errorf("storage protocol version: %w", err)
	}
	if v, err := pyInt(version); err != nil || v != legacyProtocolVersion {
		return nil, fmt.Errorf("unsupported torch.save protocol %v", version)
	}
	if _, err := pickle.NewDecoder(r).Decode(); err != nil {
		return nil, fmt.Errorf("storage sys info: %w", err)
	}
	ref, err := decodeStorageRoot(r)
	if err != nil {
		return nil, err
	}
	keysValue, err := pickle.NewDecoder(r).Decode()
	if err != nil {
		return nil, fmt.Errorf("storage keys: %w", err)
	}
	keys, ok := keysValue.([]any)
	if !ok {
		return nil, fmt.Errorf("storage keys are %T, not a list", keysValue)
	}

	for _, k := range keys {
		var numel int64
		if err := binary.Read(r, binary.LittleEndian, &numel); err != nil {
			return nil, fmt.Errorf("storage record size: %w", err)
		}
		if numel < 0 || numel > int64(len(blob)) {
			return nil, fmt.Errorf("storage record size %d out of range", numel)
		}
		if key, _ := k.(string); key != ref.key {
			if _, err := r.Discard(int(numel)); err != nil {
				return nil, fmt.Errorf("skip storage record: %w", err)
			}
			continue
		}
		if int(numel) < ref.numel {
			return nil, fmt.Errorf("storage %s holds %d bytes, want %d", ref.key, numel, ref.numel)
		}
		data := make([]byte, numel)
		if _, err := io.ReadFull(r, data); err != nil {
			return nil, fmt.Errorf("read storage record: %w", err)
		}
		return data[:ref.numel], nil
	}
	return nil, fmt.Errorf("storage %s has no record", ref.key)
}

// decodeStorageRoot decodes a pickle whose root is a persistent storage id.
func decodeStorageRoot(r io.Reader) (storageRef, error) {
	dec := pickle.NewDecoderWithConfig(r, &pickle.DecoderConfig{
		PersistentLoad: func(ref pickle.Ref) (any, error) {
			return parseStorageRef(ref)
		},
	})
	value, err := dec.Decode()
	if err != nil {
		return storageRef{}, fmt.Errorf("storage pickle: %w", err)
	}
	ref, ok := value.(storageRef)
	if !ok {
		return storageRef{}, fmt.Errorf("storage pickle holds %T", value)
	}
	return ref, nil
}

func parseStorageRef(ref pickle.Ref) (storageRef, error) {
	pid, ok := ref.Pid.(pickle.Tuple)
	if !ok || len(pid) < 5 || pid[0] != "storage" {
		return storageRef{}, fmt.Errorf("unsupported persistent id %v", ref.Pid)
	}
	class, ok := pid[1].(pickle.Class)
	if !ok || !byteStorages[class.Name] {
		return storageRef{}, fmt.Errorf("unsupported storage type %v", pid[1])
	}
	key, ok := pid[2].(string)
	if !ok {
		return storageRef{}, fmt.Errorf("storage key is %T", pid[2])
	}
	numel, err := pyInt(pid[4])
	if err != nil || numel < 0 {
		return storageRef{}, fmt.Errorf("storage size %v", pid[4])
	}
	return storageRef{key: key, numel: numel}, nil
}

func pyInt(value any) (int, error) {
	switch v := value.(type) {
	case int64:
		return int(v), nil
	case int:
		return v, nil
	case *big.Int:
		if v.IsInt64() {
			return int(v.Int64()), nil
		}
	}
	return 0, fmt.Errorf("expected integer, got %T", value)
}

func intTuple(value any) ([]int, error) {
	var items []any
	switch v := value.(type) {
	case pickle.Tuple:
		items = v
	case []any:
		items = v
	default:
		return nil, fmt.Errorf("expected tuple, got %T", value)
	}
	out := make([]int, len(items))
	for i, item := range items {
		n, err := pyInt(item)
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}
