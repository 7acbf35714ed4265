package store

import (
	"bytes"
	"fmt"
	"math/big"
	"unicode/utf8"

	pickle "github.com/kisielk/og-rek"

	"episodereel/internal/services"
)

var jpegMagic = []byte{0xFF, 0xD8}

func unpickle(key string, raw []byte) (any, error) {
	value, err := pickle.NewDecoder(bytes.NewReader(raw)).Decode()
	if err != nil {
		return nil, decodeError(key, "unpickle value", err)
	}
	return value, nil
}

// decodeInt decodes the integer namespaces (cur_step, cur_episode_*).
func decodeInt(key string, raw []byte) (int, error) {
	value, err := unpickle(key, raw)
	if err != nil {
		return 0, err
	}
	switch v := value.(type) {
	case int64:
		return int(v), nil
	case int:
		return v, nil
	case *big.Int:
		if !v.IsInt64() {
			return 0, decodeError(key, fmt.Sprintf("integer %s out of range", v.String()), nil)
		}
		return int(v.Int64()), nil
	default:
		return 0, decodeError(key, fmt.Sprintf("expected integer, got %T", value), nil)
	}
}

// decodeText decodes the instruction namespace (inst_*).
func decodeText(key string, raw []byte) (string, error) {
	value, err := unpickle(key, raw)
	if err != nil {
		return "", err
	}
	switch v := value.(type) {
	case string:
		return v, nil
	case pickle.Bytes:
		if !utf8.ValidString(string(v)) {
			return "", decodeError(key, "instruction bytes are not valid UTF-8", nil)
		}
		return string(v), nil
	default:
		return "", decodeError(key, fmt.Sprintf("expected text, got %T", value), nil)
	}
}

// decodeImage decodes the frame namespace (rgb_static_*): a pickled uint8
// torch tensor, pickled bytes, or an unpickled JPEG stream.
func decodeImage(key string, raw []byte) ([]byte, error) {
	if bytes.HasPrefix(raw, jpegMagic) {
		return bytes.Clone(raw), nil
	}
	value, err := unpickle(key, raw)
	if err != nil {
		return nil, err
	}
	var payload []byte
	if call, ok := isTensor(value); ok {
		payload, err = tensorBytes(call)
		if err != nil {
			return nil, decodeError(key, "decode tensor", err)
		}
	} else if payload, ok = byteString(value); !ok {
		return nil, decodeError(key, fmt.Sprintf("expected encoded image bytes, got %T", value), nil)
	}
	if len(payload) == 0 {
		return nil, decodeError(key, "empty image payload", nil)
	}
	return payload, nil
}

// byteString extracts raw bytes from the shapes Python produces for bytes and
// bytearray across pickle protocols.
func byteString(value any) ([]byte, bool) {
	switch v := value.(type) {
	case pickle.Bytes:
		return []byte(v), true
	case []byte:
		return bytes.Clone(v), true
	case pickle.Call:
		// Protocols 0-2 spell bytes as _codecs.encode(str, 'latin1') and
		// bytearray as builtins.bytearray(...).
		switch {
		case v.Callable.Name == "encode" && v.Callable.Module == "_codecs" && len(v.Args) == 2:
			if text, ok := v.Args[0].(string); ok {
				return latin1(text), true
			}
		case v.Callable.Name == "bytearray" && (v.Callable.Module == "builtins" || v.Callable.Module == "__builtin__"):
			if len(v.Args) == 0 {
				return []byte{}, true
			}
			if len(v.Args) == 2 {
				if text, ok := v.Args[0].(string); ok {
					return latin1(text), true
				}
			}
			return byteString(v.Args[0])
		}
	}
	return nil, false
}

func latin1(text string) []byte {
	out := make([]byte, 0, len(text))
	for _, r := range text {
		out = append(out, byte(r))
	}
	return out
}

func decodeError(key, message string, err error) error {
	return services.Wrap(services.ErrDecode, "store", key, message, err)
}
