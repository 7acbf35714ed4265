package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode/utf16"
	"unicode/utf8"

	"episodereel/internal/services"
)

const (
	// FileName is the manifest written into the output directory.
	FileName = "metadata.json"
	// TypeVideo is the only record type the converter emits.
	TypeVideo = "video"
)

// Entry describes one produced video.
type Entry struct {
	FilePath string `json:"file_path"`
	Text     string `json:"text"`
	Type     string `json:"type"`
}

// NewVideoEntry builds the record for an episode video.
func NewVideoEntry(path, text string) Entry {
	return Entry{FilePath: path, Text: text, Type: TypeVideo}
}

// VideoPath returns where the video for episode is written inside outDir,
// spelled the way Python's str(Path(outDir) / "<episode>.mp4") spells it:
// empty and "." segments are dropped but ".." is kept.
func VideoPath(outDir string, episode int) string {
	return joinPure(outDir, strconv.Itoa(episode)+".mp4")
}

func joinPure(dir, name string) string {
	prefix := ""
	switch {
	case strings.HasPrefix(dir, "//") && !strings.HasPrefix(dir, "///"):
		prefix = "//"
	case strings.HasPrefix(dir, "/"):
		prefix = "/"
	}
	parts := make([]string, 0, strings.Count(dir, "/")+2)
	for _, part := range strings.Split(dir, "/") {
		if part != "" && part != "." {
			parts = append(parts, part)
		}
	}
	return prefix + strings.Join(append(parts, name), "/")
}

// Path returns the manifest location inside outDir.
func Path(outDir string) string {
	return filepath.Join(outDir, FileName)
}

// Marshal renders entries as a four-space indented JSON array with every
// non-ASCII character escaped as \uXXXX and no trailing newline.
func Marshal(entries []Entry) ([]byte, error) {
	if entries == nil {
		entries = []Entry{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(entries); err != nil {
		return nil, err
	}
	return escapeNonASCII(bytes.TrimSuffix(buf.Bytes(), []byte("\n"))), nil
}

// escapeNonASCII rewrites every rune >= 0x7f as a \u escape, using surrogate
// pairs above the BMP. Encoder output only carries such runes inside strings.
func escapeNonASCII(data []byte) []byte {
	out := make([]byte, 0, len(data))
	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		switch {
		case r < 0x7f:
			out = append(out, data[0])
		case r > 0xffff:
			hi, lo := utf16.EncodeRune(r)
			out = fmt.Appendf(out, `\u%04x\u%04x`, hi, lo)
		default:
			out = fmt.Appendf(out, `\u%04x`, r)
		}
		data = data[size:]
	}
	return out
}

// Write serializes entries to outDir/metadata.json, replacing any existing
// file, and returns the manifest path.
func Write(outDir string, entries []Entry) (string, error) {
	payload, err := Marshal(entries)
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "manifest", "encode", "", err)
	}
	target := Path(outDir)
	tmp := filepath.Join(outDir, fmt.Sprintf(".%s-%d.tmp", FileName, time.Now().UnixNano()))
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		return "", services.Wrap(services.ErrTransient, "manifest", "write", tmp, err)
	}
	if err := os.Rename(tmp, target); err != nil {
		_ = os.Remove(tmp)
		return "", services.Wrap(services.ErrTransient, "manifest", "rename", target, err)
	}
	return target, nil
}

// Read loads the manifest stored in outDir.
func Read(outDir string) ([]Entry, error) {
	path := Path(outDir)
	payload, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, services.Wrap(services.ErrNotFound, "manifest", "read", path, err)
		}
		return nil, services.Wrap(services.ErrTransient, "manifest", "read", path, err)
	}
	var entries []Entry
	if err := json.Unmarshal(payload, &entries); err != nil {
		return nil, services.Wrap(services.ErrDecode, "manifest", "parse", path, err)
	}
	return entries, nil
}
