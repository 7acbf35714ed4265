package store_test

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"

	"episodereel/internal/services"
	"episodereel/internal/store"
	"episodereel/internal/testsupport"
)

func openFixture(t *testing.T, ds testsupport.Dataset) *store.Store {
	t.Helper()

	dir := filepath.Join(t.TempDir(), "lmdb")
	testsupport.WriteDataset(t, dir, ds)
	s, err := store.Open(dir)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStoreTypedLookups(t *testing.T) {
	s := openFixture(t, testsupport.Dataset{
		Episodes:     []int{0, 0, 1},
		Instructions: map[int]string{0: "push the blue block", 1: "open the drawer"},
	})

	length, err := s.DatasetLength()
	if err != nil {
		t.Fatalf("DatasetLength: %v", err)
	}
	if length != 3 {
		t.Fatalf("DatasetLength = %d, want 3", length)
	}

	for frame, want := range []int{0, 0, 1} {
		got, err := s.EpisodeIndex(frame)
		if err != nil {
			t.Fatalf("EpisodeIndex(%d): %v", frame, err)
		}
		if got != want {
			t.Fatalf("EpisodeIndex(%d) = %d, want %d", frame, got, want)
		}
	}

	payload, err := s.FrameImage(2)
	if err != nil {
		t.Fatalf("FrameImage: %v", err)
	}
	if !bytes.HasPrefix(payload, []byte{0xFF, 0xD8}) {
		t.Fatalf("expected JPEG payload, got % x", payload[:4])
	}

	text, err := s.Instruction(1)
	if err != nil {
		t.Fatalf("Instruction: %v", err)
	}
	if text != "open the drawer" {
		t.Fatalf("Instruction(1) = %q", text)
	}
}

func TestStoreReadsTensorFrames(t *testing.T) {
	s := openFixture(t, testsupport.Dataset{
		Episodes:     []int{2, 2},
		Instructions: map[int]string{2: "lift the red block"},
		TensorFrames: true,
	})

	for frame := 0; frame < 2; frame++ {
		payload, err := s.FrameImage(frame)
		if err != nil {
			t.Fatalf("FrameImage(%d): %v", frame, err)
		}
		if want := testsupport.SolidJPEG(t, 16, testsupport.FrameLevel(frame)); !bytes.Equal(payload, want) {
			t.Fatalf("FrameImage(%d) returned %d bytes, want the stored %d-byte JPEG", frame, len(payload), len(want))
		}
	}
}

func TestStoreMissingKeysAreNotFound(t *testing.T) {
	s := openFixture(t, testsupport.Dataset{
		Episodes:     []int{4},
		Instructions: map[int]string{4: "lift"},
		Omit:         []string{store.FrameKey(0)},
	})

	checks := map[string]func() error{
		"frame":       func() error { _, err := s.FrameImage(0); return err },
		"episode":     func() error { _, err := s.EpisodeIndex(9); return err },
		"instruction": func() error { _, err := s.Instruction(5); return err },
	}
	for name, check := range checks {
		t.Run(name, func(t *testing.T) {
			err := check()
			if !errors.Is(err, services.ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}
			if !store.IsNotFound(err) {
				t.Fatal("IsNotFound should agree with errors.Is")
			}
		})
	}
}

func TestStoreMalformedValuesAreDecodeErrors(t *testing.T) {
	s := openFixture(t, testsupport.Dataset{
		Episodes:     []int{0, 0},
		Instructions: map[int]string{0: "stack"},
		Raw: map[string][]byte{
			store.EpisodeKey(1): testsupport.Pickle(t, "not a number"),
			store.FrameKey(1):   []byte("garbage"),
		},
	})

	if _, err := s.EpisodeIndex(1); !errors.Is(err, services.ErrDecode) {
		t.Fatalf("expected ErrDecode for string episode, got %v", err)
	}
	if _, err := s.FrameImage(1); !errors.Is(err, services.ErrDecode) {
		t.Fatalf("expected ErrDecode for garbage frame, got %v", err)
	}
}

func TestStoreAcceptsUnpickledJPEG(t *testing.T) {
	jpegBytes := testsupport.SolidJPEG(t, 8, 100)
	s := openFixture(t, testsupport.Dataset{
		Episodes: []int{0},
		Raw:      map[string][]byte{store.FrameKey(0): jpegBytes},
	})

	payload, err := s.FrameImage(0)
	if err != nil {
		t.Fatalf("FrameImage: %v", err)
	}
	if !bytes.Equal(payload, jpegBytes) {
		t.Fatal("expected raw JPEG to be returned verbatim")
	}
}

func TestStoreCloseIsIdempotent(t *testing.T) {
	s := openFixture(t, testsupport.Dataset{Episodes: []int{0}})
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if _, err := s.DatasetLength(); err == nil {
		t.Fatal("expected lookup on closed store to fail")
	}
}

func TestOpenMissingPath(t *testing.T) {
	_, err := store.Open(filepath.Join(t.TempDir(), "absent"))
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := store.Open("  "); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration for empty path, got %v", err)
	}
}

func TestKeys(t *testing.T) {
	if store.FrameKey(12) != "rgb_static_12" {
		t.Fatalf("unexpected frame key %q", store.FrameKey(12))
	}
	if store.EpisodeKey(0) != "cur_episode_0" {
		t.Fatalf("unexpected episode key %q", store.EpisodeKey(0))
	}
	if store.InstructionKey(301) != "inst_301" {
		t.Fatalf("unexpected instruction key %q", store.InstructionKey(301))
	}
}
