package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"episodereel/internal/testsupport"
)

type cliTestEnv struct {
	baseDir     string
	homeDir     string
	dataDir     string
	outDir      string
	journalPath string
}

var defaultInstructions = map[int]string{
	3: "pick up the blue block",
	4: "open the drawer",
	5: "push the button",
}

// setupCLITestEnv isolates HOME and the working directory, points ffmpeg at
// the capture stub, and writes a dataset with episodes 3, 4, and 5.
func setupCLITestEnv(t *testing.T, ds testsupport.Dataset) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)
	chdirForTest(t, base)
	t.Setenv("EPISODEREEL_FFMPEG", testsupport.StubBinary(t, "ffmpeg", testsupport.CaptureFFmpegScript))
	t.Setenv("EPISODEREEL_FFPROBE", "")

	if ds.Episodes == nil {
		ds.Episodes = []int{3, 3, 3, 4, 4, 5, 5, 5}
	}
	if ds.Instructions == nil {
		ds.Instructions = defaultInstructions
	}
	dataDir := filepath.Join(base, "dataset")
	testsupport.WriteDataset(t, dataDir, ds)

	return &cliTestEnv{
		baseDir:     base,
		homeDir:     homeDir,
		dataDir:     dataDir,
		outDir:      filepath.Join(base, "out"),
		journalPath: filepath.Join(homeDir, ".local", "share", "episodereel", "journal.db"),
	}
}

func (e *cliTestEnv) convertArgs(extra ...string) []string {
	return append([]string{"convert", "--in_dir", e.dataDir, "--out_dir", e.outDir}, extra...)
}

func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Fatalf("expected %q in output:\n%s", needle, haystack)
	}
}

func requireVideoFrames(t *testing.T, path string, first, count int) {
	t.Helper()
	captured := testsupport.ReadFrames(t, path, 16, 16)
	if len(captured) != count {
		t.Fatalf("%s: expected %d frames, got %d", path, count, len(captured))
	}
	for i, pix := range captured {
		if !testsupport.NearLevel(pix, testsupport.FrameLevel(first+i), 3) {
			t.Fatalf("%s: frame %d does not match source frame %d", path, i, first+i)
		}
	}
}

func requireMissing(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected %s to be absent, stat err %v", path, err)
	}
}

// chdirForTest mirrors testing.T.Chdir (Go 1.24+) for older toolchains.
func chdirForTest(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir %s: %v", dir, err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Fatalf("restore working directory: %v", err)
		}
	})
}
