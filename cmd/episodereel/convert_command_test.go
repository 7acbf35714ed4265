package main

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"episodereel/internal/journal"
	"episodereel/internal/manifest"
	"episodereel/internal/outlock"
	"episodereel/internal/services"
	"episodereel/internal/testsupport"
)

func TestConvertWritesEpisodesAndManifest(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.Dataset{})

	out, stderr, err := runCLI(t, env.convertArgs()...)
	if err != nil {
		t.Fatalf("convert: %v\n%s", err, stderr)
	}
	requireContains(t, out, "Episodes written")
	requireContains(t, stderr, "trailing episode discarded")

	entries, err := manifest.Read(env.outDir)
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}
	want := []manifest.Entry{
		{FilePath: filepath.Join(env.outDir, "3.mp4"), Text: "pick up the blue block", Type: "video"},
		{FilePath: filepath.Join(env.outDir, "4.mp4"), Text: "open the drawer", Type: "video"},
	}
	if len(entries) != len(want) {
		t.Fatalf("expected %d entries, got %+v", len(want), entries)
	}
	for i := range want {
		if entries[i] != want[i] {
			t.Fatalf("entry %d: got %+v, want %+v", i, entries[i], want[i])
		}
	}

	requireVideoFrames(t, filepath.Join(env.outDir, "3.mp4"), 0, 3)
	requireVideoFrames(t, filepath.Join(env.outDir, "4.mp4"), 3, 2)
	requireMissing(t, filepath.Join(env.outDir, "5.mp4"))

	args, err := os.ReadFile(filepath.Join(env.outDir, "3.mp4.args"))
	if err != nil {
		t.Fatalf("read ffmpeg args: %v", err)
	}
	for _, arg := range []string{"rawvideo", "rgb24", "16x16", "libx264", "yuv420p"} {
		requireContains(t, string(args), arg)
	}
}

func TestConvertReadsTensorFrames(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.Dataset{TensorFrames: true})

	if _, stderr, err := runCLI(t, env.convertArgs("--flush_trailing")...); err != nil {
		t.Fatalf("convert: %v\n%s", err, stderr)
	}
	requireVideoFrames(t, filepath.Join(env.outDir, "3.mp4"), 0, 3)
	requireVideoFrames(t, filepath.Join(env.outDir, "4.mp4"), 3, 2)
	requireVideoFrames(t, filepath.Join(env.outDir, "5.mp4"), 5, 3)
}

func TestConvertKeepsOutDirSpelling(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.Dataset{})

	args := []string{"convert", "--in_dir", env.dataDir, "--out_dir", "./staging/../videos/"}
	if _, stderr, err := runCLI(t, args...); err != nil {
		t.Fatalf("convert: %v\n%s", err, stderr)
	}
	entries, err := manifest.Read(filepath.Join(env.baseDir, "videos"))
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}
	if len(entries) != 2 || entries[0].FilePath != "staging/../videos/3.mp4" || entries[1].FilePath != "staging/../videos/4.mp4" {
		t.Fatalf("unexpected manifest paths %+v", entries)
	}
	requireVideoFrames(t, filepath.Join(env.baseDir, "videos", "3.mp4"), 0, 3)
}

func TestConvertFlushTrailing(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.Dataset{})

	if _, stderr, err := runCLI(t, env.convertArgs("--flush_trailing")...); err != nil {
		t.Fatalf("convert: %v\n%s", err, stderr)
	}
	entries, err := manifest.Read(env.outDir)
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}
	if len(entries) != 3 || entries[2].Text != "push the button" {
		t.Fatalf("unexpected manifest %+v", entries)
	}
	requireVideoFrames(t, filepath.Join(env.outDir, "5.mp4"), 5, 3)
}

func TestConvertRatioRange(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.Dataset{})

	out, stderr, err := runCLI(t, env.convertArgs("--start_ratio", "0.5", "--end_ratio", "1")...)
	if err != nil {
		t.Fatalf("convert: %v\n%s", err, stderr)
	}
	requireContains(t, out, "[4, 8)")
	entries, err := manifest.Read(env.outDir)
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}
	if len(entries) != 1 || filepath.Base(entries[0].FilePath) != "4.mp4" {
		t.Fatalf("unexpected manifest %+v", entries)
	}
	requireVideoFrames(t, filepath.Join(env.outDir, "4.mp4"), 4, 1)
	requireMissing(t, filepath.Join(env.outDir, "3.mp4"))
}

func TestConvertRejectsMaxLength(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.Dataset{})

	_, _, err := runCLI(t, env.convertArgs("--max_length", "4")...)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	requireContains(t, err.Error(), "max_length 4")
	requireMissing(t, env.outDir)
}

func TestConvertRejectsBadRatios(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"start after end", []string{"--start_ratio", "0.8", "--end_ratio", "0.2"}},
		{"NaN start", []string{"--start_ratio", "NaN"}},
		{"NaN end", []string{"--end_ratio", "NaN"}},
		{"infinite end", []string{"--end_ratio", "+Inf"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupCLITestEnv(t, testsupport.Dataset{})

			_, _, err := runCLI(t, env.convertArgs(tt.args...)...)
			if !errors.Is(err, services.ErrConfiguration) {
				t.Fatalf("expected ErrConfiguration, got %v", err)
			}
			requireMissing(t, env.outDir)
		})
	}
}

func TestConvertRequiresPaths(t *testing.T) {
	setupCLITestEnv(t, testsupport.Dataset{})

	_, _, err := runCLI(t, "convert")
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
	requireContains(t, err.Error(), "--in_dir")
}

func TestConvertMissingAnnotationAborts(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.Dataset{Omit: []string{"inst_4"}})

	_, _, err := runCLI(t, env.convertArgs()...)
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	requireContains(t, err.Error(), "inst_4")
	if _, statErr := os.Stat(filepath.Join(env.outDir, "3.mp4")); statErr != nil {
		t.Fatalf("earlier video should remain: %v", statErr)
	}
	requireMissing(t, filepath.Join(env.outDir, "metadata.json"))

	runJournal, err := journal.Open(context.Background(), env.journalPath)
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	defer runJournal.Close()
	runs, err := runJournal.ListRuns(context.Background(), 1)
	if err != nil || len(runs) != 1 {
		t.Fatalf("expected one journaled run, got %v (%v)", runs, err)
	}
	if runs[0].Status != "missing_key" || runs[0].Episodes != 1 {
		t.Fatalf("unexpected journaled run %+v", runs[0])
	}
}

func TestConvertCorruptFrameAborts(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.Dataset{Raw: map[string][]byte{"rgb_static_1": []byte("garbage")}})

	if _, _, err := runCLI(t, env.convertArgs()...); !errors.Is(err, services.ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
}

func TestConvertEncoderFailure(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.Dataset{})
	t.Setenv("EPISODEREEL_FFMPEG", testsupport.StubBinary(t, "ffmpeg", testsupport.FailingScript("Unknown encoder libx264")))

	_, _, err := runCLI(t, env.convertArgs()...)
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected ErrExternalTool, got %v", err)
	}
	requireContains(t, err.Error(), "Unknown encoder")
}

func TestConvertRerunIsDeterministic(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.Dataset{})

	if _, _, err := runCLI(t, env.convertArgs()...); err != nil {
		t.Fatalf("first convert: %v", err)
	}
	first, err := os.ReadFile(filepath.Join(env.outDir, "metadata.json"))
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}
	stale := filepath.Join(env.outDir, "42.mp4")
	if err := os.WriteFile(stale, []byte("stale"), 0o644); err != nil {
		t.Fatalf("write stale video: %v", err)
	}

	if _, _, err := runCLI(t, env.convertArgs()...); err != nil {
		t.Fatalf("second convert: %v", err)
	}
	second, err := os.ReadFile(filepath.Join(env.outDir, "metadata.json"))
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}
	if string(first) != string(second) {
		t.Fatalf("manifest changed between runs:\n%s\n%s", first, second)
	}
	if _, err := os.Stat(stale); err != nil {
		t.Fatalf("stale video should remain: %v", err)
	}
}

func TestConvertVerify(t *testing.T) {
	tests := []struct {
		name    string
		output  string
		wantErr error
	}{
		{"passes", `{"streams":[{"codec_type":"video"}]}`, nil},
		{"no video stream", `{"streams":[]}`, services.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupCLITestEnv(t, testsupport.Dataset{})
			script := "#!/bin/sh\ncat <<'JSON'\n" + tt.output + "\nJSON\n"
			t.Setenv("EPISODEREEL_FFPROBE", testsupport.StubBinary(t, "ffprobe", script))

			_, _, err := runCLI(t, env.convertArgs("--verify")...)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("convert: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestConvertHonoursOutputLock(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.Dataset{})
	if err := os.MkdirAll(env.outDir, 0o755); err != nil {
		t.Fatalf("mkdir out: %v", err)
	}
	lock, err := outlock.Acquire(env.outDir)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer lock.Release()

	if _, _, err := runCLI(t, env.convertArgs()...); !errors.Is(err, outlock.ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}
}

func TestConvertNoJournal(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.Dataset{})

	if _, _, err := runCLI(t, env.convertArgs("--no_journal")...); err != nil {
		t.Fatalf("convert: %v", err)
	}
	requireMissing(t, env.journalPath)
}

func TestConvertUsesConfigFile(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.Dataset{})
	configPath := filepath.Join(env.baseDir, "custom.toml")
	content := "[convert]\nin_dir = \"" + env.dataDir + "\"\nout_dir = \"" + env.outDir + "\"\nflush_trailing = true\n\n[journal]\nenabled = false\n"
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, _, err := runCLI(t, "--config", configPath, "convert"); err != nil {
		t.Fatalf("convert: %v", err)
	}
	entries, err := manifest.Read(env.outDir)
	if err != nil || len(entries) != 3 {
		t.Fatalf("expected three entries, got %+v (%v)", entries, err)
	}
	requireMissing(t, env.journalPath)
}

func TestConvertJSONLogs(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.Dataset{})

	_, stderr, err := runCLI(t, append([]string{"--log_format", "json"}, env.convertArgs()...)...)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	var sawFlush bool
	for _, line := range strings.Split(strings.TrimSpace(stderr), "\n") {
		var record map[string]any
		if err := json.Unmarshal([]byte(line), &record); err != nil {
			t.Fatalf("non-JSON log line %q: %v", line, err)
		}
		if record["msg"] == "episode flushed" {
			sawFlush = true
			if record["run_id"] == nil || record["episode_id"] == nil {
				t.Fatalf("missing structured fields in %v", record)
			}
		}
	}
	if !sawFlush {
		t.Fatalf("expected episode flushed log, got:\n%s", stderr)
	}
}

func TestConvertFailsFastWithoutFFmpeg(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.Dataset{})
	t.Setenv("EPISODEREEL_FFMPEG", "clearly-not-present-ffmpeg")

	_, _, err := runCLI(t, env.convertArgs()...)
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
	requireMissing(t, env.outDir)
}
