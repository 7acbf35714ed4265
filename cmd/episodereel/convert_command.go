package main

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"episodereel/internal/config"
	"episodereel/internal/convert"
	"episodereel/internal/deps"
	"episodereel/internal/journal"
	"episodereel/internal/logging"
	"episodereel/internal/media/ffmpeg"
	"episodereel/internal/media/ffprobe"
	"episodereel/internal/outlock"
	"episodereel/internal/services"
	"episodereel/internal/store"
)

type convertFlags struct {
	inDir         string
	outDir        string
	maxLength     int
	startRatio    float64
	endRatio      float64
	flushTrailing bool
	fps           int
	resolution    int
	verify        bool
	noJournal     bool
}

func newConvertCommand(ctx *commandContext) *cobra.Command {
	var flags convertFlags

	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Convert a dataset range into per-episode MP4 files and metadata.json",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			applyConvertFlags(cmd, cfg, flags)
			if err := cfg.Normalize(); err != nil {
				return err
			}
			if err := cfg.ValidateConvert(); err != nil {
				return services.Wrap(services.ErrConfiguration, "convert", "config", "", err)
			}
			if err := deps.RequireAvailable(deps.CheckBinaries(deps.ForConfig(cfg))); err != nil {
				return err
			}
			logger, err := ctx.logger(cmd)
			if err != nil {
				return err
			}
			return runConvert(cmd, cfg, logger, !flags.noJournal)
		},
	}

	cmd.Flags().StringVar(&flags.inDir, "in_dir", "", "LMDB dataset directory")
	cmd.Flags().StringVar(&flags.outDir, "out_dir", "", "Directory for videos and metadata.json (created if absent)")
	cmd.Flags().IntVar(&flags.maxLength, "max_length", config.Default().Convert.MaxLength, "Maximum number of frames a run may cover")
	cmd.Flags().Float64Var(&flags.startRatio, "start_ratio", 0, "Start of the frame range as a fraction of the dataset")
	cmd.Flags().Float64Var(&flags.endRatio, "end_ratio", 1, "End of the frame range as a fraction of the dataset")
	cmd.Flags().BoolVar(&flags.flushTrailing, "flush_trailing", false, "Write the episode still buffered at range end")
	cmd.Flags().IntVar(&flags.fps, "fps", 0, "Output frame rate (default from config, 5)")
	cmd.Flags().IntVar(&flags.resolution, "resolution", 0, "Resize frames to an N x N square (0 keeps native size)")
	cmd.Flags().BoolVar(&flags.verify, "verify", false, "Check every video with ffprobe after encoding")
	cmd.Flags().BoolVar(&flags.noJournal, "no_journal", false, "Do not record this run in the journal")
	return cmd
}

// applyConvertFlags copies explicitly set flags over the loaded config.
func applyConvertFlags(cmd *cobra.Command, cfg *config.Config, flags convertFlags) {
	changed := cmd.Flags().Changed
	if changed("in_dir") {
		cfg.Convert.InDir = flags.inDir
	}
	if changed("out_dir") {
		cfg.Convert.OutDir = flags.outDir
	}
	if changed("max_length") {
		cfg.Convert.MaxLength = flags.maxLength
	}
	if changed("start_ratio") {
		cfg.Convert.StartRatio = flags.startRatio
	}
	if changed("end_ratio") {
		cfg.Convert.EndRatio = flags.endRatio
	}
	if changed("flush_trailing") {
		cfg.Convert.FlushTrailing = flags.flushTrailing
	}
	if changed("fps") {
		cfg.FFmpeg.FrameRate = flags.fps
	}
	if changed("resolution") {
		cfg.Convert.Resolution = flags.resolution
	}
	if changed("verify") {
		cfg.Convert.Verify = flags.verify
	}
}

func runConvert(cmd *cobra.Command, cfg *config.Config, baseLogger *slog.Logger, journalAllowed bool) error {
	runID := uuid.NewString()
	ctx := services.WithRunID(cmd.Context(), runID)
	logger := logging.WithContext(ctx, baseLogger)

	source, err := store.Open(cfg.Convert.InDir)
	if err != nil {
		return err
	}
	defer source.Close()

	encoder := ffmpeg.NewEncoder(ffmpeg.Options{
		Binary:      cfg.FFmpeg.Binary,
		Codec:       cfg.FFmpeg.Codec,
		PixelFormat: cfg.FFmpeg.PixelFormat,
		FrameRate:   cfg.FFmpeg.FrameRate,
		Preset:      cfg.FFmpeg.Preset,
	}, baseLogger)
	convertOpts := convert.Options{
		OutDir:        cfg.Convert.OutDir,
		StartRatio:    cfg.Convert.StartRatio,
		EndRatio:      cfg.Convert.EndRatio,
		MaxLength:     cfg.Convert.MaxLength,
		Resolution:    cfg.Convert.Resolution,
		FlushTrailing: cfg.Convert.FlushTrailing,
	}

	// Reject the range before anything is created under out_dir.
	if _, _, err := convert.New(source, encoder, convertOpts, baseLogger).Plan(); err != nil {
		return err
	}

	if err := cfg.EnsureOutputDir(); err != nil {
		return services.Wrap(services.ErrTransient, "convert", "output dir", "", err)
	}
	lock, err := outlock.Acquire(cfg.Convert.OutDir)
	if err != nil {
		return err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			logger.Warn("failed to release output lock", logging.String(logging.FieldPath, lock.Path()), logging.Error(err))
		}
	}()

	options := []convert.Option{convert.WithProgress(newFrameProgress(cmd.ErrOrStderr(), logger))}
	if cfg.Convert.Verify {
		options = append(options, convert.WithVerifier(ffprobe.Verifier{Binary: cfg.FFmpeg.FFprobeBinary}))
	}

	var runJournal *journal.Store
	if cfg.Journal.Enabled && journalAllowed {
		runJournal = beginJournalRun(ctx, cfg, runID, logger)
		if runJournal != nil {
			defer runJournal.Close()
			options = append(options, convert.WithRecorder(journalRecorder{store: runJournal, runID: runID}))
		}
	}

	converter := convert.New(source, encoder, convertOpts, baseLogger, options...)
	summary, runErr := converter.Run(ctx)

	if runJournal != nil {
		outcome := journal.Outcome{
			RangeStart: summary.Range.Start,
			RangeEnd:   summary.Range.End,
			FramesRead: summary.FramesRead,
			Err:        runErr,
		}
		if err := runJournal.FinishRun(context.WithoutCancel(ctx), runID, outcome); err != nil {
			logging.Warn(logger, "failed to finish journal run", "journal_write", logging.Error(err))
		}
	}
	if runErr != nil {
		return runErr
	}

	fmt.Fprintln(cmd.OutOrStdout(), renderSummary(runID, source.Path(), summary))
	return nil
}

func beginJournalRun(ctx context.Context, cfg *config.Config, runID string, logger *slog.Logger) *journal.Store {
	runJournal, err := journal.Open(ctx, cfg.Journal.Path)
	if err != nil {
		logging.Warn(logger, "journal unavailable; run will not be recorded", "journal_open",
			logging.String(logging.FieldPath, cfg.Journal.Path), logging.Error(err))
		return nil
	}
	if _, err := runJournal.BeginRun(ctx, runID, cfg.Convert.InDir, cfg.Convert.OutDir); err != nil {
		logging.Warn(logger, "journal unavailable; run will not be recorded", "journal_write", logging.Error(err))
		_ = runJournal.Close()
		return nil
	}
	return runJournal
}

// journalRecorder stores flushed episodes under one run.
type journalRecorder struct {
	store *journal.Store
	runID string
}

func (r journalRecorder) RecordEpisode(ctx context.Context, episode convert.Episode) error {
	return r.store.RecordEpisode(ctx, r.runID, journal.Episode{
		EpisodeID:  episode.ID,
		FirstFrame: episode.FirstFrame,
		FrameCount: episode.Frames,
		FilePath:   episode.Path,
		Text:       episode.Text,
	})
}

func renderSummary(runID, source string, summary convert.Summary) string {
	trailing := "none"
	if t := summary.Trailing; t != nil {
		action := "discarded"
		if t.Flushed {
			action = "written"
		}
		trailing = fmt.Sprintf("episode %d, %d frames (%s)", t.Episode, t.Frames, action)
	}
	return renderFields("Conversion", [][2]string{
		{"Run ID", runID},
		{"Dataset", source},
		{"Dataset frames", strconv.Itoa(summary.DatasetLen)},
		{"Range", summary.Range.String()},
		{"Frames read", strconv.Itoa(summary.FramesRead)},
		{"Episodes written", strconv.Itoa(summary.EpisodesFlushed())},
		{"Trailing episode", trailing},
		{"Manifest", summary.ManifestPath},
		{"Elapsed", summary.Elapsed.Round(time.Millisecond).String()},
	})
}
