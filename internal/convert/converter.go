package convert

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"episodereel/internal/frames"
	"episodereel/internal/logging"
	"episodereel/internal/manifest"
	"episodereel/internal/services"
)

// DefaultMaxLength bounds the number of frames a single run may cover.
const DefaultMaxLength = 4_000_000

// Source is the read-only dataset the converter pulls from.
type Source interface {
	DatasetLength() (int, error)
	EpisodeIndex(frame int) (int, error)
	FrameImage(frame int) ([]byte, error)
	Instruction(episode int) (string, error)
}

// Encoder writes buffered frames to a video file.
type Encoder interface {
	Encode(ctx context.Context, path string, buffered []frames.Frame) error
}

// Verifier checks a video after it has been written.
type Verifier interface {
	Verify(ctx context.Context, path string, frames int) error
}

// Episode describes a flushed episode.
type Episode struct {
	ID         int
	FirstFrame int
	Frames     int
	Path       string
	Text       string
}

// Recorder is notified after each episode is flushed. Recorder errors are
// logged and do not abort the run.
type Recorder interface {
	RecordEpisode(ctx context.Context, episode Episode) error
}

// Progress receives per-frame progress.
type Progress interface {
	Start(total int)
	Advance()
	Finish()
}

// Options controls a conversion run.
type Options struct {
	OutDir        string
	StartRatio    float64
	EndRatio      float64
	MaxLength     int
	Resolution    int
	FlushTrailing bool
}

// Option customizes a Converter.
type Option func(*Converter)

// WithVerifier checks every written video.
func WithVerifier(v Verifier) Option {
	return func(c *Converter) { c.verifier = v }
}

// WithRecorder reports flushed episodes to r.
func WithRecorder(r Recorder) Option {
	return func(c *Converter) { c.recorder = r }
}

// WithProgress reports per-frame progress to p.
func WithProgress(p Progress) Option {
	return func(c *Converter) { c.progress = p }
}

// Converter turns a Source into per-episode videos and a manifest.
type Converter struct {
	source   Source
	encoder  Encoder
	verifier Verifier
	recorder Recorder
	progress Progress
	opts     Options
	logger   *slog.Logger
}

// New constructs a converter. A zero MaxLength selects DefaultMaxLength.
func New(source Source, encoder Encoder, opts Options, logger *slog.Logger, options ...Option) *Converter {
	if opts.MaxLength <= 0 {
		opts.MaxLength = DefaultMaxLength
	}
	c := &Converter{
		source:  source,
		encoder: encoder,
		opts:    opts,
		logger:  logging.NewComponentLogger(logger, "convert"),
	}
	for _, option := range options {
		option(c)
	}
	return c
}

// run holds the state of one Run call.
type run struct {
	*Converter
	logger     *slog.Logger
	summary    Summary
	buffer     []frames.Frame
	firstFrame int
}

// Run performs the conversion.
func (c *Converter) Run(ctx context.Context) (Summary, error) {
	started := time.Now()
	ctx = services.WithStage(ctx, "convert")
	r := &run{Converter: c, logger: logging.WithContext(ctx, c.logger)}
	err := r.execute(ctx)
	r.summary.Elapsed = time.Since(started)
	if err != nil {
		r.logger.Error("conversion failed",
			logging.String("range", r.summary.Range.String()),
			logging.Int("frames_read", r.summary.FramesRead),
			logging.Int("episodes_flushed", r.summary.EpisodesFlushed()),
			logging.Error(err),
		)
		return r.summary, err
	}
	r.logger.Info("conversion completed",
		logging.String("range", r.summary.Range.String()),
		logging.Int("frames_read", r.summary.FramesRead),
		logging.Int("episodes_flushed", r.summary.EpisodesFlushed()),
		logging.String(logging.FieldPath, r.summary.ManifestPath),
		logging.Duration("elapsed", r.summary.Elapsed),
	)
	return r.summary, nil
}

// Plan validates the options against the dataset and returns the frame range
// a Run would cover. It reads the dataset length and touches nothing on disk.
func (c *Converter) Plan() (Range, int, error) {
	if c.opts.OutDir == "" {
		return Range{}, 0, services.Wrap(services.ErrConfiguration, "convert", "options", "output directory is required", nil)
	}
	if c.opts.Resolution < 0 || c.opts.Resolution%2 != 0 {
		return Range{}, 0, services.Wrap(services.ErrValidation, "convert", "options", fmt.Sprintf("resolution %d must be a non-negative even number", c.opts.Resolution), nil)
	}

	length, err := c.source.DatasetLength()
	if err != nil {
		return Range{}, 0, err
	}
	rng, err := ComputeRange(length, c.opts.StartRatio, c.opts.EndRatio)
	if err != nil {
		return Range{}, length, err
	}
	if rng.Len() > c.opts.MaxLength {
		return rng, length, services.Wrap(services.ErrValidation, "convert", "range",
			fmt.Sprintf("range %s covers %d frames, above max_length %d", rng, rng.Len(), c.opts.MaxLength), nil)
	}
	return rng, length, nil
}

func (r *run) execute(ctx context.Context) error {
	rng, length, err := r.Plan()
	r.summary.DatasetLen = length
	r.summary.Range = rng
	if err != nil {
		return err
	}
	if err := os.MkdirAll(r.opts.OutDir, 0o755); err != nil {
		return services.Wrap(services.ErrTransient, "convert", "ensure output dir", r.opts.OutDir, err)
	}

	r.logger.Info("conversion started",
		logging.Int("dataset_length", length),
		logging.String("range", rng.String()),
		logging.String("out_dir", r.opts.OutDir),
	)

	if r.progress != nil {
		r.progress.Start(rng.Len())
		defer r.progress.Finish()
	}

	r.summary.Entries = []manifest.Entry{}
	last := 0
	for frame := rng.Start; frame < rng.End; frame++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		episode, err := r.source.EpisodeIndex(frame)
		if err != nil {
			return err
		}
		if episode > last && len(r.buffer) > 0 {
			if err := r.flush(ctx, last); err != nil {
				return err
			}
		}
		switch {
		case episode > last:
			last = episode
		case episode < last:
			logging.Warn(r.logger, "episode index decreased; frame kept in current episode", "episode_order",
				logging.Int(logging.FieldFrameIndex, frame),
				logging.Int(logging.FieldEpisodeID, episode),
				logging.Int("current_episode_id", last),
			)
		}

		payload, err := r.source.FrameImage(frame)
		if err != nil {
			return err
		}
		decoded, err := frames.Decode(payload)
		if err != nil {
			return fmt.Errorf("frame %d: %w", frame, err)
		}
		if len(r.buffer) == 0 {
			r.firstFrame = frame
		}
		r.buffer = append(r.buffer, frames.Resize(decoded, r.opts.Resolution))
		r.summary.FramesRead++
		if r.progress != nil {
			r.progress.Advance()
		}
	}

	if len(r.buffer) > 0 {
		trailing := &Trailing{Episode: last, Frames: len(r.buffer), Flushed: r.opts.FlushTrailing}
		r.summary.Trailing = trailing
		if r.opts.FlushTrailing {
			if err := r.flush(ctx, last); err != nil {
				return err
			}
		} else {
			r.logger.Warn("trailing episode discarded",
				logging.String(logging.FieldDecisionType, "trailing_episode"),
				logging.String("decision_result", "discarded"),
				logging.String("decision_reason", "no boundary observed before range end"),
				logging.Int(logging.FieldEpisodeID, trailing.Episode),
				logging.Int(logging.FieldFrameCount, trailing.Frames),
				logging.Alert("trailing_episode"),
			)
			r.buffer = nil
		}
	}

	path, err := manifest.Write(r.opts.OutDir, r.summary.Entries)
	if err != nil {
		return err
	}
	r.summary.ManifestPath = path
	return nil
}

// flush encodes the buffered frames of episode and appends its manifest entry.
func (r *run) flush(ctx context.Context, episode int) error {
	logger := r.logger.With(logging.Int(logging.FieldEpisodeID, episode))

	text, err := r.source.Instruction(episode)
	if err != nil {
		return err
	}
	path := manifest.VideoPath(r.opts.OutDir, episode)
	count := len(r.buffer)
	if err := r.encoder.Encode(ctx, path, r.buffer); err != nil {
		return fmt.Errorf("episode %d: %w", episode, err)
	}
	if r.verifier != nil {
		if err := r.verifier.Verify(ctx, path, count); err != nil {
			return fmt.Errorf("episode %d: %w", episode, err)
		}
	}

	r.summary.Entries = append(r.summary.Entries, manifest.NewVideoEntry(path, text))
	logger.Info("episode flushed",
		logging.Int(logging.FieldFrameCount, count),
		logging.Int("first_frame", r.firstFrame),
		logging.String(logging.FieldPath, path),
	)

	if r.recorder != nil {
		record := Episode{ID: episode, FirstFrame: r.firstFrame, Frames: count, Path: path, Text: text}
		if err := r.recorder.RecordEpisode(ctx, record); err != nil {
			logging.Warn(logger, "episode not journaled", "journal_write", logging.Error(err))
		}
	}
	r.buffer = nil
	return nil
}
