package main

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"

	"episodereel/internal/logging"
)

// frameProgress draws a progress bar on terminals and falls back to sampled
// log lines otherwise.
type frameProgress struct {
	out         io.Writer
	interactive bool
	logger      *slog.Logger
	sampler     *logging.ProgressSampler
	bar         *progressbar.ProgressBar
	total       int
	done        int
}

func newFrameProgress(out io.Writer, logger *slog.Logger) *frameProgress {
	return &frameProgress{
		out:         out,
		interactive: isTerminal(out),
		logger:      logger,
		sampler:     logging.NewProgressSampler(10),
	}
}

func isTerminal(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func (p *frameProgress) Start(total int) {
	p.total = total
	p.done = 0
	p.sampler.Reset()
	if p.interactive && total > 0 {
		p.bar = progressbar.NewOptions(total,
			progressbar.OptionSetWriter(p.out),
			progressbar.OptionSetDescription("frames"),
			progressbar.OptionShowCount(),
			progressbar.OptionSetPredictTime(true),
			progressbar.OptionThrottle(100*time.Millisecond),
			progressbar.OptionClearOnFinish(),
		)
	}
}

func (p *frameProgress) Advance() {
	p.done++
	if p.bar != nil {
		_ = p.bar.Add(1)
		return
	}
	if p.total <= 0 {
		return
	}
	percent := float64(p.done) * 100 / float64(p.total)
	if p.sampler.ShouldLog(percent) {
		p.logger.Info("conversion progress",
			logging.Int("frames_done", p.done),
			logging.Int("frames_total", p.total),
			logging.Float64("percent", percent),
		)
	}
}

func (p *frameProgress) Finish() {
	if p.bar != nil {
		_ = p.bar.Finish()
		p.bar = nil
	}
}
