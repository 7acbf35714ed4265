package config

import (
	"fmt"
	"os"
	"strings"
)

// Normalize trims, expands, and defaults every field. Load calls it; the CLI
// calls it again after applying flag overrides.
func (c *Config) Normalize() error {
	if err := c.normalizeConvert(); err != nil {
		return err
	}
	c.normalizeFFmpeg()
	if err := c.normalizeJournal(); err != nil {
		return err
	}
	return c.normalizeLogging()
}

func (c *Config) normalizeConvert() error {
	var err error
	if c.Convert.InDir, err = expandHome(strings.TrimSpace(c.Convert.InDir)); err != nil {
		return fmt.Errorf("convert.in_dir: %w", err)
	}
	if c.Convert.OutDir, err = expandHome(strings.TrimSpace(c.Convert.OutDir)); err != nil {
		return fmt.Errorf("convert.out_dir: %w", err)
	}
	if c.Convert.MaxLength == 0 {
		c.Convert.MaxLength = defaultMaxLength
	}
	return nil
}

func (c *Config) normalizeFFmpeg() {
	c.FFmpeg.Binary = strings.TrimSpace(c.FFmpeg.Binary)
	if value, ok := os.LookupEnv("EPISODEREEL_FFMPEG"); ok && strings.TrimSpace(value) != "" {
		c.FFmpeg.Binary = strings.TrimSpace(value)
	}
	if c.FFmpeg.Binary == "" {
		c.FFmpeg.Binary = defaultFFmpegBinary
	}
	c.FFmpeg.FFprobeBinary = strings.TrimSpace(c.FFmpeg.FFprobeBinary)
	if value, ok := os.LookupEnv("EPISODEREEL_FFPROBE"); ok && strings.TrimSpace(value) != "" {
		c.FFmpeg.FFprobeBinary = strings.TrimSpace(value)
	}
	if c.FFmpeg.FFprobeBinary == "" {
		c.FFmpeg.FFprobeBinary = defaultFFprobeBinary
	}
	c.FFmpeg.Codec = strings.TrimSpace(c.FFmpeg.Codec)
	if c.FFmpeg.Codec == "" {
		c.FFmpeg.Codec = defaultCodec
	}
	c.FFmpeg.PixelFormat = strings.ToLower(strings.TrimSpace(c.FFmpeg.PixelFormat))
	if c.FFmpeg.PixelFormat == "" {
		c.FFmpeg.PixelFormat = defaultPixelFormat
	}
	if c.FFmpeg.FrameRate == 0 {
		c.FFmpeg.FrameRate = defaultFrameRate
	}
	c.FFmpeg.Preset = strings.TrimSpace(c.FFmpeg.Preset)
}

func (c *Config) normalizeJournal() error {
	if strings.TrimSpace(c.Journal.Path) == "" {
		c.Journal.Path = defaultJournalPath
	}
	var err error
	if c.Journal.Path, err = expandPath(strings.TrimSpace(c.Journal.Path)); err != nil {
		return fmt.Errorf("journal.path: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() error {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if file := strings.TrimSpace(c.Logging.File); file != "" {
		expanded, err := expandPath(file)
		if err != nil {
			return fmt.Errorf("logging.file: %w", err)
		}
		c.Logging.File = expanded
	}
	return nil
}
