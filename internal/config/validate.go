package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateRatios(); err != nil {
		return err
	}
	if err := c.validateFFmpeg(); err != nil {
		return err
	}
	return c.validateLogging()
}

// ValidateConvert runs Validate and additionally requires the source and
// destination paths a conversion needs.
func (c *Config) ValidateConvert() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(c.Convert.InDir) == "" {
		return errors.New("convert.in_dir is required (--in_dir)")
	}
	if strings.TrimSpace(c.Convert.OutDir) == "" {
		return errors.New("convert.out_dir is required (--out_dir)")
	}
	return nil
}

func (c *Config) validateRatios() error {
	start, end := c.Convert.StartRatio, c.Convert.EndRatio
	if !(start >= 0 && start <= 1) {
		return fmt.Errorf("convert.start_ratio must be within [0, 1], got %v", start)
	}
	if !(end >= 0 && end <= 1) {
		return fmt.Errorf("convert.end_ratio must be within [0, 1], got %v", end)
	}
	if start > end {
		return fmt.Errorf("convert.start_ratio (%v) must not exceed convert.end_ratio (%v)", start, end)
	}
	if c.Convert.MaxLength < 0 {
		return fmt.Errorf("convert.max_length must be positive, got %d", c.Convert.MaxLength)
	}
	if c.Convert.Resolution < 0 {
		return fmt.Errorf("convert.resolution must be zero or positive, got %d", c.Convert.Resolution)
	}
	if c.Convert.Resolution%2 != 0 {
		return fmt.Errorf("convert.resolution must be even for %s, got %d", c.FFmpeg.PixelFormat, c.Convert.Resolution)
	}
	return nil
}

func (c *Config) validateFFmpeg() error {
	if c.FFmpeg.FrameRate <= 0 {
		return fmt.Errorf("ffmpeg.frame_rate must be positive, got %d", c.FFmpeg.FrameRate)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}
