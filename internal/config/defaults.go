package config

const (
	defaultStartRatio    = 0.0
	defaultEndRatio      = 1.0
	defaultMaxLength     = 4000000
	defaultFFmpegBinary  = "ffmpeg"
	defaultFFprobeBinary = "ffprobe"
	defaultCodec         = "libx264"
	defaultPixelFormat   = "yuv420p"
	defaultFrameRate     = 5
	defaultJournalPath   = "~/.local/share/episodereel/journal.db"
	defaultLogFormat     = "console"
	defaultLogLevel      = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Convert: Convert{
			StartRatio: defaultStartRatio,
			EndRatio:   defaultEndRatio,
			MaxLength:  defaultMaxLength,
		},
		FFmpeg: FFmpeg{
			Binary:        defaultFFmpegBinary,
			FFprobeBinary: defaultFFprobeBinary,
			Codec:         defaultCodec,
			PixelFormat:   defaultPixelFormat,
			FrameRate:     defaultFrameRate,
		},
		Journal: Journal{
			Enabled: true,
			Path:    defaultJournalPath,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
