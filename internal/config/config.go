// ABOUTME: Configuration file schema for mvxplay and mvx-serve
// ABOUTME: YAML structs with their defaults
package config

import (
	"time"

	"github.com/mvxplay/mvxplay-go/pkg/mvx"
	"github.com/mvxplay/mvxplay-go/pkg/stream"
)

// Config is the root of the YAML configuration file. Command-line flags
// override individual fields.
type Config struct {
	Player  PlayerConfig  `yaml:"player"`
	Stream  StreamConfig  `yaml:"stream"`
	Server  ServerConfig  `yaml:"server"`
	Metrics MetricsConfig `yaml:"metrics"`
	Log     LogConfig     `yaml:"log"`
}

// PlayerConfig describes what mvxplay plays and how
type PlayerConfig struct {
	// Source is "tone", a WAV/MP3/FLAC path or URL, a ws:// stream URL or
	// "discover" to pick the first stream found over mDNS.
	Source string `yaml:"source"`

	// Output is the audio backend: oto, malgo or null.
	Output string `yaml:"output"`

	// Mode is once, loop or realtime.
	Mode string `yaml:"mode"`

	FPS      float64 `yaml:"fps"`
	BitDepth int     `yaml:"bit_depth"`
	Volume   float64 `yaml:"volume"`
	Muted    bool    `yaml:"muted"`
	Speed    float64 `yaml:"speed"`
}

// StreamConfig tunes the audio buffering
type StreamConfig struct {
	Capacity         int           `yaml:"capacity"`
	MinBufferedAudio time.Duration `yaml:"min_buffered_audio"`
	PollInterval     time.Duration `yaml:"poll_interval"`
	OutputSampleRate int           `yaml:"output_sample_rate"`
}

// ServerConfig configures mvx-serve
type ServerConfig struct {
	Addr      string `yaml:"addr"`
	Name      string `yaml:"name"`
	Advertise bool   `yaml:"advertise"`
}

// MetricsConfig configures the Prometheus endpoint. An empty Addr disables it.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// LogConfig configures log output
type LogConfig struct {
	File string `yaml:"file"`
}

// Default returns the configuration used when no file is given
func Default() *Config {
	return &Config{
		Player: PlayerConfig{
			Source:   "tone",
			Output:   "oto",
			Mode:     mvx.ModeLoop.String(),
			FPS:      mvx.DefaultFPS,
			BitDepth: mvx.DefaultBitDepth,
			Volume:   1,
			Speed:    1,
		},
		Stream: StreamConfig{
			Capacity:         stream.DefaultCapacity,
			MinBufferedAudio: stream.DefaultMinBufferedAudio,
			PollInterval:     stream.DefaultPollInterval,
			OutputSampleRate: stream.DefaultOutputSampleRate,
		},
		Server: ServerConfig{
			Addr:      ":8928",
			Name:      "mvx-serve",
			Advertise: true,
		},
		Log: LogConfig{
			File: "mvxplay.log",
		},
	}
}

// StreamOptions converts the stream section into stream.Config fields
func (c *Config) StreamOptions() stream.Config {
	return stream.Config{
		Capacity:         c.Stream.Capacity,
		MinBufferedAudio: c.Stream.MinBufferedAudio,
		PollInterval:     c.Stream.PollInterval,
		OutputSampleRate: c.Stream.OutputSampleRate,
	}
}
