// ABOUTME: Configuration file loading and validation
// ABOUTME: Decodes YAML strictly over the defaults and reports every invalid field
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/mvxplay/mvxplay-go/pkg/audio"
	"github.com/mvxplay/mvxplay-go/pkg/audio/output"
	"github.com/mvxplay/mvxplay-go/pkg/audio/player"
	"github.com/mvxplay/mvxplay-go/pkg/mvx"
)

// Load reads the YAML configuration file at path and returns a validated
// [Config]. Fields missing from the file keep their [Default] values.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Unknown keys are rejected.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Player
	if cfg.Player.Source == "" {
		errs = append(errs, errors.New("player.source is required"))
	}
	if !slices.Contains(output.Backends, cfg.Player.Output) {
		errs = append(errs, fmt.Errorf("player.output %q is invalid; valid values: %v", cfg.Player.Output, output.Backends))
	}
	if _, err := mvx.ParsePlaybackMode(cfg.Player.Mode); err != nil {
		errs = append(errs, fmt.Errorf("player.mode: %w", err))
	}
	if cfg.Player.FPS <= 0 {
		errs = append(errs, fmt.Errorf("player.fps must be positive, got %v", cfg.Player.FPS))
	}
	if !audio.SupportedBitDepth(cfg.Player.BitDepth) {
		errs = append(errs, fmt.Errorf("player.bit_depth %d is invalid; valid values: 8, 16, 32", cfg.Player.BitDepth))
	}
	if cfg.Player.Volume < 0 || cfg.Player.Volume > 1 {
		errs = append(errs, fmt.Errorf("player.volume must be within [0, 1], got %v", cfg.Player.Volume))
	}
	if cfg.Player.Speed < 0 || cfg.Player.Speed > player.MaxSpeed {
		errs = append(errs, fmt.Errorf("player.speed must be within [0, %v], got %v", player.MaxSpeed, cfg.Player.Speed))
	}

	// Stream
	if cfg.Stream.Capacity <= 0 {
		errs = append(errs, fmt.Errorf("stream.capacity must be positive, got %d", cfg.Stream.Capacity))
	}
	if cfg.Stream.MinBufferedAudio <= 0 {
		errs = append(errs, fmt.Errorf("stream.min_buffered_audio must be positive, got %v", cfg.Stream.MinBufferedAudio))
	}
	if cfg.Stream.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("stream.poll_interval must be positive, got %v", cfg.Stream.PollInterval))
	}
	if cfg.Stream.OutputSampleRate <= 0 {
		errs = append(errs, fmt.Errorf("stream.output_sample_rate must be positive, got %d", cfg.Stream.OutputSampleRate))
	}

	// Server
	if cfg.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}

	return errors.Join(errs...)
}
