// ABOUTME: Entry point for the MVX player
// ABOUTME: Parses CLI flags and config, then plays a frame source through the buffering stream
package main

import (
	"context"
	"flag"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mvxplay/mvxplay-go/internal/app"
	"github.com/mvxplay/mvxplay-go/internal/config"
	"github.com/mvxplay/mvxplay-go/internal/observe"
	"github.com/mvxplay/mvxplay-go/internal/version"
	"github.com/mvxplay/mvxplay-go/pkg/mvx"
)

var (
	configPath  = flag.String("config", "", "YAML config file")
	source      = flag.String("source", "", "tone, audio file/URL (WAV, MP3, FLAC), ws://host:port/mvx or discover")
	outputName  = flag.String("output", "", "Audio output: oto, malgo or null")
	mode        = flag.String("mode", "", "Playback mode: once, loop or realtime")
	fps         = flag.Float64("fps", 0, "Frame rate for file and tone sources")
	bitDepth    = flag.Int("bitdepth", 0, "PCM bit depth for file and tone sources (16, 24 or 32)")
	volume      = flag.Float64("volume", -1, "Volume 0.0-1.0")
	speed       = flag.Float64("speed", 0, "Playback speed 0.0-3.0")
	muted       = flag.Bool("muted", false, "Start muted")
	name        = flag.String("name", "", "Player friendly name sent to stream servers (default: hostname-mvxplay)")
	metricsAddr = flag.String("metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9090")
	logFile     = flag.String("log-file", "", "Log file path")
	noTUI       = flag.Bool("no-tui", false, "Disable TUI, use streaming logs instead")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		os.Stdout.WriteString(version.UserAgent() + "\n")
		return
	}

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	useTUI := !*noTUI

	// Set up logging
	f, err := os.OpenFile(cfg.Log.File, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer func() { _ = f.Close() }()

	if useTUI {
		// TUI mode: log only to file
		log.SetOutput(f)
	} else {
		log.SetOutput(io.MultiWriter(os.Stdout, f))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	provider, err := observe.InitProvider(observe.ProviderConfig{
		ServiceName:    version.Product,
		ServiceVersion: version.Version,
	})
	if err != nil {
		log.Fatalf("Failed to initialise metrics: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = provider.Shutdown(shutdownCtx)
	}()
	metrics, err := observe.NewMetrics(provider.MeterProvider)
	if err != nil {
		log.Fatalf("Failed to create metrics: %v", err)
	}
	if cfg.Metrics.Addr != "" {
		go func() {
			if err := provider.Serve(ctx, cfg.Metrics.Addr); err != nil {
				log.Printf("Metrics server error: %v", err)
			}
		}()
	}

	playbackMode, _ := mvx.ParsePlaybackMode(cfg.Player.Mode)
	player, err := app.New(app.Config{
		Source: app.SourceOptions{
			Source:     cfg.Player.Source,
			Mode:       playbackMode,
			FPS:        cfg.Player.FPS,
			BitDepth:   cfg.Player.BitDepth,
			ClientName: *name,
		},
		Output:  cfg.Player.Output,
		Volume:  float32(cfg.Player.Volume),
		Muted:   cfg.Player.Muted,
		Speed:   cfg.Player.Speed,
		Stream:  cfg.StreamOptions(),
		UseTUI:  useTUI,
		Metrics: metrics,
	})
	if err != nil {
		log.Fatalf("Failed to create player: %v", err)
	}

	log.Printf("Starting %s: source %s, output %s", version.UserAgent(), cfg.Player.Source, cfg.Player.Output)
	if err := player.Run(ctx); err != nil {
		log.Printf("Player error: %v", err)
		os.Exit(1)
	}
	log.Printf("Player stopped")
}

// loadConfig reads the config file, applies explicitly set flags and
// validates the result
func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	flag.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "source":
			cfg.Player.Source = *source
		case "output":
			cfg.Player.Output = *outputName
		case "mode":
			cfg.Player.Mode = *mode
		case "fps":
			cfg.Player.FPS = *fps
		case "bitdepth":
			cfg.Player.BitDepth = *bitDepth
		case "volume":
			cfg.Player.Volume = *volume
		case "speed":
			cfg.Player.Speed = *speed
		case "muted":
			cfg.Player.Muted = *muted
		case "metrics-addr":
			cfg.Metrics.Addr = *metricsAddr
		case "log-file":
			cfg.Log.File = *logFile
		}
	})

	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
