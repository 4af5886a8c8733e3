// ABOUTME: Entry point for the MVX frame server
// ABOUTME: Parses CLI flags and config, then streams a clip as MVX frames to websocket clients
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mvxplay/mvxplay-go/internal/app"
	"github.com/mvxplay/mvxplay-go/internal/config"
	"github.com/mvxplay/mvxplay-go/internal/observe"
	"github.com/mvxplay/mvxplay-go/internal/server"
	"github.com/mvxplay/mvxplay-go/internal/version"
	"github.com/mvxplay/mvxplay-go/pkg/audio/decode"
	"github.com/mvxplay/mvxplay-go/pkg/mvx"
)

var (
	configPath  = flag.String("config", "", "YAML config file")
	addr        = flag.String("addr", "", "WebSocket listen address (default :8928)")
	name        = flag.String("name", "", "Server friendly name (default: hostname-mvx-serve)")
	source      = flag.String("source", "", "Clip to stream: tone or an audio file/URL (WAV, MP3, FLAC)")
	mode        = flag.String("mode", "", "Playback mode: once, loop or realtime")
	fps         = flag.Float64("fps", 0, "Frame rate")
	bitDepth    = flag.Int("bitdepth", 0, "PCM bit depth (16, 24 or 32)")
	lead        = flag.Duration("lead", server.DefaultLead, "How far ahead of real time frames are sent")
	noMDNS      = flag.Bool("no-mdns", false, "Disable mDNS advertisement")
	noTUI       = flag.Bool("no-tui", false, "Disable TUI, use streaming logs instead")
	metricsAddr = flag.String("metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9091")
	logFile     = flag.String("log-file", "mvx-serve.log", "Log file path")
	dump        = flag.String("dump", "", "Write the clip as a WAV file at the configured bit depth and exit")
)

func main() {
	flag.Parse()

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	useTUI := !*noTUI

	// Set up logging
	f, err := os.OpenFile(*logFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer f.Close()

	if useTUI && *dump == "" {
		log.SetOutput(f)
	} else {
		log.SetOutput(io.MultiWriter(os.Stdout, f))
	}

	clip, err := loadClip(cfg.Player.Source)
	if err != nil {
		log.Fatalf("Failed to load %s: %v", cfg.Player.Source, err)
	}

	if *dump != "" {
		if err := dumpWAV(*dump, clip, cfg.Player.BitDepth); err != nil {
			log.Fatalf("Failed to write %s: %v", *dump, err)
		}
		log.Printf("Wrote %s (%v, %d-bit)", *dump, clip.Duration(), cfg.Player.BitDepth)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	provider, err := observe.InitProvider(observe.ProviderConfig{
		ServiceName:    "mvx-serve",
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

	// Determine server name
	serverName := cfg.Server.Name
	if *name != "" {
		serverName = *name
	} else if serverName == config.Default().Server.Name {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "unknown"
		}
		serverName = fmt.Sprintf("%s-mvx-serve", hostname)
	}

	playbackMode, _ := mvx.ParsePlaybackMode(cfg.Player.Mode)
	opts := mvx.ClipOptions{FPS: cfg.Player.FPS, BitDepth: cfg.Player.BitDepth, Mode: playbackMode}

	srv, err := server.New(server.Config{
		Addr:       cfg.Server.Addr,
		Name:       serverName,
		EnableMDNS: cfg.Server.Advertise,
		UseTUI:     useTUI,
		Lead:       *lead,
		Metrics:    metrics,
		Open: func() (mvx.Source, error) {
			metrics.RecordStreamOpen(context.Background(), "clip")
			return mvx.NewClipSource(clip, opts)
		},
	})
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	log.Printf("Starting %s on %s: %q (%v, %.2f fps, %s)",
		serverName, cfg.Server.Addr, clip.Title, clip.Duration(), opts.FPS, playbackMode)
	log.Printf("Press Ctrl-C to stop")

	if err := srv.Run(ctx); err != nil {
		log.Fatalf("Server error: %v", err)
	}
	log.Printf("Server stopped")
}

// loadClip decodes the clip every client is served
func loadClip(src string) (*decode.Clip, error) {
	if src == "" || src == app.SourceTone {
		return decode.Tone(440, 48000, 2, app.DefaultToneDuration), nil
	}
	return decode.Open(src)
}

func dumpWAV(path string, clip *decode.Clip, bitDepth int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := decode.WriteWAV(f, clip, bitDepth); err != nil {
		f.Close()
		return err
	}
	return f.Close()
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
		case "addr":
			cfg.Server.Addr = *addr
		case "source":
			cfg.Player.Source = *source
		case "mode":
			cfg.Player.Mode = *mode
		case "fps":
			cfg.Player.FPS = *fps
		case "bitdepth":
			cfg.Player.BitDepth = *bitDepth
		case "no-mdns":
			cfg.Server.Advertise = !*noMDNS
		case "metrics-addr":
			cfg.Metrics.Addr = *metricsAddr
		}
	})

	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
