// ABOUTME: Resolves a source name into an MVX frame source
// ABOUTME: Supports test tones, audio files, URLs, websocket streams and mDNS discovery
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/mvxplay/mvxplay-go/internal/discovery"
	"github.com/mvxplay/mvxplay-go/pkg/audio/decode"
	"github.com/mvxplay/mvxplay-go/pkg/mvx"
)

const (
	// SourceTone names the built-in test tone
	SourceTone = "tone"
	// SourceDiscover picks the first stream advertised over mDNS
	SourceDiscover = "discover"

	toneFrequency  = 440.0
	toneSampleRate = 48000
	toneChannels   = 2

	// DefaultToneDuration is the length of the test tone clip
	DefaultToneDuration = 10 * time.Second
)

// SourceOptions describes how to build a source
type SourceOptions struct {
	Source       string
	Mode         mvx.PlaybackMode
	FPS          float64
	BitDepth     int
	ToneDuration time.Duration

	// ClientName identifies this player to a remote stream
	ClientName string
}

// OpenSource builds the source named by opts.Source and reports its kind
// for metrics: tone, file, url, net or discover.
func OpenSource(ctx context.Context, opts SourceOptions) (mvx.Source, string, error) {
	name := strings.TrimSpace(opts.Source)
	switch {
	case name == "" || name == SourceTone:
		d := opts.ToneDuration
		if d <= 0 {
			d = DefaultToneDuration
		}
		src, err := clipSource(decode.Tone(toneFrequency, toneSampleRate, toneChannels, d), opts)
		return src, SourceTone, err

	case name == SourceDiscover:
		servers, err := discovery.Discover(discovery.QueryTimeout)
		if err != nil {
			return nil, SourceDiscover, fmt.Errorf("discovery failed: %w", err)
		}
		if len(servers) == 0 {
			return nil, SourceDiscover, errors.New("no streams found on the local network")
		}
		log.Printf("Discovered %d stream(s), connecting to %s at %s", len(servers), servers[0].Name, servers[0].URL())
		src, err := mvx.DialNetSource(ctx, servers[0].URL(), clientName(opts))
		return src, SourceDiscover, err

	case strings.HasPrefix(name, "ws://") || strings.HasPrefix(name, "wss://"):
		src, err := mvx.DialNetSource(ctx, name, clientName(opts))
		return src, "net", err
	}

	kind := "file"
	if strings.HasPrefix(name, "http://") || strings.HasPrefix(name, "https://") {
		kind = "url"
	}
	clip, err := decode.Open(name)
	if err != nil {
		return nil, kind, fmt.Errorf("failed to load %s: %w", name, err)
	}
	src, err := clipSource(clip, opts)
	return src, kind, err
}

func clipSource(clip *decode.Clip, opts SourceOptions) (mvx.Source, error) {
	src, err := mvx.NewClipSource(clip, mvx.ClipOptions{
		FPS:      opts.FPS,
		BitDepth: opts.BitDepth,
		Mode:     opts.Mode,
	})
	if err != nil {
		return nil, err
	}
	return src, nil
}

func clientName(opts SourceOptions) string {
	if opts.ClientName != "" {
		return opts.ClientName
	}
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	return fmt.Sprintf("%s-mvxplay", hostname)
}
