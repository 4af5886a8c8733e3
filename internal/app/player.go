// ABOUTME: Main player application orchestration
// ABOUTME: Coordinates the source, stream, audio output, metrics and UI
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/mvxplay/mvxplay-go/internal/observe"
	"github.com/mvxplay/mvxplay-go/internal/ui"
	"github.com/mvxplay/mvxplay-go/pkg/audio/output"
	"github.com/mvxplay/mvxplay-go/pkg/mvx"
	"github.com/mvxplay/mvxplay-go/pkg/stream"
)

const (
	outputChannels = 2
	drainPoll      = 20 * time.Millisecond
)

// Config holds player configuration
type Config struct {
	Source SourceOptions
	Output string

	Volume float32
	Muted  bool
	Speed  float64

	// Stream tunes buffering; callbacks are set by the player
	Stream stream.Config

	UseTUI  bool
	Metrics *observe.Metrics
}

// Player represents the main player application
type Player struct {
	config  Config
	stream  *stream.Stream
	output  output.Output
	tui     *ui.TUI
	metrics *observe.Metrics

	ended chan struct{}
}

// New creates a new player
func New(config Config) (*Player, error) {
	if config.Metrics == nil {
		config.Metrics = observe.DefaultMetrics()
	}
	if config.Speed == 0 {
		config.Speed = 1
	}

	p := &Player{
		config:  config,
		metrics: config.Metrics,
		ended:   make(chan struct{}, 1),
	}

	cfg := config.Stream
	cfg.OnNextFrame = p.onNextFrame
	cfg.OnPlaybackEnd = p.onPlaybackEnd
	cfg.OnPlaybackRestarted = p.onPlaybackRestarted
	cfg.OnError = p.onError

	s, err := stream.New(cfg)
	if err != nil {
		return nil, err
	}
	s.SetVolume(config.Volume)
	s.SetMuted(config.Muted)
	s.SetSpeed(config.Speed)
	p.stream = s

	out, err := output.New(config.Output)
	if err != nil {
		return nil, err
	}
	p.output = out

	if config.UseTUI {
		p.tui = ui.New(&controller{Stream: s, metrics: p.metrics}, config.Source.Source, config.Output)
	}
	return p, nil
}

// controller counts seeks made from the TUI
type controller struct {
	*stream.Stream
	metrics *observe.Metrics
}

func (c *controller) Seek(frame int) error {
	c.metrics.Seeks.Add(context.Background(), 1)
	return c.Stream.Seek(frame)
}

// Stream returns the player's stream
func (p *Player) Stream() *stream.Stream { return p.stream }

// Run plays until ctx is cancelled, the user quits the TUI, or a source
// in once mode has played its last frame.
func (p *Player) Run(ctx context.Context) (err error) {
	src, kind, err := OpenSource(ctx, p.config.Source)
	if err != nil {
		return err
	}
	if err := p.stream.Open(ctx, src); err != nil {
		src.Close()
		return fmt.Errorf("failed to open stream: %w", err)
	}
	defer func() {
		if cerr := p.stream.Close(); cerr != nil && !errors.Is(cerr, context.Canceled) {
			err = errors.Join(err, cerr)
		}
	}()
	p.metrics.RecordStreamOpen(ctx, kind)

	reg, err := p.metrics.ObserveStream(p.stream)
	if err != nil {
		return fmt.Errorf("failed to register stream metrics: %w", err)
	}
	defer unregister(reg)

	rate := p.config.Stream.OutputSampleRate
	if rate == 0 {
		rate = stream.DefaultOutputSampleRate
	}
	if err := p.output.Open(rate, outputChannels, p.stream.Render); err != nil {
		return fmt.Errorf("failed to open %s output: %w", p.config.Output, err)
	}
	defer p.output.Close()

	info := p.stream.Info()
	log.Printf("Playing %q from %s: %d frames @ %.2f fps, %s mode",
		info.Title, kind, info.FrameCount, info.FPS, p.config.Source.Mode)

	if p.tui != nil {
		return p.runTUI(ctx)
	}
	return p.wait(ctx)
}

func unregister(reg metric.Registration) {
	if err := reg.Unregister(); err != nil {
		log.Printf("Failed to unregister stream metrics: %v", err)
	}
}

// runTUI blocks in the TUI until the user quits or ctx ends
func (p *Player) runTUI(ctx context.Context) error {
	stop := context.AfterFunc(ctx, p.tui.Quit)
	defer stop()

	if err := p.tui.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

// wait blocks until ctx ends or a once-mode source has finished playing
func (p *Player) wait(ctx context.Context) error {
	ended := p.ended
	if p.config.Source.Mode.Loops() {
		ended = nil
	}

	select {
	case <-ctx.Done():
		return nil
	case <-ended:
	}

	// let the last frame's audio reach the device
	ticker := time.NewTicker(drainPoll)
	defer ticker.Stop()
	for p.stream.QueuedAudioDuration() > 0 {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
	log.Printf("Playback finished")
	return nil
}

func (p *Player) onNextFrame(ref *mvx.FrameRef) {
	if p.tui != nil {
		p.tui.FramePlaying(ref)
		return
	}
	ref.Dispose()
}

func (p *Player) onPlaybackEnd() {
	log.Printf("Reached the last frame")
	select {
	case p.ended <- struct{}{}:
	default:
	}
	if p.tui != nil {
		p.tui.PlaybackEnded()
	}
}

func (p *Player) onPlaybackRestarted() {
	log.Printf("Playback restarted")
	if p.tui != nil {
		p.tui.PlaybackRestarted()
	}
}

func (p *Player) onError(err error) {
	p.metrics.StreamErrors.Add(context.Background(), 1)
	if p.tui != nil {
		p.tui.Error(err)
	}
}
