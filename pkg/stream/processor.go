// ABOUTME: Audio processor fed with frames from another stream
// ABOUTME: Keeps only the latest frame and plays its audio without blocking the frame source
package stream

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mvxplay/mvxplay-go/pkg/audio/chunk"
	"github.com/mvxplay/mvxplay-go/pkg/audio/player"
	"github.com/mvxplay/mvxplay-go/pkg/mvx"
)

// DefaultUpdateInterval is how often Run calls Update
const DefaultUpdateInterval = 5 * time.Millisecond

// ProcessorConfig holds AudioProcessor settings
type ProcessorConfig struct {
	// Pool supplies audio chunks (default: chunk.Default())
	Pool *chunk.Pool

	// Capacity is the player queue length (default: player.AsyncCapacity)
	Capacity int

	// OnError is called for frames that could not be processed
	OnError func(error)
}

// ProcessorStats reports processor activity
type ProcessorStats struct {
	Received  int64 // frames handed to HandleFrame
	Replaced  int64 // frames dropped because a newer one arrived first
	Processed int64 // frames whose audio was queued
	Skipped   int64 // frames without usable audio
	Busy      int64 // Update calls that found processing in progress
	Player    player.Stats
}

// AudioProcessor plays the audio of frames produced elsewhere, typically by
// a Stream's OnNextFrame. HandleFrame never blocks; Update does the work and
// skips a round rather than wait for a previous one.
type AudioProcessor struct {
	cfg    ProcessorConfig
	pool   *chunk.Pool
	player *player.Player

	// discards collects handles from player callbacks until Update returns
	// them to the pool
	discards *eventQueue
	batch    []event

	inbox   sync.Mutex
	pending *mvx.FrameRef

	// working is held for the duration of one Update
	working sync.Mutex

	received  atomic.Int64
	replaced  atomic.Int64
	processed atomic.Int64
	skipped   atomic.Int64
	busy      atomic.Int64
}

// NewAudioProcessor creates a processor with an empty queue
func NewAudioProcessor(cfg ProcessorConfig) (*AudioProcessor, error) {
	if cfg.Pool == nil {
		cfg.Pool = chunk.Default()
	}
	if cfg.Capacity == 0 {
		cfg.Capacity = player.AsyncCapacity
	}
	if cfg.Capacity < 0 {
		return nil, fmt.Errorf("invalid processor capacity: %d", cfg.Capacity)
	}

	ap := &AudioProcessor{
		cfg:      cfg,
		pool:     cfg.Pool,
		discards: newEventQueue(4 * cfg.Capacity),
		batch:    make([]event, 0, 4*cfg.Capacity),
	}
	p, err := player.New(player.Config{
		Capacity: cfg.Capacity,
		OnDiscarded: func(c *chunk.Chunk, _ player.DiscardReason) {
			ap.discards.push(eventDiscarded, c.Handle())
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create player: %w", err)
	}
	ap.player = p
	return ap, nil
}

// Player exposes the underlying player for volume, mute and speed control
func (ap *AudioProcessor) Player() *player.Player { return ap.player }

// HandleFrame stores ref as the next frame to process, disposing any frame
// still waiting. The processor takes ownership of ref.
func (ap *AudioProcessor) HandleFrame(ref *mvx.FrameRef) {
	if ref == nil {
		return
	}
	ap.received.Add(1)

	ap.inbox.Lock()
	old := ap.pending
	ap.pending = ref
	ap.inbox.Unlock()

	if old != nil {
		ap.replaced.Add(1)
		old.Dispose()
	}
}

// Update processes the waiting frame, if any, and returns discarded chunks
// to the pool. It reports false when another Update was already running.
func (ap *AudioProcessor) Update() bool {
	if !ap.working.TryLock() {
		ap.busy.Add(1)
		return false
	}
	defer ap.working.Unlock()

	ap.inbox.Lock()
	ref := ap.pending
	ap.pending = nil
	ap.inbox.Unlock()

	if ref != nil {
		ap.process(ref)
	}
	ap.reclaim()
	return true
}

func (ap *AudioProcessor) process(ref *mvx.FrameRef) {
	defer ref.Dispose()
	defer func() {
		if r := recover(); r != nil {
			ap.report(fmt.Errorf("panic while processing frame: %v", r))
		}
	}()

	c, err := mvx.ExtractAudio(ref, ap.pool)
	if err != nil {
		ap.skipped.Add(1)
		ap.report(err)
		return
	}
	if c == nil {
		ap.skipped.Add(1)
		return
	}
	ap.player.Enqueue(c)
	ap.processed.Add(1)
}

func (ap *AudioProcessor) reclaim() {
	ap.batch = ap.discards.drain(ap.batch)
	for _, e := range ap.batch {
		ap.pool.Release(e.handle)
	}
}

// Render fills out from the queued audio. Safe to call from the device callback.
func (ap *AudioProcessor) Render(out []float32, channels, sampleRate int) int {
	return ap.player.Dequeue(out, channels, sampleRate)
}

// Reset drops the waiting frame and all queued audio
func (ap *AudioProcessor) Reset() {
	ap.working.Lock()
	defer ap.working.Unlock()

	ap.inbox.Lock()
	ref := ap.pending
	ap.pending = nil
	ap.inbox.Unlock()
	ref.Dispose()

	ap.player.Reset()
	ap.reclaim()
}

// Run calls Update every interval until ctx is cancelled, then resets
func (ap *AudioProcessor) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultUpdateInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			ap.Reset()
			return nil
		case <-ticker.C:
			ap.Update()
		}
	}
}

// Stats returns a snapshot of processor activity
func (ap *AudioProcessor) Stats() ProcessorStats {
	return ProcessorStats{
		Received:  ap.received.Load(),
		Replaced:  ap.replaced.Load(),
		Processed: ap.processed.Load(),
		Skipped:   ap.skipped.Load(),
		Busy:      ap.busy.Load(),
		Player:    ap.player.Stats(),
	}
}

func (ap *AudioProcessor) report(err error) {
	log.Printf("AudioProcessor: %v", err)
	if ap.cfg.OnError != nil {
		ap.cfg.OnError(err)
	}
}
