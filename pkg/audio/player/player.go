// ABOUTME: Bounded chunk queue with real-time rendering
// ABOUTME: Queues pooled PCM chunks and renders them to float output with resampling and gain
package player

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/mvxplay/mvxplay-go/pkg/audio/chunk"
	"github.com/mvxplay/mvxplay-go/pkg/audio/resample"
)

const (
	// DefaultCapacity keeps only the chunk being played
	DefaultCapacity = 1
	// AsyncCapacity absorbs bursts from producers that are not paced by the output
	AsyncCapacity = 10

	// MaxSpeed is the upper bound for SetSpeed
	MaxSpeed = 3.0
)

// DiscardReason tells why a chunk left the queue
type DiscardReason int

const (
	// DiscardOverflow means the queue was full and the chunk was the oldest
	DiscardOverflow DiscardReason = iota
	// DiscardConsumed means every sample of the chunk was played
	DiscardConsumed
	// DiscardReset means the queue was cleared
	DiscardReset
)

func (r DiscardReason) String() string {
	switch r {
	case DiscardOverflow:
		return "overflow"
	case DiscardConsumed:
		return "consumed"
	case DiscardReset:
		return "reset"
	}
	return fmt.Sprintf("DiscardReason(%d)", int(r))
}

// Config holds player settings. Callbacks run with the player lock held, on
// whichever goroutine triggered them (often the audio device callback), and
// must return quickly without blocking or calling back into the player.
type Config struct {
	Capacity int

	OnPlaybackStarted func(c *chunk.Chunk)
	OnDiscarded       func(c *chunk.Chunk, reason DiscardReason)
}

// Stats tracks player activity
type Stats struct {
	Enqueued      int64
	Started       int64
	Consumed      int64
	Overflowed    int64
	ResetDropped  int64
	Underruns     int64 // render calls that ran out of queued audio
	FramesPlayed  int64 // output frames rendered from queued audio
	FramesSilence int64 // output frames rendered as silence
}

// Player is a fixed-capacity FIFO of chunks. The head chunk is read through a
// fractional cursor so any source rate can be rendered at any output rate.
type Player struct {
	mu  sync.Mutex
	cfg Config

	ring  []*chunk.Chunk
	head  int
	count int

	cursor  resample.Cursor
	started bool // OnPlaybackStarted fired for the current head

	volume float32
	muted  bool
	speed  float64
	paused bool

	stats Stats
}

// New creates a player. A zero capacity means DefaultCapacity.
func New(cfg Config) (*Player, error) {
	if cfg.Capacity == 0 {
		cfg.Capacity = DefaultCapacity
	}
	if cfg.Capacity < 0 {
		return nil, fmt.Errorf("invalid player capacity: %d", cfg.Capacity)
	}
	return &Player{
		cfg:    cfg,
		ring:   make([]*chunk.Chunk, cfg.Capacity),
		volume: 1,
		speed:  1,
	}, nil
}

// Capacity returns the maximum number of queued chunks
func (p *Player) Capacity() int { return len(p.ring) }

// Enqueue appends c, discarding the oldest chunks first if the queue is full
func (p *Player) Enqueue(c *chunk.Chunk) {
	if c == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	for p.count >= len(p.ring) {
		old := p.pop()
		p.cursor.Reset()
		p.stats.Overflowed++
		p.discarded(old, DiscardOverflow)
	}
	p.ring[(p.head+p.count)%len(p.ring)] = c
	p.count++
	p.stats.Enqueued++
}

// Dequeue renders len(out)/channels interleaved frames at sampleRate into
// out and returns how many of them came from queued audio. Everything past the
// end of the queue is silence. It does not allocate or block on anything but
// the player lock.
func (p *Player) Dequeue(out []float32, channels, sampleRate int) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	if channels <= 0 || sampleRate <= 0 {
		clear(out)
		return 0
	}
	frames := len(out) / channels
	clear(out[frames*channels:])

	if p.paused || p.speed <= 0 {
		clear(out[:frames*channels])
		p.stats.FramesSilence += int64(frames)
		return 0
	}

	gain := p.volume
	if p.muted {
		gain = 0
	}

	if c := p.front(); c != nil && p.started {
		p.cursor.SetRates(c.SampleRate(), sampleRate, p.speed)
	}

	played := 0
	for played < frames {
		c := p.front()
		if c == nil {
			break
		}
		// every chunk that reaches the head is announced, even one the
		// carried cursor skips entirely
		if !p.started {
			p.started = true
			p.cursor.SetRates(c.SampleRate(), sampleRate, p.speed)
			p.stats.Started++
			if p.cfg.OnPlaybackStarted != nil {
				p.cfg.OnPlaybackStarted(c)
			}
		}
		n := c.Frames()
		if p.cursor.Index() >= n {
			p.pop()
			if next := p.front(); next != nil {
				p.cursor.Carry(n, resample.Step(next.SampleRate(), sampleRate, p.speed))
			} else {
				p.cursor.Rebase(n)
			}
			p.stats.Consumed++
			p.discarded(c, DiscardConsumed)
			continue
		}

		renderFrame(out[played*channels:(played+1)*channels], c, p.cursor.Index(), p.cursor.Frac(), gain)
		played++
		p.cursor.Advance()
	}

	if played < frames {
		clear(out[played*channels : frames*channels])
		p.stats.Underruns++
		p.stats.FramesSilence += int64(frames - played)
	}
	p.stats.FramesPlayed += int64(played)
	return played
}

// QueuedAudioDuration returns how long the unplayed audio lasts when rendered
// at sampleRate and the current speed
func (p *Player) QueuedAudioDuration(sampleRate int) time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	if sampleRate <= 0 {
		return 0
	}
	speed := p.speed
	if speed <= 0 {
		speed = 1
	}

	var outFrames float64
	for i := 0; i < p.count; i++ {
		c := p.ring[(p.head+i)%len(p.ring)]
		remaining := float64(c.Frames())
		if i == 0 && p.started {
			remaining -= p.cursor.Pos()
		}
		if remaining <= 0 {
			continue
		}
		outFrames += remaining * float64(sampleRate) / (float64(c.SampleRate()) * speed)
	}
	return time.Duration(math.Round(outFrames * float64(time.Second) / float64(sampleRate)))
}

// Reset discards every queued chunk in FIFO order, including the one playing
func (p *Player) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for p.count > 0 {
		c := p.pop()
		p.stats.ResetDropped++
		p.discarded(c, DiscardReset)
	}
	p.cursor.Reset()
}

// Len returns the number of queued chunks, including the one playing
func (p *Player) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.count
}

// SetVolume sets the output gain, clamped to [0, 1]
func (p *Player) SetVolume(v float32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.volume = float32(clampFloat(float64(v), 0, 1))
}

// Volume returns the output gain
func (p *Player) Volume() float32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.volume
}

// SetMuted silences output without stopping playback
func (p *Player) SetMuted(muted bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.muted = muted
}

// Muted reports whether output is muted
func (p *Player) Muted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.muted
}

// SetSpeed sets the playback rate factor, clamped to [0, MaxSpeed]. At 0 the
// player renders silence and holds its position.
func (p *Player) SetSpeed(speed float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.speed = clampFloat(speed, 0, MaxSpeed)
}

// Speed returns the playback rate factor
func (p *Player) Speed() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.speed
}

// SetPaused stops or resumes consumption of queued audio
func (p *Player) SetPaused(paused bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.paused = paused
}

// Paused reports whether the player is paused
func (p *Player) Paused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paused
}

// Stats returns a snapshot of the player counters
func (p *Player) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

func (p *Player) front() *chunk.Chunk {
	if p.count == 0 {
		return nil
	}
	return p.ring[p.head]
}

// pop removes the head. Callers decide whether the cursor carries over.
func (p *Player) pop() *chunk.Chunk {
	c := p.ring[p.head]
	p.ring[p.head] = nil
	p.head = (p.head + 1) % len(p.ring)
	p.count--
	p.started = false
	return c
}

func (p *Player) discarded(c *chunk.Chunk, reason DiscardReason) {
	if p.cfg.OnDiscarded != nil {
		p.cfg.OnDiscarded(c, reason)
	}
}

func clampFloat(v, lo, hi float64) float64 {
	if !(v >= lo) {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
