// ABOUTME: Audio-driven MVX frame stream
// ABOUTME: Buffers frame audio ahead of the output and reports the frame whose audio is playing
package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/mvxplay/mvxplay-go/pkg/audio/chunk"
	"github.com/mvxplay/mvxplay-go/pkg/audio/player"
	"github.com/mvxplay/mvxplay-go/pkg/mvx"
)

const (
	// DefaultCapacity is the player queue length used by streams. It holds
	// more than DefaultMinBufferedAudio of 30 fps frames.
	DefaultCapacity = 64
	// DefaultMinBufferedAudio is how far ahead of the output the producer reads
	DefaultMinBufferedAudio = time.Second
	// DefaultPollInterval is the producer's sleep once the buffer is full
	DefaultPollInterval = 10 * time.Millisecond
	// DefaultOutputSampleRate is assumed until Render reports the device rate
	DefaultOutputSampleRate = 48000
)

var (
	// ErrNotOpen is returned by operations that need an open stream
	ErrNotOpen = errors.New("stream is not open")
	// ErrAlreadyOpen is returned by Open on a stream that is already open
	ErrAlreadyOpen = errors.New("stream is already open")
	// ErrNoAudio is returned by Open for sources without an audio layer
	ErrNoAudio = errors.New("source has no audio layer")
)

// Config holds stream configuration
type Config struct {
	// Pool supplies audio chunks (default: chunk.Default())
	Pool *chunk.Pool

	// Capacity is the player queue length in chunks (default: DefaultCapacity)
	Capacity int

	// MinBufferedAudio is how much audio the producer keeps queued (default: 1s)
	MinBufferedAudio time.Duration

	// PollInterval is the producer's sleep once the buffer is full (default: 10ms)
	PollInterval time.Duration

	// OutputSampleRate is the device rate used to measure the buffer before
	// the first Render call (default: 48000)
	OutputSampleRate int

	// OnNextFrame is called with the frame whose audio just started playing.
	// The callee owns the reference and must dispose it.
	OnNextFrame func(*mvx.FrameRef)

	// OnPlaybackEnd is called when the last frame of the source starts playing
	OnPlaybackEnd func()

	// OnPlaybackRestarted is called when the playing frame number goes backwards
	OnPlaybackRestarted func()

	// OnError is called for source read errors and recovered panics
	OnError func(error)
}

// Stats reports stream activity
type Stats struct {
	ID            string
	Open          bool
	Paused        bool
	LastFrame     int // -1 before the first frame plays
	FramesRead    int64
	FramesSilent  int64 // frames without an audio layer
	FramesSkipped int64 // frames whose audio could not be used
	FramesPlayed  int64 // frames reported as now playing
	Restarts      int64
	Errors        int64
	Queued        time.Duration
	Tracked       int // chunk/frame pairs awaiting playback
	Player        player.Stats
	Pool          chunk.Stats
}

type notice struct {
	frame     *mvx.FrameRef
	end       bool
	restarted bool
}

// Stream reads frames from a Source on its own goroutine, queues their audio
// in a Player and tells the application which frame is audible. The device
// callback drives everything else through Render.
type Stream struct {
	id     string
	cfg    Config
	pool   *chunk.Pool
	player *player.Player
	events *eventQueue

	// life serializes Open and Close
	life sync.Mutex

	// srcMu guards source; taken before mu
	srcMu  sync.Mutex
	source mvx.Source

	mu        sync.Mutex
	info      mvx.SourceInfo
	corr      *Correlator
	lastFrame *mvx.FrameRef
	lastNr    int
	open      bool
	cancel    context.CancelFunc
	group     *errgroup.Group

	// owned by the dispatcher goroutine, and by Close once it has exited
	batch   []event
	notices []notice

	outputRate atomic.Int64

	framesRead    atomic.Int64
	framesSilent  atomic.Int64
	framesSkipped atomic.Int64
	framesPlayed  atomic.Int64
	restarts      atomic.Int64
	errCount      atomic.Int64
}

// New creates a closed stream
func New(cfg Config) (*Stream, error) {
	if cfg.Pool == nil {
		cfg.Pool = chunk.Default()
	}
	if cfg.Capacity == 0 {
		cfg.Capacity = DefaultCapacity
	}
	if cfg.MinBufferedAudio == 0 {
		cfg.MinBufferedAudio = DefaultMinBufferedAudio
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.OutputSampleRate == 0 {
		cfg.OutputSampleRate = DefaultOutputSampleRate
	}
	if cfg.Capacity < 0 || cfg.MinBufferedAudio < 0 || cfg.PollInterval < 0 || cfg.OutputSampleRate < 0 {
		return nil, fmt.Errorf("invalid stream config: capacity %d, buffer %v, poll %v, rate %d",
			cfg.Capacity, cfg.MinBufferedAudio, cfg.PollInterval, cfg.OutputSampleRate)
	}

	s := &Stream{
		id:      uuid.New().String(),
		cfg:     cfg,
		pool:    cfg.Pool,
		events:  newEventQueue(4 * cfg.Capacity),
		corr:    NewCorrelator(cfg.Pool),
		lastNr:  -1,
		batch:   make([]event, 0, 4*cfg.Capacity),
		notices: make([]notice, 0, cfg.Capacity),
	}
	s.outputRate.Store(int64(cfg.OutputSampleRate))

	p, err := player.New(player.Config{
		Capacity: cfg.Capacity,
		OnPlaybackStarted: func(c *chunk.Chunk) {
			s.events.push(eventStarted, c.Handle())
		},
		OnDiscarded: func(c *chunk.Chunk, _ player.DiscardReason) {
			s.events.push(eventDiscarded, c.Handle())
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create player: %w", err)
	}
	s.player = p
	return s, nil
}

// ID returns the stream's unique id
func (s *Stream) ID() string { return s.id }

// Open starts reading src. Sources without audio are rejected with
// ErrNoAudio and left open for the caller. Once Open succeeds the stream
// owns src and closes it in Close.
func (s *Stream) Open(ctx context.Context, src mvx.Source) error {
	if src == nil {
		return errors.New("nil source")
	}
	s.life.Lock()
	defer s.life.Unlock()

	if s.IsOpen() {
		return ErrAlreadyOpen
	}
	info := src.Info()
	if !info.HasAudio {
		log.Printf("Stream %s: source %q does not carry audio", s.id, info.Title)
		return ErrNoAudio
	}

	ctx, cancel := context.WithCancel(ctx)
	g := new(errgroup.Group)

	s.srcMu.Lock()
	s.source = src
	s.srcMu.Unlock()

	s.mu.Lock()
	s.info = info
	s.lastNr = -1
	s.open = true
	s.cancel = cancel
	s.group = g
	s.mu.Unlock()

	s.player.SetPaused(false)

	g.Go(func() error { return s.produce(ctx) })
	g.Go(func() error { return s.dispatch(ctx) })

	log.Printf("Stream %s: opened %q (%d frames @ %.2f fps)", s.id, info.Title, info.FrameCount, info.FPS)
	return nil
}

// Close stops the producer and dispatcher, drops all queued audio and closes
// the source. It returns the error that stopped the producer, if any.
// Closing a closed stream is a no-op.
func (s *Stream) Close() error {
	s.life.Lock()
	defer s.life.Unlock()

	s.mu.Lock()
	if !s.open {
		s.mu.Unlock()
		return nil
	}
	s.open = false
	cancel, g := s.cancel, s.group
	s.cancel, s.group = nil, nil
	s.mu.Unlock()

	cancel()
	runErr := g.Wait()

	s.srcMu.Lock()
	s.mu.Lock()
	s.corr.Drain()
	s.player.Reset()
	s.setLastFrame(nil)
	s.mu.Unlock()
	closeErr := s.source.Close()
	s.source = nil
	s.srcMu.Unlock()

	// the dispatcher is gone; return the chunks from the reset ourselves
	s.batch = s.events.drain(s.batch)
	s.process(s.batch)

	log.Printf("Stream %s: closed", s.id)
	if closeErr != nil {
		closeErr = fmt.Errorf("failed to close source: %w", closeErr)
	}
	return errors.Join(runErr, closeErr)
}

// IsOpen reports whether the stream is open
func (s *Stream) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

// Info returns the open source's info
func (s *Stream) Info() mvx.SourceInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.info
}

// Seek drops all queued audio and moves the source to frame. Targets outside
// the source leave the queue untouched.
func (s *Stream) Seek(frame int) error {
	s.srcMu.Lock()
	defer s.srcMu.Unlock()

	s.mu.Lock()
	if !s.open {
		s.mu.Unlock()
		return ErrNotOpen
	}
	if err := s.info.CheckSeek(frame); err != nil {
		s.mu.Unlock()
		return err
	}
	s.corr.Drain()
	s.player.Reset()
	s.mu.Unlock()

	if err := s.source.Seek(frame); err != nil {
		return fmt.Errorf("seek to frame %d: %w", frame, err)
	}
	log.Printf("Stream %s: seeked to frame %d", s.id, frame)
	return nil
}

// Pause silences the output without consuming queued audio
func (s *Stream) Pause() { s.player.SetPaused(true) }

// Resume continues playback after Pause
func (s *Stream) Resume() { s.player.SetPaused(false) }

// IsPaused reports whether the stream is paused
func (s *Stream) IsPaused() bool { return s.player.Paused() }

// SetVolume sets the output gain (0..1)
func (s *Stream) SetVolume(v float32) { s.player.SetVolume(v) }

// Volume returns the output gain
func (s *Stream) Volume() float32 { return s.player.Volume() }

// SetMuted mutes or unmutes the output
func (s *Stream) SetMuted(muted bool) { s.player.SetMuted(muted) }

// Muted reports whether the output is muted
func (s *Stream) Muted() bool { return s.player.Muted() }

// SetSpeed sets the playback speed (0..player.MaxSpeed)
func (s *Stream) SetSpeed(speed float64) { s.player.SetSpeed(speed) }

// Speed returns the playback speed
func (s *Stream) Speed() float64 { return s.player.Speed() }

// SetOutputSampleRate tells the stream the device rate without rendering
func (s *Stream) SetOutputSampleRate(rate int) {
	if rate > 0 {
		s.outputRate.Store(int64(rate))
	}
}

// Render fills out with interleaved audio for the device. It is meant to be
// called from the audio callback and never blocks on the source.
func (s *Stream) Render(out []float32, channels, sampleRate int) int {
	if sampleRate > 0 && int64(sampleRate) != s.outputRate.Load() {
		s.outputRate.Store(int64(sampleRate))
	}
	return s.player.Dequeue(out, channels, sampleRate)
}

// QueuedAudioDuration returns how much audio is waiting to be played
func (s *Stream) QueuedAudioDuration() time.Duration {
	return s.player.QueuedAudioDuration(int(s.outputRate.Load()))
}

// LastFrame returns a new reference to the frame currently playing, or nil.
// The caller must dispose it.
func (s *Stream) LastFrame() *mvx.FrameRef {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastFrame.Clone()
}

// Stats returns a snapshot of stream activity
func (s *Stream) Stats() Stats {
	s.mu.Lock()
	st := Stats{
		ID:        s.id,
		Open:      s.open,
		LastFrame: s.lastNr,
		Tracked:   s.corr.Len(),
	}
	s.mu.Unlock()

	st.Paused = s.player.Paused()
	st.FramesRead = s.framesRead.Load()
	st.FramesSilent = s.framesSilent.Load()
	st.FramesSkipped = s.framesSkipped.Load()
	st.FramesPlayed = s.framesPlayed.Load()
	st.Restarts = s.restarts.Load()
	st.Errors = s.errCount.Load()
	st.Queued = s.QueuedAudioDuration()
	st.Player = s.player.Stats()
	st.Pool = s.pool.Stats()
	return st
}

// produce keeps MinBufferedAudio queued until ctx is cancelled
func (s *Stream) produce(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		for ctx.Err() == nil && !s.bufferFull() {
			more, err := s.readFrame(ctx)
			if err != nil {
				s.report(err)
				return err
			}
			if !more {
				break
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// bufferFull reports whether MinBufferedAudio is queued or the player has no
// free slot. Enqueueing into a full player would discard the chunk playing.
func (s *Stream) bufferFull() bool {
	return s.player.Len() >= s.player.Capacity() ||
		s.QueuedAudioDuration() >= s.cfg.MinBufferedAudio
}

// readFrame moves one frame's audio into the player. It reports false when
// the producer should wait before reading again.
func (s *Stream) readFrame(ctx context.Context) (more bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.report(fmt.Errorf("panic while reading frame: %v", r))
			more, err = false, nil
		}
	}()

	s.srcMu.Lock()
	defer s.srcMu.Unlock()

	ref, err := s.source.Next(ctx)
	switch {
	case err == nil:
	case errors.Is(err, io.EOF), ctx.Err() != nil:
		return false, nil
	default:
		return false, fmt.Errorf("failed to read frame: %w", err)
	}
	s.framesRead.Add(1)

	c, err := mvx.ExtractAudio(ref, s.pool)
	if err != nil {
		s.framesSkipped.Add(1)
		log.Printf("Stream %s: skipping audio of frame %d: %v", s.id, ref.Number(), err)
		ref.Dispose()
		return false, nil
	}
	if c == nil {
		s.framesSilent.Add(1)
		ref.Dispose()
		return false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.corr.Push(c.Handle(), ref)
	s.player.Enqueue(c)
	return true, nil
}

// dispatch applies player events to the correlator off the audio thread
func (s *Stream) dispatch(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.events.wake:
			s.batch = s.events.drain(s.batch)
			s.process(s.batch)
		}
	}
}

func (s *Stream) process(batch []event) {
	if len(batch) == 0 {
		return
	}

	s.mu.Lock()
	for _, e := range batch {
		switch e.kind {
		case eventStarted:
			if ref := s.corr.Started(e.handle); ref != nil {
				s.notices = append(s.notices, s.nowPlaying(ref))
			}
		case eventDiscarded:
			s.corr.Discarded(e.handle)
		}
	}
	s.mu.Unlock()

	// callbacks run unlocked so they may call back into the stream
	for i, n := range s.notices {
		s.notify(n)
		s.notices[i] = notice{}
	}
	s.notices = s.notices[:0]
}

// nowPlaying makes ref the last frame. Called with s.mu held.
func (s *Stream) nowPlaying(ref *mvx.FrameRef) notice {
	nr := ref.Number()
	n := notice{}
	switch {
	case s.info.FrameCount > 0 && nr == s.info.FrameCount-1:
		n.end = true
	case s.lastNr >= 0 && nr < s.lastNr:
		n.restarted = true
	}
	s.lastNr = nr
	s.setLastFrame(ref)
	s.framesPlayed.Add(1)
	if s.cfg.OnNextFrame != nil {
		n.frame = ref.Clone()
	}
	return n
}

func (s *Stream) notify(n notice) {
	if n.end && s.cfg.OnPlaybackEnd != nil {
		s.cfg.OnPlaybackEnd()
	}
	if n.restarted {
		s.restarts.Add(1)
		if s.cfg.OnPlaybackRestarted != nil {
			s.cfg.OnPlaybackRestarted()
		}
	}
	if n.frame != nil {
		s.cfg.OnNextFrame(n.frame)
	}
}

// setLastFrame replaces the last frame, disposing the previous one. Called
// with s.mu held.
func (s *Stream) setLastFrame(ref *mvx.FrameRef) {
	if s.lastFrame != nil {
		s.lastFrame.Dispose()
	}
	s.lastFrame = ref
	if ref == nil {
		s.lastNr = -1
	}
}

func (s *Stream) report(err error) {
	s.errCount.Add(1)
	log.Printf("Stream %s: %v", s.id, err)
	if s.cfg.OnError != nil {
		s.cfg.OnError(err)
	}
}
