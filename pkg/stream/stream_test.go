package stream

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/davecgh/go-spew/spew"

	"github.com/mvxplay/mvxplay-go/pkg/audio/chunk"
	"github.com/mvxplay/mvxplay-go/pkg/audio/decode"
	"github.com/mvxplay/mvxplay-go/pkg/mvx"
)

const (
	testRate    = 48000
	testSamples = 480 // 10ms of mono audio per frame
)

type fakeFrame struct {
	nr       int
	channels int
	bits     int
	rate     int
	pcm      []byte
	releases atomic.Int32
}

func (f *fakeFrame) Number() int      { return f.nr }
func (f *fakeFrame) PCMDataSize() int { return len(f.pcm) }
func (f *fakeFrame) SamplingInfo() (int, int, int) {
	return f.channels, f.bits, f.rate
}
func (f *fakeFrame) CopyPCM(dst []byte) int { return copy(dst, f.pcm) }
func (f *fakeFrame) Release()               { f.releases.Add(1) }

// fakeSource issues frames 0..count-1 of 16-bit mono audio
type fakeSource struct {
	mu      sync.Mutex
	count   int
	pos     int
	loop    bool
	noAudio map[int]bool
	bits    map[int]int
	err     error
	issued  []*fakeFrame
	closed  bool
}

func newFakeSource(count int) *fakeSource {
	return &fakeSource{count: count, noAudio: map[int]bool{}, bits: map[int]int{}}
}

func (s *fakeSource) Info() mvx.SourceInfo {
	return mvx.SourceInfo{Title: "fake", FrameCount: s.count, FPS: 100, HasAudio: true}
}

func (s *fakeSource) Next(ctx context.Context) (*mvx.FrameRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	if s.pos >= s.count {
		if !s.loop {
			return nil, io.EOF
		}
		s.pos = 0
	}
	f := &fakeFrame{nr: s.pos, channels: 1, bits: 16, rate: testRate}
	if b, ok := s.bits[s.pos]; ok {
		f.bits = b
	}
	if !s.noAudio[s.pos] {
		f.pcm = make([]byte, testSamples*f.bits/8)
		for i := range f.pcm {
			f.pcm[i] = byte(s.pos + 1)
		}
	}
	s.pos++
	s.issued = append(s.issued, f)
	return mvx.NewFrameRef(f), nil
}

func (s *fakeSource) Seek(frame int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pos = frame
	return nil
}

func (s *fakeSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeSource) frames() []*fakeFrame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*fakeFrame(nil), s.issued...)
}

// recorder collects stream notifications
type recorder struct {
	mu       sync.Mutex
	frames   []int
	ends     int
	restarts int
	errs     []error
}

func (r *recorder) config(pool *chunk.Pool) Config {
	return Config{
		Pool:             pool,
		OutputSampleRate: testRate,
		PollInterval:     time.Millisecond,
		OnNextFrame: func(f *mvx.FrameRef) {
			r.mu.Lock()
			r.frames = append(r.frames, f.Number())
			r.mu.Unlock()
			f.Dispose()
		},
		OnPlaybackEnd: func() {
			r.mu.Lock()
			r.ends++
			r.mu.Unlock()
		},
		OnPlaybackRestarted: func() {
			r.mu.Lock()
			r.restarts++
			r.mu.Unlock()
		},
		OnError: func(err error) {
			r.mu.Lock()
			r.errs = append(r.errs, err)
			r.mu.Unlock()
		},
	}
}

func (r *recorder) played() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.frames...)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func renderBlocks(s *Stream, n int) {
	out := make([]float32, testSamples)
	for i := 0; i < n; i++ {
		s.Render(out, 1, testRate)
	}
}

func assertReleasedOnce(t *testing.T, src *fakeSource) {
	t.Helper()
	for _, f := range src.frames() {
		if got := f.releases.Load(); got != 1 {
			t.Errorf("frame %d released %d times, want 1", f.nr, got)
		}
	}
}

func TestStreamPlaysFramesInOrder(t *testing.T) {
	pool := chunk.NewPool()
	rec := &recorder{}
	s, err := New(rec.config(pool))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	src := newFakeSource(20)
	if err := s.Open(context.Background(), src); err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	waitFor(t, "buffered frames", func() bool { return s.Stats().FramesRead == 20 })
	if got := s.QueuedAudioDuration(); got != 200*time.Millisecond {
		t.Errorf("queued = %v, want 200ms", got)
	}

	renderBlocks(s, 20)
	waitFor(t, "now playing frames", func() bool { return len(rec.played()) == 20 })

	for i, nr := range rec.played() {
		if nr != i {
			t.Fatalf("notification %d was frame %d", i, nr)
		}
	}
	rec.mu.Lock()
	if rec.ends != 1 {
		t.Errorf("playback end fired %d times, want 1", rec.ends)
	}
	if rec.restarts != 0 {
		t.Errorf("restarted fired %d times, want 0", rec.restarts)
	}
	rec.mu.Unlock()

	last := s.LastFrame()
	if last.Number() != 19 {
		t.Errorf("LastFrame = %d, want 19", last.Number())
	}
	last.Dispose()

	// the next render pops the last chunk, which goes back to the pool
	renderBlocks(s, 1)
	waitFor(t, "chunks returned", func() bool { return pool.Stats().Lent == 0 })

	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !src.closed {
		t.Error("source was not closed")
	}
	assertReleasedOnce(t, src)
	if st := pool.Stats(); st.DupReturns != 0 {
		t.Errorf("duplicate returns = %d, want 0\n%s", st.DupReturns, spew.Sdump(st))
	}
}

func TestStreamWaitsForFreeSlot(t *testing.T) {
	pool := chunk.NewPool()
	rec := &recorder{}
	cfg := rec.config(pool)
	cfg.Capacity = 4
	s, err := New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	src := newFakeSource(20)
	if err := s.Open(context.Background(), src); err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	waitFor(t, "player filled", func() bool {
		st := s.Stats()
		return st.FramesRead == 4 && st.Tracked == 4 && st.Pool.Lent == 4
	})
	time.Sleep(20 * time.Millisecond)
	if st := s.Stats(); st.FramesRead != 4 || st.Player.Overflowed != 0 {
		t.Fatalf("producer kept reading into a full player: %s", spew.Sdump(st))
	}

	renderBlocks(s, 4)
	waitFor(t, "head frames played", func() bool { return len(rec.played()) == 4 })
	want := []int{0, 1, 2, 3}
	for i, nr := range rec.played() {
		if nr != want[i] {
			t.Errorf("played[%d] = %d, want %d", i, nr, want[i])
		}
	}
	waitFor(t, "refill", func() bool { return s.Stats().FramesRead > 4 })

	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if st := s.Stats(); st.Player.Overflowed != 0 {
		t.Errorf("overflowed = %d, want 0", st.Player.Overflowed)
	}
	if st := pool.Stats(); st.Lent != 0 {
		t.Errorf("lent after close = %d, want 0", st.Lent)
	}
	assertReleasedOnce(t, src)
}

func TestStreamHighFrameRateKeepsHead(t *testing.T) {
	// 64 frames at 90 fps hold less than the one second the producer aims for
	clip := decode.Tone(440, testRate, 1, 3*time.Second)
	src, err := mvx.NewClipSource(clip, mvx.ClipOptions{FPS: 90, Mode: mvx.ModeOnce})
	if err != nil {
		t.Fatalf("NewClipSource failed: %v", err)
	}
	pool := chunk.NewPool()
	rec := &recorder{}
	s, err := New(rec.config(pool))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := s.Open(context.Background(), src); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	waitFor(t, "player filled", func() bool { return s.Stats().FramesRead == DefaultCapacity })
	time.Sleep(50 * time.Millisecond)
	st := s.Stats()
	if st.FramesRead != DefaultCapacity || st.Player.Overflowed != 0 {
		t.Fatalf("audio discarded before any output: %s", spew.Sdump(st))
	}

	renderBlocks(s, 1)
	waitFor(t, "first frame", func() bool { return len(rec.played()) == 1 })
	if got := rec.played()[0]; got != 0 {
		t.Errorf("first frame played = %d, want 0", got)
	}
}

func TestStreamLoopRestarts(t *testing.T) {
	pool := chunk.NewPool()
	rec := &recorder{}
	cfg := rec.config(pool)
	cfg.MinBufferedAudio = 100 * time.Millisecond
	s, err := New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	src := newFakeSource(5)
	src.loop = true
	if err := s.Open(context.Background(), src); err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	waitFor(t, "buffer", func() bool { return s.QueuedAudioDuration() >= 100*time.Millisecond })
	renderBlocks(s, 7)
	waitFor(t, "looped frames", func() bool { return len(rec.played()) >= 7 })

	want := []int{0, 1, 2, 3, 4, 0, 1}
	for i, nr := range rec.played()[:7] {
		if nr != want[i] {
			t.Errorf("played[%d] = %d, want %d", i, nr, want[i])
		}
	}
	rec.mu.Lock()
	if rec.restarts != 1 || rec.ends != 1 {
		t.Errorf("restarts = %d, ends = %d, want 1 and 1", rec.restarts, rec.ends)
	}
	rec.mu.Unlock()

	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if st := pool.Stats(); st.Lent != 0 {
		t.Errorf("lent after close = %d, want 0", st.Lent)
	}
	assertReleasedOnce(t, src)
}

func TestStreamSeek(t *testing.T) {
	pool := chunk.NewPool()
	rec := &recorder{}
	s, err := New(rec.config(pool))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	src := newFakeSource(30)
	if err := s.Open(context.Background(), src); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	waitFor(t, "buffer", func() bool { return s.Stats().FramesRead == 30 })

	if err := s.Seek(25); err != nil {
		t.Fatalf("Seek failed: %v", err)
	}
	waitFor(t, "refill after seek", func() bool {
		return s.Stats().FramesRead == 35 && s.QueuedAudioDuration() == 50*time.Millisecond
	})

	renderBlocks(s, 1)
	waitFor(t, "first frame after seek", func() bool { return len(rec.played()) == 1 })
	if got := rec.played()[0]; got != 25 {
		t.Errorf("first frame after seek = %d, want 25", got)
	}

	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if st := pool.Stats(); st.Lent != 0 {
		t.Errorf("lent after close = %d, want 0", st.Lent)
	}
	assertReleasedOnce(t, src)
}

func TestStreamSeekOutOfRangeKeepsQueue(t *testing.T) {
	pool := chunk.NewPool()
	rec := &recorder{}
	s, err := New(rec.config(pool))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	src := newFakeSource(30)
	if err := s.Open(context.Background(), src); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	waitFor(t, "buffer", func() bool { return s.Stats().FramesRead == 30 })
	queued := s.QueuedAudioDuration()

	for _, frame := range []int{-1, 30, 100} {
		if err := s.Seek(frame); !errors.Is(err, mvx.ErrSeekOutOfRange) {
			t.Errorf("Seek(%d) = %v, want ErrSeekOutOfRange", frame, err)
		}
	}
	if got := s.QueuedAudioDuration(); got != queued {
		t.Errorf("queued after rejected seek = %v, want %v", got, queued)
	}
	if st := s.Stats(); st.Player.ResetDropped != 0 || st.Tracked != 30 {
		t.Errorf("rejected seek touched the queue: %s", spew.Sdump(st))
	}

	renderBlocks(s, 1)
	waitFor(t, "first frame", func() bool { return len(rec.played()) == 1 })
	if got := rec.played()[0]; got != 0 {
		t.Errorf("first frame = %d, want 0", got)
	}

	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	assertReleasedOnce(t, src)
}

func TestStreamSkipsFramesWithoutUsableAudio(t *testing.T) {
	pool := chunk.NewPool()
	rec := &recorder{}
	s, err := New(rec.config(pool))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	src := newFakeSource(4)
	src.noAudio[1] = true
	src.bits[2] = 24

	if err := s.Open(context.Background(), src); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	waitFor(t, "all frames read", func() bool { return s.Stats().FramesRead == 4 })

	st := s.Stats()
	if st.FramesSilent != 1 || st.FramesSkipped != 1 {
		t.Errorf("silent = %d, skipped = %d, want 1 and 1\n%s", st.FramesSilent, st.FramesSkipped, spew.Sdump(st))
	}
	if st.Tracked != 2 {
		t.Errorf("tracked = %d, want 2", st.Tracked)
	}

	renderBlocks(s, 2)
	waitFor(t, "frames played", func() bool { return len(rec.played()) == 2 })
	if got := rec.played(); got[0] != 0 || got[1] != 3 {
		t.Errorf("played = %v, want [0 3]", got)
	}

	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	assertReleasedOnce(t, src)
}

func TestStreamSourceError(t *testing.T) {
	rec := &recorder{}
	s, err := New(rec.config(chunk.NewPool()))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	boom := errors.New("connection lost")
	src := newFakeSource(10)
	src.err = boom

	if err := s.Open(context.Background(), src); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	waitFor(t, "error reported", func() bool { return s.Stats().Errors == 1 })

	if err := s.Close(); !errors.Is(err, boom) {
		t.Errorf("Close = %v, want %v", err, boom)
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.errs) != 1 || !errors.Is(rec.errs[0], boom) {
		t.Errorf("OnError got %v", rec.errs)
	}
}

type silentSource struct{ fakeSource }

func (s *silentSource) Info() mvx.SourceInfo {
	return mvx.SourceInfo{Title: "silent", FrameCount: 1, FPS: 30}
}

func TestStreamLifecycle(t *testing.T) {
	s, err := New(Config{Pool: chunk.NewPool()})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	t.Run("rejects source without audio", func(t *testing.T) {
		if err := s.Open(context.Background(), &silentSource{}); !errors.Is(err, ErrNoAudio) {
			t.Errorf("Open = %v, want ErrNoAudio", err)
		}
		if s.IsOpen() {
			t.Error("stream open after rejected source")
		}
	})

	t.Run("seek needs open stream", func(t *testing.T) {
		if err := s.Seek(3); !errors.Is(err, ErrNotOpen) {
			t.Errorf("Seek = %v, want ErrNotOpen", err)
		}
	})

	t.Run("open twice", func(t *testing.T) {
		if err := s.Open(context.Background(), newFakeSource(3)); err != nil {
			t.Fatalf("Open failed: %v", err)
		}
		if err := s.Open(context.Background(), newFakeSource(3)); !errors.Is(err, ErrAlreadyOpen) {
			t.Errorf("second Open = %v, want ErrAlreadyOpen", err)
		}
	})

	t.Run("pause", func(t *testing.T) {
		s.Pause()
		if !s.IsPaused() {
			t.Error("IsPaused = false after Pause")
		}
		s.Resume()
		if s.IsPaused() {
			t.Error("IsPaused = true after Resume")
		}
	})

	t.Run("close twice", func(t *testing.T) {
		if err := s.Close(); err != nil {
			t.Errorf("Close failed: %v", err)
		}
		if err := s.Close(); err != nil {
			t.Errorf("second Close failed: %v", err)
		}
		if s.LastFrame() != nil {
			t.Error("LastFrame not nil after Close")
		}
	})

	t.Run("reopen", func(t *testing.T) {
		if err := s.Open(context.Background(), newFakeSource(3)); err != nil {
			t.Fatalf("reopen failed: %v", err)
		}
		if err := s.Close(); err != nil {
			t.Errorf("Close failed: %v", err)
		}
	})
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"negative capacity", Config{Capacity: -1}},
		{"negative buffer", Config{MinBufferedAudio: -time.Second}},
		{"negative poll", Config{PollInterval: -time.Millisecond}},
		{"negative rate", Config{OutputSampleRate: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.cfg); err == nil {
				t.Error("expected error")
			}
		})
	}
}
