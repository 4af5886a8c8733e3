// ABOUTME: Frame source backed by a decoded clip
// ABOUTME: Slices a clip into fixed-rate frames whose audio layer is PCM at a chosen bit depth
package mvx

import (
	"context"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	"github.com/mvxplay/mvxplay-go/pkg/audio"
	"github.com/mvxplay/mvxplay-go/pkg/audio/decode"
	"github.com/mvxplay/mvxplay-go/pkg/audio/encode"
)

const (
	// DefaultFPS is the frame rate used when ClipOptions.FPS is zero
	DefaultFPS = 30.0
	// DefaultBitDepth is the PCM width used when ClipOptions.BitDepth is zero
	DefaultBitDepth = 16
)

// ClipOptions configures a ClipSource
type ClipOptions struct {
	FPS      float64
	BitDepth int
	Mode     PlaybackMode
}

// ClipSource serves a decoded clip as a sequence of frames
type ClipSource struct {
	mu         sync.Mutex
	clip       *decode.Clip
	opts       ClipOptions
	enc        *encode.PCMEncoder
	frameCount int
	next       int

	// realtime pacing
	paceStart time.Time
	paced     int

	buffers sync.Pool
}

// NewClipSource slices clip into frames at opts.FPS
func NewClipSource(clip *decode.Clip, opts ClipOptions) (*ClipSource, error) {
	if opts.FPS == 0 {
		opts.FPS = DefaultFPS
	}
	if opts.BitDepth == 0 {
		opts.BitDepth = DefaultBitDepth
	}
	if opts.FPS < 0 || math.IsNaN(opts.FPS) || math.IsInf(opts.FPS, 0) {
		return nil, fmt.Errorf("invalid fps: %v", opts.FPS)
	}
	format := audio.Format{SampleRate: clip.SampleRate, Channels: clip.Channels, BitDepth: opts.BitDepth}
	if err := format.Validate(); err != nil {
		return nil, err
	}
	enc, err := encode.NewPCM(format)
	if err != nil {
		return nil, err
	}

	frameCount := int(math.Ceil(float64(clip.Frames()) * opts.FPS / float64(clip.SampleRate)))
	return &ClipSource{
		clip:       clip,
		opts:       opts,
		enc:        enc,
		frameCount: frameCount,
	}, nil
}

// Info describes the clip as a frame stream
func (s *ClipSource) Info() SourceInfo {
	return SourceInfo{
		Title:      s.clip.Title,
		FrameCount: s.frameCount,
		FPS:        s.opts.FPS,
		HasAudio:   s.frameCount > 0,
	}
}

// Mode returns the playback mode
func (s *ClipSource) Mode() PlaybackMode { return s.opts.Mode }

// Next returns the next frame, wrapping or ending according to the playback mode
func (s *ClipSource) Next(ctx context.Context) (*FrameRef, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.next >= s.frameCount {
		if !s.opts.Mode.Loops() || s.frameCount == 0 {
			s.mu.Unlock()
			return nil, io.EOF
		}
		s.next = 0
	}
	nr := s.next
	s.next++
	due := s.due()
	s.mu.Unlock()

	if !due.IsZero() {
		if wait := time.Until(due); wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
		}
	}

	return NewFrameRef(s.frame(nr)), nil
}

// due returns when the next realtime frame may be yielded. Caller holds s.mu.
func (s *ClipSource) due() time.Time {
	if s.opts.Mode != ModeRealtime {
		return time.Time{}
	}
	if s.paceStart.IsZero() {
		s.paceStart = time.Now()
	}
	d := s.paceStart.Add(time.Duration(float64(s.paced) / s.opts.FPS * float64(time.Second)))
	s.paced++
	return d
}

// Seek makes frame the next one returned
func (s *ClipSource) Seek(frame int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.Info().CheckSeek(frame); err != nil {
		return err
	}
	s.next = frame
	s.paceStart = time.Time{}
	s.paced = 0
	return nil
}

// Close releases nothing; frames already handed out stay valid
func (s *ClipSource) Close() error { return nil }

// sampleRange returns the clip frames covered by frame nr
func (s *ClipSource) sampleRange(nr int) (start, end int) {
	perFrame := float64(s.clip.SampleRate) / s.opts.FPS
	start = int(math.Round(float64(nr) * perFrame))
	end = int(math.Round(float64(nr+1) * perFrame))
	if end > s.clip.Frames() {
		end = s.clip.Frames()
	}
	return start, end
}

func (s *ClipSource) frame(nr int) *clipFrame {
	start, end := s.sampleRange(nr)
	samples := s.clip.Samples[start*s.clip.Channels : end*s.clip.Channels]

	size := s.enc.EncodedSize(len(samples))
	var buf []byte
	if p, ok := s.buffers.Get().(*[]byte); ok && cap(*p) >= size {
		buf = (*p)[:size]
	} else {
		buf = make([]byte, size)
	}
	s.enc.EncodeTo(buf, samples)

	return &clipFrame{
		nr:       nr,
		channels: s.clip.Channels,
		bits:     s.enc.BitDepth(),
		rate:     s.clip.SampleRate,
		pcm:      buf,
		pool:     &s.buffers,
	}
}

type clipFrame struct {
	nr       int
	channels int
	bits     int
	rate     int
	pcm      []byte
	pool     *sync.Pool
}

func (f *clipFrame) Number() int      { return f.nr }
func (f *clipFrame) PCMDataSize() int { return len(f.pcm) }
func (f *clipFrame) SamplingInfo() (int, int, int) {
	return f.channels, f.bits, f.rate
}
func (f *clipFrame) CopyPCM(dst []byte) int { return copy(dst, f.pcm) }

// Release recycles the PCM buffer for later frames
func (f *clipFrame) Release() {
	if f.pcm == nil {
		return
	}
	buf := f.pcm
	f.pcm = nil
	f.pool.Put(&buf)
}
