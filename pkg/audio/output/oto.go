// ABOUTME: Oto-based audio output implementation
// ABOUTME: Feeds an oto player from a render callback as 32-bit float PCM
package output

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/mvxplay/mvxplay-go/pkg/audio"
)

// DefaultOtoBuffer is the device buffer length requested from oto
const DefaultOtoBuffer = 50 * time.Millisecond

// oto allows a single context per process
var (
	otoCtxOnce sync.Once
	otoCtx     *oto.Context
	otoErr     error
	otoRate    int
	otoChans   int
)

// Oto output implementation using oto library
type Oto struct {
	mu     sync.Mutex
	player *oto.Player
	reader *renderReader
}

// NewOto creates a new Oto output
func NewOto() *Oto {
	return &Oto{}
}

// Open initializes the output device
func (o *Oto) Open(sampleRate, channels int, render RenderFunc) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.player != nil {
		return fmt.Errorf("oto output already open")
	}

	otoCtxOnce.Do(func() {
		ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
			SampleRate:   sampleRate,
			ChannelCount: channels,
			Format:       oto.FormatFloat32LE,
			BufferSize:   DefaultOtoBuffer,
		})
		if err != nil {
			otoErr = fmt.Errorf("failed to create oto context: %w", err)
			return
		}
		<-ready
		otoCtx, otoRate, otoChans = ctx, sampleRate, channels
	})
	if otoErr != nil {
		return otoErr
	}
	if otoRate != sampleRate || otoChans != channels {
		log.Printf("Warning: oto context is %dHz %dch, cannot reopen at %dHz %dch",
			otoRate, otoChans, sampleRate, channels)
	}

	o.reader = &renderReader{render: render, channels: otoChans, sampleRate: otoRate}
	o.player = otoCtx.NewPlayer(o.reader)
	o.player.Play()

	log.Printf("Audio output initialized: %dHz, %d channels (oto/f32)", otoRate, otoChans)
	return nil
}

// Close releases output resources
func (o *Oto) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.player == nil {
		return nil
	}
	o.reader.stop()
	o.player.Pause()
	err := o.player.Close()
	o.player = nil
	return err
}

// renderReader adapts a RenderFunc to the io.Reader oto pulls from
type renderReader struct {
	mu         sync.Mutex
	render     RenderFunc
	channels   int
	sampleRate int
	buf        renderBuffer
	stopped    bool
}

func (r *renderReader) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	frameSize := 4 * r.channels
	frames := len(p) / frameSize
	if frames == 0 {
		return 0, nil
	}

	samples := r.buf.get(frames * r.channels)
	if r.stopped {
		clear(samples)
	} else {
		r.render(samples, r.channels, r.sampleRate)
	}
	audio.PutFloat32LE(p, samples)
	return frames * frameSize, nil
}

func (r *renderReader) stop() {
	r.mu.Lock()
	r.stopped = true
	r.mu.Unlock()
}
