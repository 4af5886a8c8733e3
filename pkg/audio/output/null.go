// ABOUTME: Headless audio output
// ABOUTME: Pulls from the render callback on a ticker and discards the audio
package output

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultNullPeriod is the pull interval of a Null output
const DefaultNullPeriod = 10 * time.Millisecond

// Null renders in real time without a sound device
type Null struct {
	period time.Duration

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}

	frames atomic.Int64
	audio  atomic.Int64
}

// NewNull creates a headless output pulling every period (DefaultNullPeriod if zero)
func NewNull(period time.Duration) *Null {
	if period <= 0 {
		period = DefaultNullPeriod
	}
	return &Null{period: period}
}

// Open starts the pull loop
func (n *Null) Open(sampleRate, channels int, render RenderFunc) error {
	if sampleRate <= 0 || channels <= 0 {
		return fmt.Errorf("invalid output format: %dHz %dch", sampleRate, channels)
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.stop != nil {
		return fmt.Errorf("null output already open")
	}
	n.stop = make(chan struct{})
	n.done = make(chan struct{})

	framesPerTick := int(int64(sampleRate) * int64(n.period) / int64(time.Second))
	if framesPerTick < 1 {
		framesPerTick = 1
	}
	buf := make([]float32, framesPerTick*channels)

	go func(stop, done chan struct{}) {
		defer close(done)
		ticker := time.NewTicker(n.period)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				played := render(buf, channels, sampleRate)
				n.frames.Add(int64(framesPerTick))
				n.audio.Add(int64(played))
			}
		}
	}(n.stop, n.done)
	return nil
}

// Close stops the pull loop and waits for it to exit
func (n *Null) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.stop == nil {
		return nil
	}
	close(n.stop)
	<-n.done
	n.stop, n.done = nil, nil
	return nil
}

// Frames returns the total frames pulled, and how many of them held audio
func (n *Null) Frames() (total, audio int64) {
	return n.frames.Load(), n.audio.Load()
}
