// ABOUTME: Pooled PCM chunk type
// ABOUTME: Holds one decoded frame's PCM bytes plus the format needed to play them back
package chunk

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/mvxplay/mvxplay-go/pkg/audio"
)

// Handle identifies one lend of a pool slot. A slot that is returned and lent
// again gets a new generation, so handles from earlier lends never match it.
type Handle struct {
	Index uint32
	Gen   uint32
}

func (h Handle) String() string {
	return fmt.Sprintf("chunk#%d.%d", h.Index, h.Gen)
}

// Chunk is a pool-owned buffer of interleaved PCM samples.
// Its contents are immutable between Lend and Return.
type Chunk struct {
	index uint32
	gen   atomic.Uint32
	lent  bool // guarded by the owning pool's mutex

	buf    []byte
	n      int
	format audio.Format
}

// Handle returns the identity of the current lend
func (c *Chunk) Handle() Handle {
	return Handle{Index: c.index, Gen: c.gen.Load()}
}

// Bytes returns the valid PCM bytes
func (c *Chunk) Bytes() []byte {
	return c.buf[:c.n]
}

// Len returns the number of valid bytes
func (c *Chunk) Len() int { return c.n }

// Cap returns the buffer capacity, which only ever grows
func (c *Chunk) Cap() int { return len(c.buf) }

// Format returns the source format of the samples
func (c *Chunk) Format() audio.Format { return c.format }

// BytesPerSample returns 1, 2 or 4
func (c *Chunk) BytesPerSample() int { return c.format.BytesPerSample() }

// Channels returns the source channel count
func (c *Chunk) Channels() int { return c.format.Channels }

// SampleRate returns the source sample rate
func (c *Chunk) SampleRate() int { return c.format.SampleRate }

// Frames returns the number of sample frames in the chunk
func (c *Chunk) Frames() int {
	fs := c.format.FrameSize()
	if fs == 0 {
		return 0
	}
	return c.n / fs
}

// Duration returns the playback length at the source sample rate
func (c *Chunk) Duration() time.Duration {
	return audio.FramesDuration(c.Frames(), c.format.SampleRate)
}

// Sample decodes channel ch of frame i to a float in [-1, 1)
func (c *Chunk) Sample(i, ch int) float32 {
	bps := c.format.BytesPerSample()
	off := (i*c.format.Channels + ch) * bps
	return audio.DecodeSample(c.buf[off:off+bps], bps)
}

// fill sizes the chunk for n bytes of the given format, growing the buffer if needed
func (c *Chunk) fill(n int, format audio.Format) (grew bool) {
	if n > len(c.buf) {
		c.buf = make([]byte, n)
		grew = true
	}
	c.n = n
	c.format = format
	return grew
}
