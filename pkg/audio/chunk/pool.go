// ABOUTME: Shared chunk pool
// ABOUTME: Lends reusable PCM chunks with best-fit selection and generation-checked returns
package chunk

import (
	"errors"
	"fmt"
	"sync"

	"github.com/mvxplay/mvxplay-go/pkg/audio"
)

// ErrEmptyPCM is returned by Allocate when there is no whole sample frame to copy
var ErrEmptyPCM = errors.New("pcm data holds no complete sample frame")

// Stats reports pool usage counters
type Stats struct {
	Slots      int
	Free       int
	Lent       int
	Allocs     int64 // new slots created
	Reuses     int64 // lends served by an existing slot without growing it
	Grows      int64 // lends that had to enlarge an existing slot
	DupReturns int64 // returns or releases of chunks that were already free or stale
}

// Pool owns every Chunk it has ever created. Chunks are never freed back to
// the runtime; a returned chunk keeps its buffer for the next lend.
type Pool struct {
	mu    sync.Mutex
	slots []*Chunk
	free  []uint32 // indexes of free slots

	allocs     int64
	reuses     int64
	grows      int64
	dupReturns int64
}

var (
	defaultPool     *Pool
	defaultPoolOnce sync.Once
)

// Default returns the process-wide pool, creating it on first use
func Default() *Pool {
	defaultPoolOnce.Do(func() {
		defaultPool = NewPool()
	})
	return defaultPool
}

// NewPool creates an empty pool
func NewPool() *Pool {
	return &Pool{}
}

// Lend hands out a chunk sized for size bytes of format. The caller fills
// Bytes() and must later Return or Release it.
func (p *Pool) Lend(size int, format audio.Format) (*Chunk, error) {
	if err := format.Validate(); err != nil {
		return nil, err
	}
	if size < 0 {
		return nil, fmt.Errorf("invalid chunk size: %d", size)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	c, fresh := p.take(size)
	if c.fill(size, format) && !fresh {
		p.grows++
	}
	c.lent = true
	c.gen.Add(1)
	return c, nil
}

// Allocate copies raw into a pooled chunk. Trailing bytes that do not form a
// whole sample frame are dropped.
func (p *Pool) Allocate(raw []byte, bytesPerSample, channels, sampleRate int) (*Chunk, error) {
	format := audio.Format{SampleRate: sampleRate, Channels: channels, BitDepth: bytesPerSample * 8}
	if err := format.Validate(); err != nil {
		return nil, err
	}
	fs := format.FrameSize()
	n := len(raw) - len(raw)%fs
	if n == 0 {
		return nil, ErrEmptyPCM
	}

	c, err := p.Lend(n, format)
	if err != nil {
		return nil, err
	}
	copy(c.buf, raw[:n])
	return c, nil
}

// Return marks c free. Returning a free chunk or nil does nothing.
func (p *Pool) Return(c *Chunk) {
	if c == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.release(c)
}

// Release marks the chunk identified by h free if h is still its current lend
func (p *Pool) Release(h Handle) {
	p.mu.Lock()
	defer p.mu.Unlock()

	c := p.lookup(h)
	if c == nil {
		p.dupReturns++
		return
	}
	p.release(c)
}

// lookup returns the chunk lent under h, or nil if h is stale or free.
// Caller holds p.mu.
func (p *Pool) lookup(h Handle) *Chunk {
	if int(h.Index) >= len(p.slots) {
		return nil
	}
	c := p.slots[h.Index]
	if !c.lent || c.gen.Load() != h.Gen {
		return nil
	}
	return c
}

// Stats returns a snapshot of the pool counters
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	return Stats{
		Slots:      len(p.slots),
		Free:       len(p.free),
		Lent:       len(p.slots) - len(p.free),
		Allocs:     p.allocs,
		Reuses:     p.reuses,
		Grows:      p.grows,
		DupReturns: p.dupReturns,
	}
}

// take picks a free slot for size bytes: the smallest one that fits, else the
// largest one (which fill will grow), else a new slot. Caller holds p.mu.
func (p *Pool) take(size int) (c *Chunk, fresh bool) {
	best, largest := -1, -1
	for i, idx := range p.free {
		c := p.slots[idx]
		if c.Cap() >= size && (best < 0 || c.Cap() < p.slots[p.free[best]].Cap()) {
			best = i
		}
		if largest < 0 || c.Cap() > p.slots[p.free[largest]].Cap() {
			largest = i
		}
	}

	pick := best
	if pick < 0 {
		pick = largest
	}
	if pick >= 0 {
		idx := p.free[pick]
		last := len(p.free) - 1
		p.free[pick] = p.free[last]
		p.free = p.free[:last]
		if best >= 0 {
			p.reuses++
		}
		return p.slots[idx], false
	}

	c = &Chunk{index: uint32(len(p.slots))}
	p.slots = append(p.slots, c)
	p.allocs++
	return c, true
}

// release frees c unless it is already free. Caller holds p.mu.
func (p *Pool) release(c *Chunk) {
	if !c.lent || int(c.index) >= len(p.slots) || p.slots[c.index] != c {
		p.dupReturns++
		return
	}
	c.lent = false
	c.n = 0
	p.free = append(p.free, c.index)
}
