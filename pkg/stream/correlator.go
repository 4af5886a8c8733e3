// ABOUTME: Pairs queued audio chunks with the frames they were cut from
// ABOUTME: Turns player events into now-playing frames and returns chunks to the pool
package stream

import (
	"github.com/mvxplay/mvxplay-go/pkg/audio/chunk"
	"github.com/mvxplay/mvxplay-go/pkg/mvx"
)

type pair struct {
	handle chunk.Handle
	frame  *mvx.FrameRef
}

// Correlator keeps the FIFO of (chunk, frame) pairs in enqueue order. It is
// not safe for concurrent use; Stream guards it with its own lock.
type Correlator struct {
	pool    *chunk.Pool
	pairs   []pair
	head    int
	members map[chunk.Handle]struct{}
}

// NewCorrelator creates an empty correlator that releases chunks to pool
func NewCorrelator(pool *chunk.Pool) *Correlator {
	if pool == nil {
		pool = chunk.Default()
	}
	return &Correlator{
		pool:    pool,
		members: make(map[chunk.Handle]struct{}),
	}
}

// Push records that the chunk with handle h carries the audio of frame.
// The correlator takes ownership of frame.
func (c *Correlator) Push(h chunk.Handle, frame *mvx.FrameRef) {
	if c.head > 0 && c.head >= len(c.pairs)/2 {
		n := copy(c.pairs, c.pairs[c.head:])
		clear(c.pairs[n:])
		c.pairs = c.pairs[:n]
		c.head = 0
	}
	c.pairs = append(c.pairs, pair{handle: h, frame: frame})
	c.members[h] = struct{}{}
}

// Len returns the number of tracked pairs
func (c *Correlator) Len() int {
	return len(c.pairs) - c.head
}

// Contains reports whether h is tracked
func (c *Correlator) Contains(h chunk.Handle) bool {
	_, ok := c.members[h]
	return ok
}

// Started handles the start of playback of chunk h. Pairs queued before h
// are dropped and their frames disposed; their chunks come back later as
// discard events. The frame paired with h is returned and now belongs to the
// caller. Unknown handles return nil.
func (c *Correlator) Started(h chunk.Handle) *mvx.FrameRef {
	if !c.Contains(h) {
		return nil
	}
	for c.Len() > 0 {
		p := c.popFront()
		if p.handle == h {
			return p.frame
		}
		p.frame.Dispose()
	}
	return nil
}

// Discarded handles a chunk leaving the player. A chunk that is no longer
// tracked (it already started, or was never paired) goes straight back to the
// pool. A tracked chunk never played: it and every pair queued before it are
// dropped, releasing their chunks and disposing their frames.
func (c *Correlator) Discarded(h chunk.Handle) {
	if !c.Contains(h) {
		c.pool.Release(h)
		return
	}
	for c.Len() > 0 {
		p := c.popFront()
		c.pool.Release(p.handle)
		p.frame.Dispose()
		if p.handle == h {
			return
		}
	}
}

// Drain disposes every tracked frame and forgets all pairs. The chunks stay
// lent; the player's reset events return them.
func (c *Correlator) Drain() {
	for c.Len() > 0 {
		c.popFront().frame.Dispose()
	}
	c.pairs = c.pairs[:0]
	c.head = 0
}

func (c *Correlator) popFront() pair {
	p := c.pairs[c.head]
	c.pairs[c.head] = pair{}
	c.head++
	delete(c.members, p.handle)
	return p
}
