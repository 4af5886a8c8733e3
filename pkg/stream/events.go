// ABOUTME: Hand-off queue for player events
// ABOUTME: Lets the audio callback record events without blocking on the stream lock
package stream

import (
	"sync"

	"github.com/mvxplay/mvxplay-go/pkg/audio/chunk"
)

type eventKind uint8

const (
	eventStarted eventKind = iota
	eventDiscarded
)

type event struct {
	kind   eventKind
	handle chunk.Handle
}

// eventQueue is appended to from player callbacks and drained by the
// dispatcher. push never blocks and only allocates when the backlog outgrows
// the preallocated buffer.
type eventQueue struct {
	mu      sync.Mutex
	pending []event
	wake    chan struct{}
}

func newEventQueue(size int) *eventQueue {
	return &eventQueue{
		pending: make([]event, 0, size),
		wake:    make(chan struct{}, 1),
	}
}

func (q *eventQueue) push(kind eventKind, h chunk.Handle) {
	q.mu.Lock()
	q.pending = append(q.pending, event{kind: kind, handle: h})
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// drain moves every pending event into dst and returns it. The two buffers
// swap so neither side allocates in steady state.
func (q *eventQueue) drain(dst []event) []event {
	q.mu.Lock()
	defer q.mu.Unlock()
	dst, q.pending = q.pending, dst[:0]
	return dst
}
