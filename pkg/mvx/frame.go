// ABOUTME: MVX frame abstraction and shared frame references
// ABOUTME: Reference-counts frames so each holder disposes its own reference exactly once
package mvx

import (
	"sync/atomic"
)

// Frame is a decoded MVX frame with an optional audio layer
type Frame interface {
	// Number is the frame's index in its stream
	Number() int
	// PCMDataSize is the byte length of the audio layer, zero if there is none
	PCMDataSize() int
	// SamplingInfo describes the audio layer
	SamplingInfo() (channels, bitsPerSample, sampleRate int)
	// CopyPCM copies the audio layer into dst and returns the bytes copied
	CopyPCM(dst []byte) int
}

// Releaser is implemented by frames that hold resources to free once the
// last reference is gone
type Releaser interface {
	Release()
}

type sharedFrame struct {
	frame Frame
	refs  atomic.Int32
}

// FrameRef is one owned reference to a shared Frame. Every FrameRef must be
// disposed; the frame is released when the last one is.
type FrameRef struct {
	shared   *sharedFrame
	disposed atomic.Bool
}

// NewFrameRef wraps f in its first reference
func NewFrameRef(f Frame) *FrameRef {
	s := &sharedFrame{frame: f}
	s.refs.Store(1)
	return &FrameRef{shared: s}
}

// Frame returns the underlying frame, or nil once this reference is disposed
func (r *FrameRef) Frame() Frame {
	if r == nil || r.disposed.Load() {
		return nil
	}
	return r.shared.frame
}

// Number returns the frame number, or -1 once disposed
func (r *FrameRef) Number() int {
	f := r.Frame()
	if f == nil {
		return -1
	}
	return f.Number()
}

// Clone returns a new reference to the same frame. Cloning a disposed
// reference returns nil.
func (r *FrameRef) Clone() *FrameRef {
	if r == nil || r.disposed.Load() {
		return nil
	}
	r.shared.refs.Add(1)
	return &FrameRef{shared: r.shared}
}

// Dispose drops this reference. Disposing twice is a no-op.
func (r *FrameRef) Dispose() {
	if r == nil || !r.disposed.CompareAndSwap(false, true) {
		return
	}
	if r.shared.refs.Add(-1) == 0 {
		if rel, ok := r.shared.frame.(Releaser); ok {
			rel.Release()
		}
	}
}

// Disposed reports whether Dispose has been called on this reference
func (r *FrameRef) Disposed() bool {
	return r == nil || r.disposed.Load()
}
