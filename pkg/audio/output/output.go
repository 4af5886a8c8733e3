// ABOUTME: Audio output interface definition
// ABOUTME: Common interface for pull-based playback backends
package output

import (
	"fmt"
	"strings"
)

// RenderFunc fills out with interleaved float samples at the device format
// and returns how many frames held audio. It runs on the device thread.
type RenderFunc func(out []float32, channels, sampleRate int) int

// Output represents an audio output device that pulls audio from a RenderFunc
type Output interface {
	// Open initializes the device and starts pulling from render
	Open(sampleRate, channels int, render RenderFunc) error

	// Close stops the device; render is not called after Close returns
	Close() error
}

// Backends lists the names accepted by New
var Backends = []string{"oto", "malgo", "null"}

// New creates the named backend
func New(name string) (Output, error) {
	switch strings.ToLower(name) {
	case "oto", "":
		return NewOto(), nil
	case "malgo":
		return NewMalgo(), nil
	case "null", "none":
		return NewNull(0), nil
	}
	return nil, fmt.Errorf("unknown output backend %q (available: %s)", name, strings.Join(Backends, ", "))
}

// renderBuffer is a float scratch buffer that only grows
type renderBuffer struct {
	buf []float32
}

func (b *renderBuffer) get(n int) []float32 {
	if cap(b.buf) < n {
		b.buf = make([]float32, n)
	}
	return b.buf[:n]
}
