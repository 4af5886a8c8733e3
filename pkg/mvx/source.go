// ABOUTME: Frame source interface and playback modes
// ABOUTME: Describes anything that yields MVX frames in order and can seek
package mvx

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// SourceInfo describes a frame source. A FrameCount of zero means unknown.
type SourceInfo struct {
	Title      string
	FrameCount int
	FPS        float64
	HasAudio   bool
}

// ErrSeekOutOfRange is returned when a seek target is not a frame of the source
var ErrSeekOutOfRange = errors.New("seek target out of range")

// CheckSeek reports whether frame is a valid seek target. A FrameCount of 0
// means the length is unknown and only negative frames are rejected.
func (i SourceInfo) CheckSeek(frame int) error {
	if frame < 0 || (i.FrameCount > 0 && frame >= i.FrameCount) {
		return fmt.Errorf("%w: frame %d not in [0, %d)", ErrSeekOutOfRange, frame, i.FrameCount)
	}
	return nil
}

// Source yields frames in playback order
type Source interface {
	Info() SourceInfo

	// Next returns the next frame, or io.EOF when the source is exhausted.
	// The caller owns the returned reference.
	Next(ctx context.Context) (*FrameRef, error)

	// Seek makes the next call to Next return frame
	Seek(frame int) error

	Close() error
}

// PlaybackMode controls what a source does at its last frame and how fast it yields frames
type PlaybackMode int

const (
	// ModeOnce plays forward and stops at the last frame
	ModeOnce PlaybackMode = iota
	// ModeLoop plays forward and restarts at frame 0
	ModeLoop
	// ModeRealtime loops, yielding frames no faster than the source FPS
	ModeRealtime
)

func (m PlaybackMode) String() string {
	switch m {
	case ModeOnce:
		return "once"
	case ModeLoop:
		return "loop"
	case ModeRealtime:
		return "realtime"
	}
	return fmt.Sprintf("PlaybackMode(%d)", int(m))
}

// ParsePlaybackMode parses "once", "loop" or "realtime"
func ParsePlaybackMode(s string) (PlaybackMode, error) {
	switch strings.ToLower(s) {
	case "once", "":
		return ModeOnce, nil
	case "loop":
		return ModeLoop, nil
	case "realtime":
		return ModeRealtime, nil
	}
	return ModeOnce, fmt.Errorf("unknown playback mode %q (once, loop, realtime)", s)
}

// Loops reports whether the mode wraps around at the end
func (m PlaybackMode) Loops() bool {
	return m == ModeLoop || m == ModeRealtime
}
