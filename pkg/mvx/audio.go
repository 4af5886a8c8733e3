// ABOUTME: Audio layer extraction from frames
// ABOUTME: Copies a frame's PCM into a pooled chunk
package mvx

import (
	"fmt"

	"github.com/mvxplay/mvxplay-go/pkg/audio"
	"github.com/mvxplay/mvxplay-go/pkg/audio/chunk"
)

// ErrUnsupportedBitsPerSample is returned for audio layers that are not 8, 16 or 32 bit
var ErrUnsupportedBitsPerSample = audio.ErrUnsupportedBitDepth

// HasAudio reports whether the frame carries a non-empty audio layer
func HasAudio(f Frame) bool {
	return f != nil && f.PCMDataSize() > 0
}

// ExtractAudio copies the frame's audio layer into a chunk lent from pool.
// Frames without audio yield (nil, nil). The caller owns the returned chunk.
func ExtractAudio(ref *FrameRef, pool *chunk.Pool) (*chunk.Chunk, error) {
	f := ref.Frame()
	if f == nil {
		return nil, fmt.Errorf("frame reference already disposed")
	}

	if !HasAudio(f) {
		return nil, nil
	}
	size := f.PCMDataSize()

	channels, bits, rate := f.SamplingInfo()
	if !audio.SupportedBitDepth(bits) {
		return nil, fmt.Errorf("frame %d: %w: %d", f.Number(), ErrUnsupportedBitsPerSample, bits)
	}
	format := audio.Format{SampleRate: rate, Channels: channels, BitDepth: bits}
	if err := format.Validate(); err != nil {
		return nil, fmt.Errorf("frame %d: %w", f.Number(), err)
	}

	size -= size % format.FrameSize()
	if size == 0 {
		return nil, nil
	}

	c, err := pool.Lend(size, format)
	if err != nil {
		return nil, err
	}
	if n := f.CopyPCM(c.Bytes()); n < size {
		pool.Return(c)
		return nil, fmt.Errorf("frame %d: short pcm copy: %d of %d bytes", f.Number(), n, size)
	}
	return c, nil
}
