// ABOUTME: Per-frame channel mapping and interpolation
// ABOUTME: Maps any source channel layout onto the output layout
package player

import (
	"github.com/mvxplay/mvxplay-go/pkg/audio/chunk"
	"github.com/mvxplay/mvxplay-go/pkg/audio/resample"
)

// renderFrame writes one output frame from source frame i of c, interpolated
// towards frame i+1 by frac. With fewer source channels than output channels
// the source channels repeat; with more, source channel s is averaged into
// output channel s % len(dst).
func renderFrame(dst []float32, c *chunk.Chunk, i int, frac, gain float32) {
	outCh := len(dst)
	srcCh := c.Channels()
	next := i + 1
	if next >= c.Frames() {
		next = i
	}

	if srcCh <= outCh {
		for o := range dst {
			s := o % srcCh
			dst[o] = resample.Lerp(c.Sample(i, s), c.Sample(next, s), frac) * gain
		}
		return
	}

	for o := range dst {
		var sum float32
		n := 0
		for s := o; s < srcCh; s += outCh {
			sum += resample.Lerp(c.Sample(i, s), c.Sample(next, s), frac)
			n++
		}
		dst[o] = sum / float32(n) * gain
	}
}
