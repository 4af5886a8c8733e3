// ABOUTME: Test tone generator
// ABOUTME: Generates a sine wave clip for testing without media files
package decode

import (
	"math"
	"time"

	"github.com/mvxplay/mvxplay-go/pkg/audio"
)

// DefaultToneFrequency is A4
const DefaultToneFrequency = 440.0

// Tone generates a sine wave at half amplitude, duplicated across channels
func Tone(frequency float64, sampleRate, channels int, d time.Duration) *Clip {
	frames := int(int64(d) * int64(sampleRate) / int64(time.Second))
	samples := make([]int32, frames*channels)

	for i := 0; i < frames; i++ {
		t := float64(i) / float64(sampleRate)
		v := int32(math.Sin(2*math.Pi*frequency*t) * float64(audio.Max24Bit) * 0.5)
		for ch := 0; ch < channels; ch++ {
			samples[i*channels+ch] = v
		}
	}

	return &Clip{
		Title:      "Test Tone",
		SampleRate: sampleRate,
		Channels:   channels,
		Samples:    samples,
	}
}
