// ABOUTME: Block linear resampler for whole clips
// ABOUTME: Converts interleaved 24-bit range samples between sample rates
package resample

// Resampler converts interleaved int32 samples from one rate to another using
// linear interpolation. The position carries over between calls, so a long
// signal may be fed in blocks.
type Resampler struct {
	inputRate  int
	outputRate int
	channels   int
	cursor     Cursor
}

// New creates a new resampler
func New(inputRate, outputRate, channels int) *Resampler {
	return &Resampler{
		inputRate:  inputRate,
		outputRate: outputRate,
		channels:   channels,
		cursor:     NewCursor(inputRate, outputRate, 1),
	}
}

// Resample fills output from input and returns the number of samples written.
// The last input frame is only used as an interpolation partner, so each
// block should overlap the previous one by a frame for seamless output.
func (r *Resampler) Resample(input []int32, output []int32) int {
	if r.channels <= 0 || r.cursor.Step() == 0 {
		return 0
	}
	inputFrames := len(input) / r.channels
	outputFrames := len(output) / r.channels

	outIdx := 0
	for outIdx < outputFrames {
		i := r.cursor.Index()
		if i >= inputFrames-1 {
			break
		}
		frac := float64(r.cursor.Frac())
		for ch := 0; ch < r.channels; ch++ {
			a := float64(input[i*r.channels+ch])
			b := float64(input[(i+1)*r.channels+ch])
			output[outIdx*r.channels+ch] = int32(a + (b-a)*frac)
		}
		outIdx++
		r.cursor.Advance()
	}

	r.cursor.Rebase(r.cursor.Index())
	return outIdx * r.channels
}

// Reset resets the resampler state
func (r *Resampler) Reset() {
	r.cursor.Reset()
}

// OutputSamplesNeeded calculates how many output samples will be produced from input samples
func (r *Resampler) OutputSamplesNeeded(inputSamples int) int {
	if r.channels <= 0 || r.inputRate <= 0 {
		return 0
	}
	inputFrames := inputSamples / r.channels
	outputFrames := int(int64(inputFrames) * int64(r.outputRate) / int64(r.inputRate))
	return outputFrames * r.channels
}

// Convert resamples a complete interleaved signal in one call
func Convert(input []int32, channels, inputRate, outputRate int) []int32 {
	if inputRate == outputRate || channels <= 0 {
		out := make([]int32, len(input))
		copy(out, input)
		return out
	}
	r := New(inputRate, outputRate, channels)
	out := make([]int32, r.OutputSamplesNeeded(len(input))+channels)
	n := r.Resample(input, out)
	return out[:n]
}
