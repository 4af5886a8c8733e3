// ABOUTME: PCM audio encoder
// ABOUTME: Encodes int32 samples to unsigned 8-bit, 16-bit or 32-bit PCM bytes
package encode

import (
	"encoding/binary"
	"fmt"

	"github.com/mvxplay/mvxplay-go/pkg/audio"
)

// PCMEncoder encodes PCM audio
type PCMEncoder struct {
	bitDepth int
}

// NewPCM creates a new PCM encoder
func NewPCM(format audio.Format) (*PCMEncoder, error) {
	if !audio.SupportedBitDepth(format.BitDepth) {
		return nil, fmt.Errorf("%w: %d (supported: 8, 16, 32)", audio.ErrUnsupportedBitDepth, format.BitDepth)
	}

	return &PCMEncoder{
		bitDepth: format.BitDepth,
	}, nil
}

// BitDepth returns the output sample width in bits
func (e *PCMEncoder) BitDepth() int { return e.bitDepth }

// EncodedSize returns the byte length Encode produces for n samples
func (e *PCMEncoder) EncodedSize(n int) int { return n * e.bitDepth / 8 }

// Encode converts int32 samples to PCM bytes
func (e *PCMEncoder) Encode(samples []int32) ([]byte, error) {
	output := make([]byte, e.EncodedSize(len(samples)))
	e.EncodeTo(output, samples)
	return output, nil
}

// EncodeTo writes samples into dst, which must hold EncodedSize(len(samples)) bytes
func (e *PCMEncoder) EncodeTo(dst []byte, samples []int32) {
	switch e.bitDepth {
	case 8:
		for i, sample := range samples {
			dst[i] = audio.SampleToUint8(sample)
		}
	case 16:
		for i, sample := range samples {
			binary.LittleEndian.PutUint16(dst[i*2:], uint16(audio.SampleToInt16(sample)))
		}
	case 32:
		for i, sample := range samples {
			binary.LittleEndian.PutUint32(dst[i*4:], uint32(audio.SampleToInt32(sample)))
		}
	}
}

// Close releases resources
func (e *PCMEncoder) Close() error {
	return nil
}
