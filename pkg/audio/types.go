// ABOUTME: Audio type definitions
// ABOUTME: Defines PCM formats and sample conversion between int32, bytes and float32
package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/chewxy/math32"
)

const (
	// 24-bit audio range constants
	Max24Bit = 8388607  // 2^23 - 1
	Min24Bit = -8388608 // -2^23
)

// ErrUnsupportedBitDepth is returned for PCM that is not 8, 16 or 32 bits per sample
var ErrUnsupportedBitDepth = errors.New("unsupported bits per sample")

// Format describes a PCM stream format
type Format struct {
	SampleRate int
	Channels   int
	BitDepth   int
}

// BytesPerSample returns the size of one sample of one channel
func (f Format) BytesPerSample() int {
	return f.BitDepth / 8
}

// FrameSize returns the size of one sample frame (all channels)
func (f Format) FrameSize() int {
	return f.BytesPerSample() * f.Channels
}

// Validate checks that the format can be played back
func (f Format) Validate() error {
	if !SupportedBitDepth(f.BitDepth) {
		return fmt.Errorf("%w: %d", ErrUnsupportedBitDepth, f.BitDepth)
	}
	if f.Channels <= 0 {
		return fmt.Errorf("invalid channel count: %d", f.Channels)
	}
	if f.SampleRate <= 0 {
		return fmt.Errorf("invalid sample rate: %d", f.SampleRate)
	}
	return nil
}

func (f Format) String() string {
	return fmt.Sprintf("%dHz/%dch/%dbit", f.SampleRate, f.Channels, f.BitDepth)
}

// SupportedBitDepth reports whether bits is 8 (unsigned), 16 or 32 (signed)
func SupportedBitDepth(bits int) bool {
	return bits == 8 || bits == 16 || bits == 32
}

// DecodeSample reads one little-endian sample and scales it to [-1, 1).
// 1 byte is unsigned, 2 and 4 bytes are signed. Any other width yields 0.
func DecodeSample(b []byte, bytesPerSample int) float32 {
	switch bytesPerSample {
	case 1:
		return (float32(b[0]) - 128) / 128
	case 2:
		return float32(int16(binary.LittleEndian.Uint16(b))) / 32768
	case 4:
		return float32(float64(int32(binary.LittleEndian.Uint32(b))) / 2147483648)
	}
	return 0
}

// SampleToInt16 converts int32 sample to int16 (for 16-bit playback)
func SampleToInt16(sample int32) int16 {
	// Right-shift to convert 24-bit range to 16-bit range
	return int16(sample >> 8)
}

// SampleFromInt16 converts int16 sample to int32 (left-justified in 24-bit)
func SampleFromInt16(sample int16) int32 {
	return int32(sample) << 8
}

// SampleToUint8 converts a 24-bit range sample to unsigned 8-bit PCM
func SampleToUint8(sample int32) uint8 {
	return uint8((sample >> 16) + 128)
}

// SampleToInt32 converts a 24-bit range sample to full-scale 32-bit PCM
func SampleToInt32(sample int32) int32 {
	return clamp24(sample) << 8
}

// PutFloat32LE encodes samples as little-endian IEEE floats into dst.
// dst must hold 4*len(samples) bytes.
func PutFloat32LE(dst []byte, samples []float32) {
	for i, s := range samples {
		binary.LittleEndian.PutUint32(dst[i*4:], math32.Float32bits(s))
	}
}

// Clamp limits a float sample to [-1, 1]
func Clamp(s float32) float32 {
	if s > 1 {
		return 1
	}
	if s < -1 {
		return -1
	}
	return s
}

// FramesDuration converts a frame count at sampleRate into a duration
func FramesDuration(frames int, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	return time.Duration(int64(frames) * int64(time.Second) / int64(sampleRate))
}

func clamp24(sample int32) int32 {
	if sample > Max24Bit {
		return Max24Bit
	}
	if sample < Min24Bit {
		return Min24Bit
	}
	return sample
}
