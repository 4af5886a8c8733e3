// ABOUTME: Tests for audio types
// ABOUTME: Tests format validation and sample conversion functions
package audio

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"
	"time"
)

func TestSampleFromInt16(t *testing.T) {
	tests := []struct {
		name     string
		input    int16
		expected int32
	}{
		{"zero", 0, 0},
		{"positive", 100, 100 << 8},
		{"negative", -100, -100 << 8},
		{"max", 32767, 32767 << 8},
		{"min", -32768, -32768 << 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := SampleFromInt16(tt.input)
			if result != tt.expected {
				t.Errorf("expected %d, got %d", tt.expected, result)
			}
		})
	}
}

func TestRoundTrip16Bit(t *testing.T) {
	samples := []int16{0, 100, -100, 1000, -1000, 32767, -32768}

	for _, original := range samples {
		sample32 := SampleFromInt16(original)
		result := SampleToInt16(sample32)
		if result != original {
			t.Errorf("round-trip failed: %d -> %d -> %d", original, sample32, result)
		}
	}
}

func TestSampleToUint8(t *testing.T) {
	tests := []struct {
		name     string
		input    int32
		expected uint8
	}{
		{"zero", 0, 128},
		{"max", Max24Bit, 255},
		{"min", Min24Bit, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SampleToUint8(tt.input); got != tt.expected {
				t.Errorf("expected %d, got %d", tt.expected, got)
			}
		})
	}
}

func TestSampleToInt32(t *testing.T) {
	if got := SampleToInt32(0x123456); got != 0x12345600 {
		t.Errorf("expected %#x, got %#x", 0x12345600, got)
	}
	// Out of range input is clamped before scaling
	if got := SampleToInt32(Max24Bit + 10); got != Max24Bit<<8 {
		t.Errorf("expected clamp to %d, got %d", Max24Bit<<8, got)
	}
}

func TestDecodeSample(t *testing.T) {
	s16 := make([]byte, 2)
	binary.LittleEndian.PutUint16(s16, uint16(0x4000))
	neg16 := make([]byte, 2)
	binary.LittleEndian.PutUint16(neg16, uint16(0x8000))
	s32 := make([]byte, 4)
	binary.LittleEndian.PutUint32(s32, uint32(0x40000000))

	tests := []struct {
		name     string
		input    []byte
		bps      int
		expected float32
	}{
		{"u8 midpoint", []byte{128}, 1, 0},
		{"u8 min", []byte{0}, 1, -1},
		{"u8 high", []byte{192}, 1, 0.5},
		{"s16 half", s16, 2, 0.5},
		{"s16 min", neg16, 2, -1},
		{"s32 half", s32, 4, 0.5},
		{"unsupported width", []byte{1, 2, 3}, 3, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DecodeSample(tt.input, tt.bps)
			if math.Abs(float64(got-tt.expected)) > 1e-6 {
				t.Errorf("expected %f, got %f", tt.expected, got)
			}
		})
	}
}

func TestFormatValidate(t *testing.T) {
	tests := []struct {
		name    string
		format  Format
		wantErr bool
	}{
		{"16-bit stereo", Format{SampleRate: 48000, Channels: 2, BitDepth: 16}, false},
		{"8-bit mono", Format{SampleRate: 8000, Channels: 1, BitDepth: 8}, false},
		{"32-bit", Format{SampleRate: 44100, Channels: 2, BitDepth: 32}, false},
		{"24-bit rejected", Format{SampleRate: 48000, Channels: 2, BitDepth: 24}, true},
		{"no channels", Format{SampleRate: 48000, Channels: 0, BitDepth: 16}, true},
		{"no rate", Format{SampleRate: 0, Channels: 2, BitDepth: 16}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.format.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	err := Format{SampleRate: 48000, Channels: 2, BitDepth: 24}.Validate()
	if !errors.Is(err, ErrUnsupportedBitDepth) {
		t.Errorf("expected ErrUnsupportedBitDepth, got %v", err)
	}
}

func TestFormatSizes(t *testing.T) {
	f := Format{SampleRate: 16000, Channels: 2, BitDepth: 16}
	if f.BytesPerSample() != 2 {
		t.Errorf("expected 2 bytes per sample, got %d", f.BytesPerSample())
	}
	if f.FrameSize() != 4 {
		t.Errorf("expected frame size 4, got %d", f.FrameSize())
	}
}

func TestPutFloat32LE(t *testing.T) {
	buf := make([]byte, 8)
	PutFloat32LE(buf, []float32{0.25, -1})

	if got := math.Float32frombits(binary.LittleEndian.Uint32(buf)); got != 0.25 {
		t.Errorf("expected 0.25, got %f", got)
	}
	if got := math.Float32frombits(binary.LittleEndian.Uint32(buf[4:])); got != -1 {
		t.Errorf("expected -1, got %f", got)
	}
}

func TestFramesDuration(t *testing.T) {
	if got := FramesDuration(24000, 48000); got != 500*time.Millisecond {
		t.Errorf("expected 500ms, got %v", got)
	}
	if got := FramesDuration(100, 0); got != 0 {
		t.Errorf("expected 0 for invalid rate, got %v", got)
	}
}
