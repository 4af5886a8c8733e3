// ABOUTME: Tests for audio resampling
// ABOUTME: Tests cursor stepping and linear interpolation between sample rates
package resample

import (
	"math"
	"testing"
)

func TestStep(t *testing.T) {
	tests := []struct {
		name     string
		src, dst int
		speed    float64
		expected float64
	}{
		{"passthrough", 48000, 48000, 1, 1},
		{"upsample", 24000, 48000, 1, 0.5},
		{"downsample", 48000, 24000, 1, 2},
		{"double speed", 48000, 48000, 2, 2},
		{"zero speed", 48000, 48000, 0, 0},
		{"invalid rate", 0, 48000, 1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Step(tt.src, tt.dst, tt.speed); got != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestCursorRebaseCarriesFraction(t *testing.T) {
	c := NewCursor(3, 2, 1) // step 1.5

	for i := 0; i < 3; i++ {
		c.Advance()
	}
	if c.Pos() != 4.5 {
		t.Fatalf("expected pos 4.5, got %v", c.Pos())
	}

	c.Rebase(4)
	if c.Index() != 0 || c.Frac() != 0.5 {
		t.Errorf("expected index 0 frac 0.5, got %d %v", c.Index(), c.Frac())
	}

	c.Rebase(10)
	if c.Pos() != 0 {
		t.Errorf("expected clamp to 0, got %v", c.Pos())
	}
}

func TestCursorCarryScalesOvershoot(t *testing.T) {
	c := NewCursor(3, 2, 1) // step 1.5
	for i := 0; i < 3; i++ {
		c.Advance()
	}

	// 0.5 source frames past the end is a third of an output frame
	c.Carry(4, 0.5)
	if math.Abs(c.Pos()-1.0/6) > 1e-9 {
		t.Errorf("expected pos 1/6, got %v", c.Pos())
	}
	if c.Step() != 0.5 {
		t.Errorf("expected step 0.5, got %v", c.Step())
	}

	c.Carry(10, 2)
	if c.Pos() != 0 || c.Step() != 2 {
		t.Errorf("expected clamp to 0 with step 2, got %v %v", c.Pos(), c.Step())
	}
}

func TestLerp(t *testing.T) {
	if got := Lerp(0, 1, 0.25); got != 0.25 {
		t.Errorf("expected 0.25, got %v", got)
	}
	if got := Lerp(-1, 1, 0.5); got != 0 {
		t.Errorf("expected 0, got %v", got)
	}
}

func TestResampleUpsampling(t *testing.T) {
	r := New(24000, 48000, 1)

	input := []int32{0, 100, 200, 300}
	output := make([]int32, 16)

	n := r.Resample(input, output)
	expected := []int32{0, 50, 100, 150, 200, 250}
	if n != len(expected) {
		t.Fatalf("expected %d samples, got %d", len(expected), n)
	}
	for i, v := range expected {
		if output[i] != v {
			t.Errorf("sample %d: expected %d, got %d", i, v, output[i])
		}
	}
}

func TestResampleStereoKeepsChannelsApart(t *testing.T) {
	r := New(44100, 48000, 2)

	input := make([]int32, 200)
	for i := 0; i < 100; i++ {
		input[i*2] = 1000
		input[i*2+1] = -1000
	}
	output := make([]int32, 240)

	n := r.Resample(input, output)
	if n == 0 || n%2 != 0 {
		t.Fatalf("unexpected sample count %d", n)
	}
	for i := 0; i < n; i += 2 {
		if output[i] != 1000 || output[i+1] != -1000 {
			t.Fatalf("frame %d mixed channels: %d %d", i/2, output[i], output[i+1])
		}
	}
}

func TestConvertLength(t *testing.T) {
	input := make([]int32, 44100*2)
	out := Convert(input, 2, 44100, 48000)

	frames := len(out) / 2
	if math.Abs(float64(frames-48000)) > 2 {
		t.Errorf("expected ~48000 frames, got %d", frames)
	}
}

func TestConvertSameRateCopies(t *testing.T) {
	input := []int32{1, 2, 3}
	out := Convert(input, 1, 8000, 8000)
	out[0] = 9
	if input[0] != 1 {
		t.Error("convert should not alias its input")
	}
}

func TestResetRestartsPosition(t *testing.T) {
	r := New(48000, 32000, 1)
	out := make([]int32, 8)
	r.Resample([]int32{0, 1, 2, 3, 4}, out)
	r.Reset()
	if r.cursor.Pos() != 0 {
		t.Errorf("expected position 0 after reset, got %v", r.cursor.Pos())
	}
}
