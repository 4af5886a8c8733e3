// ABOUTME: Tests for player application orchestration
// ABOUTME: Tests source resolution and headless playback lifecycle
package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mvxplay/mvxplay-go/pkg/audio/decode"
	"github.com/mvxplay/mvxplay-go/pkg/mvx"
	"github.com/mvxplay/mvxplay-go/pkg/stream"
)

func TestOpenSource(t *testing.T) {
	dir := t.TempDir()
	wavPath := filepath.Join(dir, "clip.wav")
	f, err := os.Create(wavPath)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := decode.WriteWAV(f, decode.Tone(440, 44100, 1, 100*time.Millisecond), 16); err != nil {
		t.Fatalf("WriteWAV: %v", err)
	}
	f.Close()

	tests := []struct {
		name      string
		source    string
		wantKind  string
		wantCount int
		wantErr   bool
	}{
		{"default tone", "", "tone", 30, false},
		{"tone", "tone", "tone", 30, false},
		{"wav file", wavPath, "file", 3, false},
		{"missing file", filepath.Join(dir, "missing.wav"), "file", 0, true},
		{"unsupported file", filepath.Join(dir, "clip.txt"), "file", 0, true},
		{"unreachable stream", "ws://127.0.0.1:1/mvx", "net", 0, true},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			src, kind, err := OpenSource(ctx, SourceOptions{
				Source:       tc.source,
				Mode:         mvx.ModeOnce,
				ToneDuration: time.Second,
			})
			if kind != tc.wantKind {
				t.Errorf("kind = %q, want %q", kind, tc.wantKind)
			}
			if tc.wantErr {
				if err == nil {
					src.Close()
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("OpenSource: %v", err)
			}
			defer src.Close()
			if got := src.Info().FrameCount; got != tc.wantCount {
				t.Errorf("frame count = %d, want %d", got, tc.wantCount)
			}
		})
	}
}

func TestNewPlayerRejectsUnknownOutput(t *testing.T) {
	if _, err := New(Config{Output: "speakers"}); err == nil {
		t.Fatal("expected error for unknown output")
	}
}

func TestNewPlayerAppliesControls(t *testing.T) {
	p, err := New(Config{Output: "null", Volume: 0.5, Muted: true, Speed: 2})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s := p.Stream()
	if s.Volume() != 0.5 || !s.Muted() || s.Speed() != 2 {
		t.Errorf("controls = %v %v %v, want 0.5 true 2", s.Volume(), s.Muted(), s.Speed())
	}
}

func TestPlayerPlaysOnceSourceToEnd(t *testing.T) {
	p, err := New(Config{
		Source: SourceOptions{
			Source:       "tone",
			Mode:         mvx.ModeOnce,
			FPS:          30,
			ToneDuration: 300 * time.Millisecond,
		},
		Output: "null",
		Volume: 1,
		Stream: stream.Config{MinBufferedAudio: 100 * time.Millisecond},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := p.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if ctx.Err() != nil {
		t.Fatal("Run returned only after the deadline")
	}

	st := p.Stream().Stats()
	if st.Open {
		t.Error("stream still open after Run")
	}
	if st.FramesPlayed != 9 {
		t.Errorf("frames played = %d, want 9", st.FramesPlayed)
	}
	if st.Pool.Lent != 0 {
		t.Errorf("pool lent = %d after Run, want 0", st.Pool.Lent)
	}
}

func TestPlayerStopsOnCancel(t *testing.T) {
	p, err := New(Config{
		Source: SourceOptions{Source: "tone", Mode: mvx.ModeLoop},
		Output: "null",
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
