// ABOUTME: Tests for frames, audio extraction and frame sources
// ABOUTME: Tests reference counting, PCM extraction and clip/network sources
package mvx

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mvxplay/mvxplay-go/pkg/audio"
	"github.com/mvxplay/mvxplay-go/pkg/audio/chunk"
	"github.com/mvxplay/mvxplay-go/pkg/audio/decode"
	"github.com/mvxplay/mvxplay-go/pkg/protocol"
)

type fakeFrame struct {
	nr       int
	pcm      []byte
	channels int
	bits     int
	rate     int
	released atomic.Int32
}

func (f *fakeFrame) Number() int                   { return f.nr }
func (f *fakeFrame) PCMDataSize() int              { return len(f.pcm) }
func (f *fakeFrame) SamplingInfo() (int, int, int) { return f.channels, f.bits, f.rate }
func (f *fakeFrame) CopyPCM(dst []byte) int        { return copy(dst, f.pcm) }
func (f *fakeFrame) Release()                      { f.released.Add(1) }

func TestFrameRefCounting(t *testing.T) {
	f := &fakeFrame{nr: 3}
	a := NewFrameRef(f)
	b := a.Clone()

	if b.Number() != 3 {
		t.Errorf("expected clone to see frame 3, got %d", b.Number())
	}

	a.Dispose()
	a.Dispose()
	if f.released.Load() != 0 {
		t.Fatal("frame released while a clone is alive")
	}
	if a.Frame() != nil || a.Number() != -1 || !a.Disposed() {
		t.Error("disposed reference should not expose the frame")
	}
	if a.Clone() != nil {
		t.Error("cloning a disposed reference should return nil")
	}

	b.Dispose()
	if f.released.Load() != 1 {
		t.Errorf("expected one release, got %d", f.released.Load())
	}

	var nilRef *FrameRef
	nilRef.Dispose()
	if nilRef.Frame() != nil {
		t.Error("nil ref should have no frame")
	}
}

func TestExtractAudio(t *testing.T) {
	pool := chunk.NewPool()

	t.Run("copies pcm", func(t *testing.T) {
		ref := NewFrameRef(&fakeFrame{pcm: []byte{1, 2, 3, 4}, channels: 2, bits: 16, rate: 48000})
		defer ref.Dispose()

		c, err := ExtractAudio(ref, pool)
		if err != nil {
			t.Fatal(err)
		}
		if c.Len() != 4 || c.Bytes()[3] != 4 || c.SampleRate() != 48000 {
			t.Errorf("unexpected chunk %v %v", c.Bytes(), c.Format())
		}
		pool.Return(c)
	})

	t.Run("no audio", func(t *testing.T) {
		ref := NewFrameRef(&fakeFrame{channels: 2, bits: 16, rate: 48000})
		defer ref.Dispose()

		before := pool.Stats()
		c, err := ExtractAudio(ref, pool)
		if c != nil || err != nil {
			t.Errorf("expected nil, nil; got %v, %v", c, err)
		}
		if pool.Stats().Lent != before.Lent {
			t.Error("no chunk should be lent for an empty audio layer")
		}
	})

	t.Run("unsupported bits", func(t *testing.T) {
		ref := NewFrameRef(&fakeFrame{pcm: make([]byte, 6), channels: 1, bits: 24, rate: 48000})
		defer ref.Dispose()

		if _, err := ExtractAudio(ref, pool); !errors.Is(err, ErrUnsupportedBitsPerSample) {
			t.Errorf("expected ErrUnsupportedBitsPerSample, got %v", err)
		}
	})

	t.Run("disposed ref", func(t *testing.T) {
		ref := NewFrameRef(&fakeFrame{pcm: make([]byte, 2), channels: 1, bits: 16, rate: 8000})
		ref.Dispose()
		if _, err := ExtractAudio(ref, pool); err == nil {
			t.Error("expected error for disposed reference")
		}
	})

	if pool.Stats().Lent != 0 {
		t.Errorf("leaked %d chunks", pool.Stats().Lent)
	}
}

func TestParsePlaybackMode(t *testing.T) {
	tests := []struct {
		in      string
		want    PlaybackMode
		wantErr bool
	}{
		{"once", ModeOnce, false},
		{"LOOP", ModeLoop, false},
		{"realtime", ModeRealtime, false},
		{"backwards", ModeOnce, true},
	}
	for _, tt := range tests {
		got, err := ParsePlaybackMode(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParsePlaybackMode(%q) = %v, %v", tt.in, got, err)
		}
	}
	if ModeRealtime.String() != "realtime" || !ModeRealtime.Loops() || ModeOnce.Loops() {
		t.Error("unexpected mode properties")
	}
}

func testClip(seconds float64) *decode.Clip {
	return decode.Tone(440, 8000, 2, time.Duration(seconds*float64(time.Second)))
}

func TestClipSourceFrames(t *testing.T) {
	src, err := NewClipSource(testClip(1), ClipOptions{FPS: 25, BitDepth: 8})
	if err != nil {
		t.Fatal(err)
	}
	info := src.Info()
	if info.FrameCount != 25 || info.FPS != 25 || !info.HasAudio {
		t.Fatalf("unexpected info %+v", info)
	}

	ctx := context.Background()
	total := 0
	for i := 0; i < 25; i++ {
		ref, err := src.Next(ctx)
		if err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		f := ref.Frame()
		if f.Number() != i {
			t.Errorf("expected frame %d, got %d", i, f.Number())
		}
		ch, bits, rate := f.SamplingInfo()
		if ch != 2 || bits != 8 || rate != 8000 {
			t.Errorf("unexpected sampling info %d %d %d", ch, bits, rate)
		}
		if f.PCMDataSize() != 320*2 {
			t.Errorf("expected 640 bytes, got %d", f.PCMDataSize())
		}
		total += f.PCMDataSize()
		ref.Dispose()
	}
	if total != 8000*2 {
		t.Errorf("frames should cover the clip exactly, got %d bytes", total)
	}

	if _, err := src.Next(ctx); !errors.Is(err, io.EOF) {
		t.Errorf("expected io.EOF after last frame, got %v", err)
	}
}

func TestClipSourceLoopAndSeek(t *testing.T) {
	src, err := NewClipSource(testClip(0.1), ClipOptions{FPS: 50, Mode: ModeLoop})
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	var got []int
	for i := 0; i < 7; i++ {
		ref, err := src.Next(ctx)
		if err != nil {
			t.Fatal(err)
		}
		got = append(got, ref.Number())
		ref.Dispose()
	}
	want := []int{0, 1, 2, 3, 4, 0, 1}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}

	if err := src.Seek(3); err != nil {
		t.Fatal(err)
	}
	ref, _ := src.Next(ctx)
	if ref.Number() != 3 {
		t.Errorf("expected frame 3 after seek, got %d", ref.Number())
	}
	ref.Dispose()

	if err := src.Seek(5); !errors.Is(err, ErrSeekOutOfRange) {
		t.Errorf("expected out of range seek to fail, got %v", err)
	}
}

func TestCheckSeek(t *testing.T) {
	tests := []struct {
		name  string
		count int
		frame int
		ok    bool
	}{
		{"first", 10, 0, true},
		{"last", 10, 9, true},
		{"past end", 10, 10, false},
		{"negative", 10, -1, false},
		{"unknown length", 0, 500, true},
		{"unknown length negative", 0, -1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := SourceInfo{FrameCount: tt.count}.CheckSeek(tt.frame)
			if tt.ok && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tt.ok && !errors.Is(err, ErrSeekOutOfRange) {
				t.Errorf("expected ErrSeekOutOfRange, got %v", err)
			}
		})
	}
}

func TestClipSourceRealtimePacing(t *testing.T) {
	src, err := NewClipSource(testClip(1), ClipOptions{FPS: 100, Mode: ModeRealtime})
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 6; i++ {
		ref, err := src.Next(ctx)
		if err != nil {
			t.Fatal(err)
		}
		ref.Dispose()
	}
	if elapsed := time.Since(start); elapsed < 45*time.Millisecond {
		t.Errorf("expected ~50ms of pacing, got %v", elapsed)
	}

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := src.Next(cctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestClipSourceRecyclesBuffers(t *testing.T) {
	src, err := NewClipSource(testClip(0.2), ClipOptions{FPS: 10, BitDepth: 32})
	if err != nil {
		t.Fatal(err)
	}
	ref, _ := src.Next(context.Background())
	f := ref.Frame().(*clipFrame)
	ref.Dispose()
	if f.pcm != nil {
		t.Error("released frame should give up its buffer")
	}
}

func TestNewClipSourceRejects(t *testing.T) {
	if _, err := NewClipSource(testClip(0.1), ClipOptions{BitDepth: 24}); !errors.Is(err, audio.ErrUnsupportedBitDepth) {
		t.Errorf("expected ErrUnsupportedBitDepth, got %v", err)
	}
	if _, err := NewClipSource(testClip(0.1), ClipOptions{FPS: -1}); err == nil {
		t.Error("expected error for negative fps")
	}
}

func TestNetSource(t *testing.T) {
	seeks := make(chan int, 1)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		conn.ReadMessage() // client/hello
		conn.WriteJSON(protocol.Message{Type: protocol.TypeStreamInfo, Payload: protocol.StreamInfo{
			Title: "remote", FrameCount: 10, FPS: 30, HasAudio: true,
		}})
		send := func(nr int) {
			conn.WriteMessage(websocket.BinaryMessage, protocol.AppendFrame(nil,
				protocol.FrameHeader{Number: uint32(nr), Channels: 1, BitsPerSample: 16, SampleRate: 8000},
				[]byte{0, 0, 0, 0}))
		}
		send(0)
		send(1)

		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		seek, err := protocol.DecodeStreamSeek(data)
		if err != nil {
			return
		}
		seeks <- seek.Frame
		send(2) // in flight before the seek took effect
		send(seek.Frame)
		conn.WriteJSON(protocol.Message{Type: protocol.TypeStreamEnd, Payload: protocol.StreamEnd{Frames: 10}})
		conn.ReadMessage()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	src, err := DialNetSource(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), "test")
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer src.Close()

	if info := src.Info(); info.Title != "remote" || info.FrameCount != 10 {
		t.Errorf("unexpected info %+v", info)
	}

	for want := 0; want < 2; want++ {
		ref, err := src.Next(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if ref.Number() != want {
			t.Errorf("expected frame %d, got %d", want, ref.Number())
		}
		if ch, bits, rate := ref.Frame().SamplingInfo(); ch != 1 || bits != 16 || rate != 8000 {
			t.Errorf("unexpected sampling info %d %d %d", ch, bits, rate)
		}
		ref.Dispose()
	}

	// the server ignores seeks past the end, so they never leave the client
	for _, frame := range []int{-1, 10, 100} {
		if err := src.Seek(frame); !errors.Is(err, ErrSeekOutOfRange) {
			t.Errorf("Seek(%d) = %v, want ErrSeekOutOfRange", frame, err)
		}
	}

	if err := src.Seek(7); err != nil {
		t.Fatal(err)
	}
	ref, err := src.Next(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if ref.Number() != 7 {
		t.Errorf("expected frames before the seek target to be skipped, got %d", ref.Number())
	}
	ref.Dispose()

	if _, err := src.Next(ctx); !errors.Is(err, io.EOF) {
		t.Errorf("expected io.EOF after stream/end, got %v", err)
	}
}
