// ABOUTME: Frame source backed by a websocket frame stream
// ABOUTME: Turns protocol frames from mvx-serve into MVX frames
package mvx

import (
	"context"
	"io"
	"sync"

	"github.com/google/uuid"

	"github.com/mvxplay/mvxplay-go/internal/version"
	"github.com/mvxplay/mvxplay-go/pkg/protocol"
)

// NetSource reads frames from a remote stream
type NetSource struct {
	client *protocol.Client
	info   SourceInfo

	mu     sync.Mutex
	seekTo int // frame to wait for after a seek, -1 if none
	ended  bool
}

// DialNetSource connects to a frame server at url (ws://host:port/mvx)
func DialNetSource(ctx context.Context, url, name string) (*NetSource, error) {
	client, err := protocol.Dial(ctx, protocol.Config{
		URL:      url,
		ClientID: uuid.New().String(),
		Name:     name,
		Version:  version.Version,
	})
	if err != nil {
		return nil, err
	}
	return newNetSource(client), nil
}

func newNetSource(client *protocol.Client) *NetSource {
	info := client.Info()
	return &NetSource{
		client: client,
		info: SourceInfo{
			Title:      info.Title,
			FrameCount: info.FrameCount,
			FPS:        info.FPS,
			HasAudio:   info.HasAudio,
		},
		seekTo: -1,
	}
}

// Info returns the remote stream description
func (s *NetSource) Info() SourceInfo { return s.info }

// Next waits for the next frame. Frames that were in flight when Seek was
// called are skipped.
func (s *NetSource) Next(ctx context.Context) (*FrameRef, error) {
	for {
		s.mu.Lock()
		ended := s.ended
		s.mu.Unlock()

		var (
			f  protocol.Frame
			ok bool
		)
		if ended {
			select {
			case f, ok = <-s.client.Frames:
			default:
				return nil, io.EOF
			}
		} else {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-s.client.End:
				s.mu.Lock()
				s.ended = true
				s.mu.Unlock()
				continue
			case f, ok = <-s.client.Frames:
			}
		}

		if !ok {
			if err := s.client.Err(); err != nil {
				return nil, err
			}
			return nil, io.EOF
		}

		if s.skip(int(f.Header.Number)) {
			continue
		}
		return NewFrameRef(&netFrame{header: f.Header, pcm: f.Payload}), nil
	}
}

// skip reports whether frame nr predates a pending seek
func (s *NetSource) skip(nr int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seekTo < 0 {
		return false
	}
	if nr != s.seekTo {
		return true
	}
	s.seekTo = -1
	return false
}

// Seek asks the server to continue from frame. Targets outside the remote
// stream are rejected here, since the server ignores them and Next would wait
// for a frame that never arrives.
func (s *NetSource) Seek(frame int) error {
	if err := s.info.CheckSeek(frame); err != nil {
		return err
	}
	s.mu.Lock()
	s.seekTo = frame
	s.ended = false
	s.mu.Unlock()
	return s.client.Seek(frame)
}

// Close disconnects from the server
func (s *NetSource) Close() error {
	return s.client.Close()
}

type netFrame struct {
	header protocol.FrameHeader
	pcm    []byte
}

func (f *netFrame) Number() int      { return int(f.header.Number) }
func (f *netFrame) PCMDataSize() int { return len(f.pcm) }
func (f *netFrame) SamplingInfo() (int, int, int) {
	return int(f.header.Channels), int(f.header.BitsPerSample), int(f.header.SampleRate)
}
func (f *netFrame) CopyPCM(dst []byte) int { return copy(dst, f.pcm) }
