// ABOUTME: Per-client streaming session
// ABOUTME: Handshakes, paces frames at the source FPS and applies seek requests
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/mvxplay/mvxplay-go/pkg/mvx"
	"github.com/mvxplay/mvxplay-go/pkg/protocol"
)

// errClientGone ends a session when the client disconnects
var errClientGone = errors.New("client disconnected")

type session struct {
	id       string
	clientID string
	name     string
	conn     *websocket.Conn
	source   mvx.Source
	info     mvx.SourceInfo
	started  time.Time

	seeks     chan int
	closeOnce sync.Once

	sent  atomic.Int64
	frame atomic.Int64
}

// handleConnection manages a client connection
func (s *Server) handleConnection(ctx context.Context, conn *websocket.Conn) {
	defer conn.Close()
	span := trace.SpanFromContext(ctx)

	hello, err := readHello(conn)
	if err != nil {
		log.Printf("Handshake failed: %v", err)
		span.SetStatus(codes.Error, "handshake failed")
		return
	}
	log.Printf("Client hello: %s (ID: %s, version %s)", hello.Name, hello.ClientID, hello.Version)
	span.SetAttributes(
		attribute.String("mvx.client_id", hello.ClientID),
		attribute.String("mvx.client_name", hello.Name),
	)

	src, err := s.config.Open()
	if err != nil {
		log.Printf("Failed to open source for %s: %v", hello.Name, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "open source")
		return
	}
	defer src.Close()

	sess := &session{
		id:       uuid.New().String(),
		clientID: hello.ClientID,
		name:     hello.Name,
		conn:     conn,
		source:   src,
		info:     src.Info(),
		started:  time.Now(),
		seeks:    make(chan int, 1),
	}
	sess.frame.Store(-1)

	span.SetAttributes(attribute.String("mvx.session_id", sess.id))

	if !s.register(sess) {
		log.Printf("Client ID %s already connected, rejecting duplicate", hello.ClientID)
		span.SetStatus(codes.Error, "duplicate client id")
		msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "duplicate client id")
		conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeDeadline))
		return
	}
	defer s.unregister(sess)

	if err := sess.writeJSON(protocol.TypeStreamInfo, protocol.StreamInfo{
		SessionID:  sess.id,
		Title:      sess.info.Title,
		FrameCount: sess.info.FrameCount,
		FPS:        sess.info.FPS,
		HasAudio:   sess.info.HasAudio,
	}); err != nil {
		log.Printf("Error sending stream info: %v", err)
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(sess.readLoop)
	g.Go(func() error { return sess.writeLoop(gctx, s) })

	if err := g.Wait(); err != nil && !errors.Is(err, errClientGone) {
		log.Printf("Session %s ended: %v", sess.id, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "session failed")
	}
	span.SetAttributes(attribute.Int64("mvx.frames_sent", sess.sent.Load()))
	log.Printf("Client disconnected: %s (%d frames sent)", sess.name, sess.sent.Load())
}

// readHello waits for client/hello and validates it
func readHello(conn *websocket.Conn) (protocol.ClientHello, error) {
	conn.SetReadDeadline(time.Now().Add(HandshakeTimeout))
	defer conn.SetReadDeadline(time.Time{})

	_, data, err := conn.ReadMessage()
	if err != nil {
		return protocol.ClientHello{}, fmt.Errorf("error reading hello: %w", err)
	}
	hello, err := protocol.DecodeClientHello(data)
	if err != nil {
		return hello, err
	}
	if hello.ClientID == "" {
		return hello, errors.New("client hello missing client_id")
	}
	if hello.Name == "" {
		return hello, errors.New("client hello missing name")
	}
	return hello, nil
}

// readLoop handles control messages until the connection fails
func (sess *session) readLoop() error {
	for {
		_, data, err := sess.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			return errClientGone
		}

		msgType, err := protocol.ParseType(data)
		if err != nil {
			log.Printf("Error parsing message: %v", err)
			continue
		}
		switch msgType {
		case protocol.TypeStreamSeek:
			seek, err := protocol.DecodeStreamSeek(data)
			if err != nil {
				log.Printf("Invalid seek: %v", err)
				continue
			}
			sess.requestSeek(seek.Frame)
		default:
			log.Printf("Unknown message type: %s", msgType)
		}
	}
}

// requestSeek replaces any seek the writer has not picked up yet
func (sess *session) requestSeek(frame int) {
	for {
		select {
		case sess.seeks <- frame:
			return
		default:
		}
		select {
		case <-sess.seeks:
		default:
		}
	}
}

// pacer spaces frames at the source FPS, keeping lead ahead of real time
type pacer struct {
	interval time.Duration
	lead     time.Duration
	start    time.Time
	n        int
}

func (p *pacer) reset() {
	p.start = time.Now()
	p.n = 0
}

// until returns how long to wait before the next frame is due
func (p *pacer) until() time.Duration {
	return time.Until(p.start.Add(time.Duration(p.n)*p.interval - p.lead))
}

// writeLoop streams frames until ctx is cancelled or a write fails. It is
// the only writer on the connection after the handshake.
func (sess *session) writeLoop(ctx context.Context, s *Server) error {
	defer sess.close()

	fps := sess.info.FPS
	if fps <= 0 {
		fps = mvx.DefaultFPS
	}
	p := &pacer{interval: time.Duration(float64(time.Second) / fps), lead: s.config.Lead}
	p.reset()

	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	var (
		buf   []byte
		pcm   []byte
		ended bool
	)
	for {
		var due <-chan time.Time
		if !ended {
			d := p.until()
			if d <= 0 {
				d = 0
			}
			timer.Reset(d)
			due = timer.C
		}

		select {
		case <-ctx.Done():
			return nil
		case frame := <-sess.seeks:
			if err := sess.source.Seek(frame); err != nil {
				log.Printf("Session %s: seek to %d failed: %v", sess.id, frame, err)
				continue
			}
			log.Printf("Session %s: seeked to frame %d", sess.id, frame)
			trace.SpanFromContext(ctx).AddEvent("seek", trace.WithAttributes(attribute.Int("frame", frame)))
			s.metrics.Seeks.Add(ctx, 1)
			p.reset()
			ended = false
			continue
		case <-due:
		}

		ref, err := sess.source.Next(ctx)
		switch {
		case err == nil:
		case errors.Is(err, io.EOF):
			ended = true
			if err := sess.writeJSON(protocol.TypeStreamEnd, protocol.StreamEnd{Frames: int(sess.sent.Load())}); err != nil {
				return err
			}
			continue
		case ctx.Err() != nil:
			return nil
		default:
			return fmt.Errorf("failed to read frame: %w", err)
		}

		buf, pcm = encodeFrame(buf[:0], pcm, ref)
		nr := ref.Number()
		ref.Dispose()

		sess.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
		if err := sess.conn.WriteMessage(websocket.BinaryMessage, buf); err != nil {
			return fmt.Errorf("error writing frame: %w", err)
		}
		p.n++
		sess.sent.Add(1)
		sess.frame.Store(int64(nr))
		s.metrics.RecordFramesSent(ctx, sess.id, 1)
	}
}

// encodeFrame appends the binary message for ref to dst, using pcm as
// scratch space. Both buffers are returned for reuse.
func encodeFrame(dst, pcm []byte, ref *mvx.FrameRef) ([]byte, []byte) {
	f := ref.Frame()
	size := f.PCMDataSize()
	if cap(pcm) < size {
		pcm = make([]byte, size)
	}
	pcm = pcm[:size]
	n := f.CopyPCM(pcm)

	channels, bits, rate := f.SamplingInfo()
	h := protocol.FrameHeader{
		Number:        uint32(f.Number()),
		Channels:      uint16(channels),
		BitsPerSample: uint16(bits),
		SampleRate:    uint32(rate),
	}
	return protocol.AppendFrame(dst, h, pcm[:n]), pcm
}

func (sess *session) writeJSON(msgType string, payload interface{}) error {
	data, err := json.Marshal(protocol.Message{Type: msgType, Payload: payload})
	if err != nil {
		return fmt.Errorf("error marshaling %s: %w", msgType, err)
	}
	sess.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
	if err := sess.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("error writing %s: %w", msgType, err)
	}
	return nil
}

// close unblocks the read loop
func (sess *session) close() {
	sess.closeOnce.Do(func() {
		sess.conn.Close()
	})
}

func (sess *session) snapshot() SessionInfo {
	return SessionInfo{
		ID:        sess.id,
		ClientID:  sess.clientID,
		Name:      sess.name,
		Frame:     int(sess.frame.Load()),
		Sent:      sess.sent.Load(),
		Connected: time.Since(sess.started),
	}
}
