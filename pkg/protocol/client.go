// ABOUTME: WebSocket client for MVX frame streams
// ABOUTME: Handles connection, handshake, and routing of frame and control messages
package protocol

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// HandshakeTimeout bounds the wait for stream/info after connecting
const HandshakeTimeout = 5 * time.Second

// ErrClosed is returned by Send methods after Close
var ErrClosed = errors.New("connection closed")

// Config holds client configuration
type Config struct {
	URL      string // ws://host:port/mvx
	ClientID string
	Name     string
	Version  string
}

// Frame is one received binary frame
type Frame struct {
	Header  FrameHeader
	Payload []byte
}

// Client represents a WebSocket client
type Client struct {
	config Config
	conn   *websocket.Conn
	info   StreamInfo

	writeMu sync.Mutex

	// Message channels
	Frames chan Frame
	End    chan StreamEnd

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// Dial connects to a frame server and performs the handshake
func Dial(ctx context.Context, config Config) (*Client, error) {
	log.Printf("Connecting to %s", config.URL)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, config.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial failed: %w", err)
	}

	cctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		config: config,
		conn:   conn,
		Frames: make(chan Frame, 64),
		End:    make(chan StreamEnd, 1),
		ctx:    cctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	if err := c.handshake(); err != nil {
		cancel()
		conn.Close()
		return nil, fmt.Errorf("handshake failed: %w", err)
	}

	go c.readMessages()
	return c, nil
}

// handshake sends client/hello and waits for stream/info
func (c *Client) handshake() error {
	hello := ClientHello{
		ClientID: c.config.ClientID,
		Name:     c.config.Name,
		Version:  c.config.Version,
	}
	if err := c.sendJSON(Message{Type: TypeClientHello, Payload: hello}); err != nil {
		return fmt.Errorf("failed to send client/hello: %w", err)
	}

	c.conn.SetReadDeadline(time.Now().Add(HandshakeTimeout))
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("failed to read stream/info: %w", err)
	}
	c.conn.SetReadDeadline(time.Time{})

	info, err := DecodeStreamInfo(data)
	if err != nil {
		return err
	}
	c.info = info

	log.Printf("Handshake complete: %q, %d frames at %.2f fps", info.Title, info.FrameCount, info.FPS)
	return nil
}

// Info returns the stream description received during the handshake
func (c *Client) Info() StreamInfo { return c.info }

// Seek asks the server to continue from frame
func (c *Client) Seek(frame int) error {
	return c.sendJSON(Message{Type: TypeStreamSeek, Payload: StreamSeek{Frame: frame}})
}

// Done is closed when the read loop exits
func (c *Client) Done() <-chan struct{} { return c.done }

// Err returns the error that ended the read loop, if any
func (c *Client) Err() error {
	select {
	case <-c.done:
		return c.err
	default:
		return nil
	}
}

func (c *Client) sendJSON(msg Message) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.ctx.Err() != nil {
		return ErrClosed
	}
	return c.conn.WriteJSON(msg)
}

// readMessages reads and routes incoming messages
func (c *Client) readMessages() {
	defer close(c.done)
	defer close(c.Frames)

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if c.ctx.Err() == nil {
				c.err = err
				log.Printf("Read error: %v", err)
			}
			return
		}

		switch messageType {
		case websocket.BinaryMessage:
			h, payload, err := DecodeFrame(data)
			if err != nil {
				log.Printf("Invalid frame message: %v", err)
				continue
			}
			select {
			case c.Frames <- Frame{Header: h, Payload: payload}:
			case <-c.ctx.Done():
				return
			}

		case websocket.TextMessage:
			c.handleJSONMessage(data)
		}
	}
}

func (c *Client) handleJSONMessage(data []byte) {
	typ, err := ParseType(data)
	if err != nil {
		log.Printf("Failed to parse JSON message: %v", err)
		return
	}

	switch typ {
	case TypeStreamEnd:
		end, err := DecodeStreamEnd(data)
		if err != nil {
			log.Printf("Bad stream/end: %v", err)
			return
		}
		select {
		case c.End <- end:
		default:
		}
	case TypeStreamInfo:
		// only meaningful during the handshake
	default:
		log.Printf("Unknown message type: %s", typ)
	}
}

// Close closes the connection and waits for the read loop
func (c *Client) Close() error {
	c.writeMu.Lock()
	if c.ctx.Err() != nil {
		c.writeMu.Unlock()
		<-c.done
		return nil
	}
	c.cancel()
	c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	err := c.conn.Close()
	c.writeMu.Unlock()

	<-c.done
	log.Printf("Connection closed")
	return err
}
