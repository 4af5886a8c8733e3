// ABOUTME: MVX frame stream wire protocol package
// ABOUTME: Defines control messages, the binary frame layout and a WebSocket client
// Package protocol implements the websocket protocol used to stream MVX
// frames between mvx-serve and players.
//
// After connecting, the client sends client/hello and the server answers
// with stream/info. Frames then arrive as binary messages, each a
// FrameHeader followed by raw PCM. Clients may send stream/seek at any time;
// servers send stream/end when a non-looping stream runs out.
//
// Example:
//
//	c, err := protocol.Dial(ctx, protocol.Config{URL: "ws://localhost:8928/mvx"})
//	for f := range c.Frames {
//	    handle(f.Header, f.Payload)
//	}
package protocol
