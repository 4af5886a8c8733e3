// ABOUTME: MVX stream protocol message type definitions
// ABOUTME: Defines the JSON control messages exchanged over the websocket
package protocol

import (
	"encoding/json"
	"fmt"
)

// Message types
const (
	TypeClientHello = "client/hello"
	TypeStreamInfo  = "stream/info"
	TypeStreamSeek  = "stream/seek"
	TypeStreamEnd   = "stream/end"
)

// Message is the top-level wrapper for all protocol messages
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// rawMessage defers payload decoding until the type is known
type rawMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// ClientHello is sent by clients right after connecting
type ClientHello struct {
	ClientID string `json:"client_id"`
	Name     string `json:"name"`
	Version  string `json:"version"`
}

// StreamInfo describes the stream a server plays. A FrameCount of zero means
// the length is unknown.
type StreamInfo struct {
	SessionID  string  `json:"session_id"`
	Title      string  `json:"title"`
	FrameCount int     `json:"frame_count"`
	FPS        float64 `json:"fps"`
	HasAudio   bool    `json:"has_audio"`
	SampleRate int     `json:"sample_rate,omitempty"`
	Channels   int     `json:"channels,omitempty"`
	BitDepth   int     `json:"bit_depth,omitempty"`
}

// StreamSeek asks the server to continue from Frame
type StreamSeek struct {
	Frame int `json:"frame"`
}

// StreamEnd tells the client no more frames follow
type StreamEnd struct {
	Frames int `json:"frames"`
}

// decodePayload unmarshals a message's payload into v
func decodePayload(data []byte, want string, v interface{}) error {
	var msg rawMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("failed to parse message: %w", err)
	}
	if msg.Type != want {
		return fmt.Errorf("expected %s, got %s", want, msg.Type)
	}
	if err := json.Unmarshal(msg.Payload, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", want, err)
	}
	return nil
}

// ParseType returns the type of an encoded message
func ParseType(data []byte) (string, error) {
	var msg rawMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return "", fmt.Errorf("failed to parse message: %w", err)
	}
	return msg.Type, nil
}

// DecodeClientHello parses a client/hello message
func DecodeClientHello(data []byte) (ClientHello, error) {
	var v ClientHello
	err := decodePayload(data, TypeClientHello, &v)
	return v, err
}

// DecodeStreamInfo parses a stream/info message
func DecodeStreamInfo(data []byte) (StreamInfo, error) {
	var v StreamInfo
	err := decodePayload(data, TypeStreamInfo, &v)
	return v, err
}

// DecodeStreamSeek parses a stream/seek message
func DecodeStreamSeek(data []byte) (StreamSeek, error) {
	var v StreamSeek
	err := decodePayload(data, TypeStreamSeek, &v)
	return v, err
}

// DecodeStreamEnd parses a stream/end message
func DecodeStreamEnd(data []byte) (StreamEnd, error) {
	var v StreamEnd
	err := decodePayload(data, TypeStreamEnd, &v)
	return v, err
}
