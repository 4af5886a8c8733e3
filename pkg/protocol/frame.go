// ABOUTME: Binary frame message encoding
// ABOUTME: Packs an MVX frame's audio layer into a fixed header plus PCM payload
package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// FrameHeaderSize is the size of the binary frame header:
// frame number u32, channels u16, bits per sample u16, sample rate u32,
// payload length u32, all little-endian
const FrameHeaderSize = 16

var (
	// ErrShortFrame is returned for binary messages smaller than a header
	ErrShortFrame = errors.New("frame message too short")
	// ErrPayloadLength is returned when the header length disagrees with the message
	ErrPayloadLength = errors.New("frame payload length mismatch")
)

// FrameHeader describes the PCM payload that follows it
type FrameHeader struct {
	Number        uint32
	Channels      uint16
	BitsPerSample uint16
	SampleRate    uint32
	PayloadLen    uint32
}

// AppendFrame appends the encoded header and payload to dst
func AppendFrame(dst []byte, h FrameHeader, payload []byte) []byte {
	h.PayloadLen = uint32(len(payload))
	var hdr [FrameHeaderSize]byte
	binary.LittleEndian.PutUint32(hdr[0:], h.Number)
	binary.LittleEndian.PutUint16(hdr[4:], h.Channels)
	binary.LittleEndian.PutUint16(hdr[6:], h.BitsPerSample)
	binary.LittleEndian.PutUint32(hdr[8:], h.SampleRate)
	binary.LittleEndian.PutUint32(hdr[12:], h.PayloadLen)
	dst = append(dst, hdr[:]...)
	return append(dst, payload...)
}

// DecodeFrame splits a binary message into header and payload. The payload
// aliases data.
func DecodeFrame(data []byte) (FrameHeader, []byte, error) {
	if len(data) < FrameHeaderSize {
		return FrameHeader{}, nil, fmt.Errorf("%w: %d bytes", ErrShortFrame, len(data))
	}
	h := FrameHeader{
		Number:        binary.LittleEndian.Uint32(data[0:]),
		Channels:      binary.LittleEndian.Uint16(data[4:]),
		BitsPerSample: binary.LittleEndian.Uint16(data[6:]),
		SampleRate:    binary.LittleEndian.Uint32(data[8:]),
		PayloadLen:    binary.LittleEndian.Uint32(data[12:]),
	}
	payload := data[FrameHeaderSize:]
	if int(h.PayloadLen) != len(payload) {
		return h, nil, fmt.Errorf("%w: header says %d, got %d", ErrPayloadLength, h.PayloadLen, len(payload))
	}
	return h, payload, nil
}
