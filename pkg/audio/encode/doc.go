// ABOUTME: Audio encoder package for encoding PCM frames
// ABOUTME: Provides the Encoder interface and the PCM implementation
// Package encode provides audio encoders.
//
// Supports: PCM (unsigned 8-bit, signed 16-bit and 32-bit little-endian),
// the widths an MVX frame can carry.
//
// All encoders accept int32 samples in 24-bit range.
//
// Example:
//
//	encoder, err := encode.NewPCM(format)
//	data, err := encoder.Encode(samples)
package encode
