// ABOUTME: Audio fundamentals package providing core types and utilities
// ABOUTME: Defines Format and sample conversion functions
// Package audio provides fundamental PCM types and utilities.
//
// Decoders in this module produce interleaved int32 samples in 24-bit range.
// MVX frames carry little-endian PCM at 8 (unsigned), 16 or 32 (signed) bits
// per sample; DecodeSample turns one of those samples into a float32 for
// mixing into an output buffer.
//
// Example:
//
//	format := audio.Format{SampleRate: 48000, Channels: 2, BitDepth: 16}
//	if err := format.Validate(); err != nil {
//	    return err
//	}
//	s := audio.DecodeSample(pcm[0:2], format.BytesPerSample())
package audio
