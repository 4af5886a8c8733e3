// ABOUTME: Audio resampling package using linear interpolation
// ABOUTME: Provides a streaming cursor and a block resampler
// Package resample provides audio sample rate conversion.
//
// Cursor is the building block used on the real-time render path: it holds
// a fractional position that advances by srcRate/dstRate*speed per output
// frame and can be rebased onto the next buffer without losing the fraction.
//
// Resampler and Convert apply the same interpolation to whole int32 signals,
// for preparing decoded clips ahead of playback.
//
// Example:
//
//	out := resample.Convert(samples, 2, 44100, 48000)
package resample
