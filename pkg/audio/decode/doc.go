// ABOUTME: Audio clip decoding package
// ABOUTME: Decodes WAV, MP3 and FLAC files into in-memory clips
// Package decode loads whole audio files into memory.
//
// Supports: WAV (go-audio/wav), MP3 (go-mp3), FLAC (mewkiz/flac), plus a
// generated sine tone.
//
// Clips hold interleaved int32 samples in 24-bit range so every source bit
// depth can be re-encoded to any supported PCM width.
//
// Example:
//
//	clip, err := decode.Open("intro.flac")
//	if err != nil {
//	    return err
//	}
//	clip = clip.Resample(48000)
package decode
