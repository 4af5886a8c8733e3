// ABOUTME: WAV clip decoder and encoder
// ABOUTME: Reads and writes RIFF/WAVE PCM via go-audio
package decode

import (
	"errors"
	"fmt"
	"io"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// ErrInvalidWAV is returned when the input is not a RIFF/WAVE PCM file
var ErrInvalidWAV = errors.New("invalid wav file")

// DecodeWAV decodes a complete PCM WAV file
func DecodeWAV(r io.ReadSeeker) (*Clip, error) {
	decoder := wav.NewDecoder(r)
	if !decoder.IsValidFile() {
		return nil, ErrInvalidWAV
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("wav decode error: %w", err)
	}

	bitDepth := int(decoder.BitDepth)
	samples := make([]int32, len(buf.Data))
	for i, v := range buf.Data {
		if bitDepth == 8 {
			// 8-bit WAV is unsigned
			v -= 128
		}
		samples[i] = scaleTo24(int32(v), bitDepth)
	}

	return &Clip{
		SampleRate: int(decoder.SampleRate),
		Channels:   int(decoder.NumChans),
		Samples:    samples,
	}, nil
}

// WriteWAV encodes the clip as PCM WAV at bitDepth (16, 24 or 32)
func WriteWAV(w io.WriteSeeker, c *Clip, bitDepth int) error {
	if bitDepth != 16 && bitDepth != 24 && bitDepth != 32 {
		return fmt.Errorf("unsupported wav bit depth: %d", bitDepth)
	}

	enc := wav.NewEncoder(w, c.SampleRate, bitDepth, c.Channels, 1)
	data := make([]int, len(c.Samples))
	for i, s := range c.Samples {
		switch bitDepth {
		case 16:
			data[i] = int(s >> 8)
		case 24:
			data[i] = int(s)
		case 32:
			data[i] = int(s) << 8
		}
	}

	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: c.Channels, SampleRate: c.SampleRate},
		Data:           data,
		SourceBitDepth: bitDepth,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("wav encode error: %w", err)
	}
	return enc.Close()
}
