// ABOUTME: In-memory decoded audio clip
// ABOUTME: Loads files or URLs by extension and converts clips between sample rates
package decode

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/mvxplay/mvxplay-go/pkg/audio"
	"github.com/mvxplay/mvxplay-go/pkg/audio/resample"
)

// ErrUnsupportedFormat is returned for files whose container is not recognised
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// Clip is a fully decoded signal. Samples are interleaved and scaled to the
// 24-bit range regardless of the source bit depth.
type Clip struct {
	Title      string
	SampleRate int
	Channels   int
	Samples    []int32
}

// Frames returns the number of sample frames
func (c *Clip) Frames() int {
	if c.Channels <= 0 {
		return 0
	}
	return len(c.Samples) / c.Channels
}

// Duration returns the playback length
func (c *Clip) Duration() time.Duration {
	return audio.FramesDuration(c.Frames(), c.SampleRate)
}

// Resample returns a copy of the clip at rate
func (c *Clip) Resample(rate int) *Clip {
	return &Clip{
		Title:      c.Title,
		SampleRate: rate,
		Channels:   c.Channels,
		Samples:    resample.Convert(c.Samples, c.Channels, c.SampleRate, rate),
	}
}

// Open decodes a local file or an http(s) URL, picking the decoder by extension
func Open(pathOrURL string) (*Clip, error) {
	if strings.HasPrefix(pathOrURL, "http://") || strings.HasPrefix(pathOrURL, "https://") {
		return OpenURL(pathOrURL)
	}
	return OpenFile(pathOrURL)
}

// OpenFile decodes a .wav, .mp3 or .flac file
func OpenFile(filePath string) (*Clip, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio file: %w", err)
	}
	defer f.Close()

	clip, err := Decode(f, filepath.Ext(filePath))
	if err != nil {
		return nil, err
	}
	clip.Title = titleFrom(filepath.Base(filePath))

	log.Printf("Loaded %s: %d Hz, %d channels, %v", clip.Title, clip.SampleRate, clip.Channels, clip.Duration())
	return clip, nil
}

// OpenURL downloads and decodes a clip. URLs without a known extension are
// treated as MP3.
func OpenURL(rawURL string) (*Clip, error) {
	resp, err := http.Get(rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch audio: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %s", resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio: %w", err)
	}

	ext := ".mp3"
	name := "HTTP Stream"
	if u, err := url.Parse(rawURL); err == nil {
		if e := path.Ext(u.Path); e != "" {
			ext = e
		}
		if base := path.Base(u.Path); base != "/" && base != "." {
			name = titleFrom(base)
		}
	}

	clip, err := Decode(bytes.NewReader(data), ext)
	if err != nil {
		return nil, err
	}
	clip.Title = name

	log.Printf("Streamed %s: %d Hz, %d channels, %v", clip.Title, clip.SampleRate, clip.Channels, clip.Duration())
	return clip, nil
}

// Decode reads a whole clip of the container named by ext (".wav", ".mp3", ".flac")
func Decode(r io.ReadSeeker, ext string) (*Clip, error) {
	switch strings.ToLower(ext) {
	case ".wav", ".wave":
		return DecodeWAV(r)
	case ".mp3":
		return DecodeMP3(r)
	case ".flac":
		return DecodeFLAC(r)
	}
	return nil, fmt.Errorf("%w: %q (supported: .wav, .mp3, .flac)", ErrUnsupportedFormat, ext)
}

// scaleTo24 moves a sample of the given bit depth into the 24-bit range
func scaleTo24(sample int32, bitDepth int) int32 {
	switch {
	case bitDepth == 24:
		return sample
	case bitDepth < 24:
		return sample << (24 - bitDepth)
	default:
		return sample >> (bitDepth - 24)
	}
}

func titleFrom(filename string) string {
	return strings.TrimSuffix(filename, filepath.Ext(filename))
}
