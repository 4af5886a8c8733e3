// ABOUTME: Audio output package for playing audio
// ABOUTME: Provides pull-based Output backends over oto, malgo and a headless ticker
// Package output drives audio devices that pull samples on their own thread.
//
// Backends call a RenderFunc whenever the device wants more audio, handing
// it an interleaved float buffer. The render function must not block.
//
// Available backends: oto (default), malgo (miniaudio) and null (headless,
// for servers and tests).
//
// Example:
//
//	out, err := output.New("oto")
//	err = out.Open(48000, 2, stream.Render)
//	defer out.Close()
package output
