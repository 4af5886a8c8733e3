// ABOUTME: Audio-driven MVX playback package
// ABOUTME: Streams, processors and the correlator that ties chunks back to frames
// Package stream plays MVX frame sources with audio as the master clock.
//
// A Stream reads frames ahead of the output on its own goroutine, queues
// each frame's audio in a player.Player and pairs the chunk with its frame in
// a Correlator. When the device callback (Render) starts a chunk, the paired
// frame becomes the stream's last frame and is handed to OnNextFrame, so
// anything synchronised to the stream follows what is actually audible.
//
// Player events are recorded on the audio thread and applied by a dispatcher
// goroutine, so Render never waits for the producer.
//
// An AudioProcessor is the passive counterpart: it plays the audio of frames
// pushed to it by someone else, keeping only the newest frame.
//
// Example:
//
//	s, _ := stream.New(stream.Config{
//	    OnNextFrame: func(f *mvx.FrameRef) {
//	        defer f.Dispose()
//	        draw(f.Frame())
//	    },
//	})
//	_ = s.Open(ctx, src)
//	defer s.Close()
//	out.Open(48000, 2, s.Render)
package stream
