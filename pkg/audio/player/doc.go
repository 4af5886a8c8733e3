// ABOUTME: Real-time PCM chunk player package
// ABOUTME: Bounded FIFO of pooled chunks rendered from an audio callback
// Package player renders queued PCM chunks for an audio device callback.
//
// A Player holds at most Capacity chunks. Enqueue never blocks: when the
// queue is full the oldest chunks are discarded first. Dequeue is meant to be
// called from the device callback; it converts channel layout, resamples by
// linear interpolation and applies volume, and pads with silence when the
// queue runs dry.
//
// Chunks leave the queue through the OnDiscarded callback with a reason
// (overflow, consumed or reset); whoever receives them is responsible for
// returning them to their pool.
//
// Example:
//
//	p, _ := player.New(player.Config{
//	    Capacity:    player.AsyncCapacity,
//	    OnDiscarded: func(c *chunk.Chunk, _ player.DiscardReason) { pool.Return(c) },
//	})
//	p.Enqueue(c)
//	p.Dequeue(buf, 2, 48000)
package player
