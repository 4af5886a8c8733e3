// ABOUTME: PCM chunk pooling package
// ABOUTME: Provides Chunk and the shared Pool that owns all chunk memory
// Package chunk provides reusable PCM buffers for the playback path.
//
// Every Chunk belongs to a Pool slot for the life of the pool. Producers
// borrow chunks with Allocate or Lend and give them back with Return or
// Release; the pool never shrinks a buffer, so a steady stream of frames
// settles into zero allocations.
//
// Chunks are identified by Handle (slot index plus lend generation) rather
// than by content, which lets code that runs after a chunk has been recycled
// detect that its handle is stale.
//
// Example:
//
//	c, err := chunk.Default().Allocate(pcm, 2, 1, 16000)
//	if err != nil {
//	    return err
//	}
//	defer chunk.Default().Return(c)
package chunk
