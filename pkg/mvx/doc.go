// ABOUTME: MVX frame and source package
// ABOUTME: Frame references, audio layer extraction and frame sources
// Package mvx models the frames a volumetric video stream delivers and the
// sources that produce them.
//
// Frames are shared through FrameRef: each holder clones its own reference
// and disposes it when done, and the frame is released with the last one.
// ExtractAudio copies a frame's audio layer into a pooled chunk.
//
// Two sources are provided: ClipSource slices a decoded audio clip into
// frames at a fixed rate, and NetSource receives frames from mvx-serve.
package mvx
