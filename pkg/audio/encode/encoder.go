// ABOUTME: Encoder interface definition
// ABOUTME: Common interface for frame payload encoders
package encode

// Encoder turns 24-bit range int32 samples into a frame payload
type Encoder interface {
	Encode(samples []int32) ([]byte, error)
	Close() error
}

var _ Encoder = (*PCMEncoder)(nil)
