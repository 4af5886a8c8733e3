// ABOUTME: Streaming fractional read cursor
// ABOUTME: Tracks a resampling position across consecutive PCM chunks
package resample

// Cursor is a fractional position into a source buffer that advances by a
// fixed step per output frame. A step of 1 is passthrough, above 1 reads the
// source faster than it is played (downsampling or speed-up).
type Cursor struct {
	pos  float64
	step float64
}

// NewCursor creates a cursor for converting srcRate to dstRate at the given speed
func NewCursor(srcRate, dstRate int, speed float64) Cursor {
	var c Cursor
	c.SetRates(srcRate, dstRate, speed)
	return c
}

// Step returns the source frames consumed per output frame
func Step(srcRate, dstRate int, speed float64) float64 {
	if srcRate <= 0 || dstRate <= 0 || speed <= 0 {
		return 0
	}
	return float64(srcRate) / float64(dstRate) * speed
}

// SetRates changes the step without moving the cursor
func (c *Cursor) SetRates(srcRate, dstRate int, speed float64) {
	c.step = Step(srcRate, dstRate, speed)
}

// Step returns the current step
func (c *Cursor) Step() float64 { return c.step }

// Pos returns the fractional source position
func (c *Cursor) Pos() float64 { return c.pos }

// Index returns the source frame the cursor is on
func (c *Cursor) Index() int { return int(c.pos) }

// Frac returns the interpolation weight towards the next source frame
func (c *Cursor) Frac() float32 { return float32(c.pos - float64(int(c.pos))) }

// Advance moves the cursor one output frame forward
func (c *Cursor) Advance() { c.pos += c.step }

// Rebase moves the origin forward by frames, carrying any overshoot into the
// next buffer. Positions before the new origin clamp to zero.
func (c *Cursor) Rebase(frames int) {
	c.pos -= float64(frames)
	if c.pos < 0 {
		c.pos = 0
	}
}

// Carry moves the origin forward by frames like Rebase and switches to step.
// The overshoot is measured in output time, so it lands on the same instant
// in a next buffer that has a different rate.
func (c *Cursor) Carry(frames int, step float64) {
	over := c.pos - float64(frames)
	if over < 0 || c.step <= 0 {
		over = 0
	}
	c.pos = over / c.step * step
	c.step = step
}

// Reset returns the cursor to the start of a buffer
func (c *Cursor) Reset() { c.pos = 0 }

// Lerp interpolates linearly between a and b
func Lerp(a, b, frac float32) float32 {
	return a + (b-a)*frac
}
