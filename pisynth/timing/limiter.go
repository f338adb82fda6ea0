package timing

import "time"

// Limiter paces buffer playback against the wall clock.
type Limiter interface {
	// WaitForNextBuffer blocks until the next buffer is due.
	// Returns immediately if playback is behind schedule.
	WaitForNextBuffer()

	// Reset resets the timing state, useful after pauses.
	Reset()
}

// NewNoOpLimiter returns a limiter that doesn't limit (for headless rendering).
func NewNoOpLimiter() Limiter {
	return &noOpLimiter{}
}

type noOpLimiter struct{}

func (n *noOpLimiter) WaitForNextBuffer() {}
func (n *noOpLimiter) Reset()             {}

// BufferDuration is how long samples stereo pairs take to play at rate Hz.
func BufferDuration(samples, rate int) time.Duration {
	return time.Duration(samples) * time.Second / time.Duration(rate)
}
