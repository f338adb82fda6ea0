package timing

import (
	"log/slog"
	"time"
)

// AdaptiveLimiter sleeps until each buffer is due with drift compensation.
// Buffers are well under a millisecond, so it schedules them in batches: it
// only sleeps once a batch's worth of time has been handed out.
type AdaptiveLimiter struct {
	period  time.Duration
	batch   int
	next    time.Time
	pending int
	count   int64
}

// NewAdaptiveLimiter paces buffers of period, sleeping at most every batch
// buffers.
func NewAdaptiveLimiter(period time.Duration, batch int) *AdaptiveLimiter {
	if batch < 1 {
		batch = 1
	}
	return &AdaptiveLimiter{period: period, batch: batch, next: time.Now()}
}

func (a *AdaptiveLimiter) WaitForNextBuffer() {
	a.next = a.next.Add(a.period)
	a.count++
	a.pending++
	if a.pending < a.batch {
		return
	}
	a.pending = 0

	now := time.Now()
	sleep := a.next.Sub(now)
	if sleep > 0 {
		time.Sleep(sleep)
		return
	}

	if sleep < -50*time.Millisecond {
		slog.Debug("Playback fell behind, resynchronizing", "behind_ms", (-sleep).Milliseconds(), "buffers", a.count)
		a.next = now
	}
}

func (a *AdaptiveLimiter) Reset() {
	a.next = time.Now()
	a.pending = 0
	a.count = 0
}
