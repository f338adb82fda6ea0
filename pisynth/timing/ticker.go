package timing

import "time"

// TickerLimiter uses time.Ticker for simple, consistent buffer timing.
// Less accurate than AdaptiveLimiter but simpler and good enough for most cases.
type TickerLimiter struct {
	period time.Duration
	ticker *time.Ticker
}

func NewTickerLimiter(period time.Duration) *TickerLimiter {
	return &TickerLimiter{period: period, ticker: time.NewTicker(period)}
}

func (t *TickerLimiter) WaitForNextBuffer() {
	<-t.ticker.C
}

func (t *TickerLimiter) Reset() {
	t.ticker.Reset(t.period)
}

func (t *TickerLimiter) Stop() {
	t.ticker.Stop()
}
