package sim

import "time"

// Ticker is a source of tick timestamps.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFunc makes a Ticker ticking every d.
type TickerFunc func(d time.Duration) Ticker

type timeTicker struct {
	t *time.Ticker
}

func NewTimeTicker(d time.Duration) Ticker {
	return timeTicker{t: time.NewTicker(d)}
}

func (t timeTicker) C() <-chan time.Time { return t.t.C }
func (t timeTicker) Stop()               { t.t.Stop() }
