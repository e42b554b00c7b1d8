package mdns

import (
	"time"

	"github.com/benbjohnson/clock"
)

// interval delivers evenly spaced ticks, the first one a full period after
// it was created. Ticks are dropped, never queued, if the reader falls
// behind.
type interval struct {
	ticker *clock.Ticker
}

func newInterval(clk clock.Clock, every time.Duration) *interval {
	return &interval{ticker: clk.Ticker(every)}
}

// C returns the tick channel.
func (i *interval) C() <-chan time.Time {
	return i.ticker.C
}

func (i *interval) Stop() {
	i.ticker.Stop()
}
