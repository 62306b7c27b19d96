package batch

import (
	"sync"
	"time"
)

// Ticker delivers cadence ticks
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFunc creates a ticker firing every d
type TickerFunc func(d time.Duration) Ticker

type realTicker struct {
	t *time.Ticker
}

// NewTicker wraps time.Ticker
func NewTicker(d time.Duration) Ticker {
	return &realTicker{t: time.NewTicker(d)}
}

func (r *realTicker) C() <-chan time.Time { return r.t.C }
func (r *realTicker) Stop()               { r.t.Stop() }

// ManualTicker fires only when Tick is called
type ManualTicker struct {
	c       chan time.Time
	stopped chan struct{}
	once    sync.Once
}

// NewManualTicker creates a ticker driven by Tick
func NewManualTicker() *ManualTicker {
	return &ManualTicker{
		c:       make(chan time.Time),
		stopped: make(chan struct{}),
	}
}

func (m *ManualTicker) C() <-chan time.Time { return m.c }

// Stop is idempotent
func (m *ManualTicker) Stop() {
	m.once.Do(func() { close(m.stopped) })
}

// Tick blocks until the tick is received. It returns false once the ticker
// has been stopped.
func (m *ManualTicker) Tick() bool {
	select {
	case <-m.stopped:
		return false
	default:
	}

	select {
	case m.c <- time.Now():
		return true
	case <-m.stopped:
		return false
	}
}

// Stopped reports whether Stop was called
func (m *ManualTicker) Stopped() bool {
	select {
	case <-m.stopped:
		return true
	default:
		return false
	}
}
