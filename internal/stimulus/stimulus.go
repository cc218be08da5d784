// Package stimulus models the demo's periodic "advance a random lead" trigger
// as an injectable source. The visualization engine only ever reacts to the
// resulting stream events; the harness owns the trigger, and tests can drive
// it deterministically without real timers.
package stimulus

import (
	"context"
	"log"
	"sync"
	"time"
)

// Source delivers demo ticks.
type Source interface {
	// C returns the tick channel.
	C() <-chan time.Time

	// Stop releases the source's resources. After Stop no more ticks arrive.
	Stop()
}

// Ticker is the real periodic source backed by a time.Ticker.
type Ticker struct {
	ticker *time.Ticker
}

// NewTicker creates a source firing at the given interval.
func NewTicker(interval time.Duration) *Ticker {
	return &Ticker{ticker: time.NewTicker(interval)}
}

// C implements Source.
func (t *Ticker) C() <-chan time.Time { return t.ticker.C }

// Stop implements Source.
func (t *Ticker) Stop() { t.ticker.Stop() }

// Manual is a test source fired explicitly by calling Fire.
type Manual struct {
	ch   chan time.Time
	once sync.Once
}

// NewManual creates a manual source.
func NewManual() *Manual {
	return &Manual{ch: make(chan time.Time, 1)}
}

// Fire delivers one tick. Non-blocking: a tick already pending is enough.
func (m *Manual) Fire() {
	select {
	case m.ch <- time.Now():
	default:
	}
}

// C implements Source.
func (m *Manual) C() <-chan time.Time { return m.ch }

// Stop implements Source. Safe to call multiple times.
func (m *Manual) Stop() {
	m.once.Do(func() { close(m.ch) })
}

// Drive invokes fn once per tick until the context is cancelled or the source
// stops. A failing invocation is logged and does not stop the loop - the demo
// keeps running through transient errors. Drive stops the source on exit, so
// tearing down the context synchronously cancels the pending stimulus.
func Drive(ctx context.Context, src Source, fn func(context.Context) error) {
	defer src.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case _, ok := <-src.C():
			if !ok {
				return
			}
			if err := fn(ctx); err != nil {
				log.Printf("[stimulus] trigger failed: %v", err)
			}
		}
	}
}
