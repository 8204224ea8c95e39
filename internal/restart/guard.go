// Package restart serializes full stage restarts. Bursts of trigger events
// within the debounce window collapse into a single deferred execution that
// every caller awaits, and triggers arriving while the restart sequence is
// already running are suppressed rather than queued; the next periodic
// evaluation catches up.
package restart

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrStopped is returned to pending callers when the guard is stopped
// before the coalesced restart fires.
var ErrStopped = errors.New("restart: guard stopped")

// DefaultWindow is the debounce window used when none is configured.
const DefaultWindow = 500 * time.Millisecond

// Guard debounces a restart function. Each trigger restarts the window, so
// a steady stream of triggers postpones execution indefinitely; when the
// window finally elapses the function runs once and its result is shared
// with every caller that arrived during the window.
type Guard struct {
	window time.Duration
	run    func(context.Context) error

	mu      sync.Mutex
	timer   *time.Timer
	pending *call
	running bool
}

// call is one coalesced execution shared by all waiting triggers.
type call struct {
	done chan struct{}
	err  error
}

// NewGuard wraps run with a debounce of the given window. A non-positive
// window selects [DefaultWindow].
func NewGuard(window time.Duration, run func(context.Context) error) *Guard {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Guard{window: window, run: run}
}

// Trigger requests a restart and blocks until the coalesced execution
// completes, returning its result. Triggers arriving while the restart
// sequence is executing return nil immediately without scheduling another
// run. Cancelling ctx abandons the wait but not the scheduled execution.
func (g *Guard) Trigger(ctx context.Context) error {
	g.mu.Lock()
	if g.running {
		g.mu.Unlock()
		return nil
	}
	if g.pending == nil {
		g.pending = &call{done: make(chan struct{})}
	}
	c := g.pending

	// A fresh window begins on every trigger.
	if g.timer != nil {
		g.timer.Stop()
	}
	g.timer = time.AfterFunc(g.window, g.fire)
	g.mu.Unlock()

	select {
	case <-c.done:
		return c.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Running reports whether the restart sequence is currently executing.
func (g *Guard) Running() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.running
}

// Stop cancels any scheduled execution and releases pending callers with
// [ErrStopped]. A restart already executing is not interrupted.
func (g *Guard) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.timer != nil {
		g.timer.Stop()
		g.timer = nil
	}
	if g.pending != nil {
		g.pending.err = ErrStopped
		close(g.pending.done)
		g.pending = nil
	}
}

// fire runs the coalesced execution once the window elapses.
func (g *Guard) fire() {
	g.mu.Lock()
	c := g.pending
	g.pending = nil
	g.timer = nil
	if c == nil {
		// Stop raced the timer.
		g.mu.Unlock()
		return
	}
	g.running = true
	g.mu.Unlock()

	err := g.run(context.Background())

	g.mu.Lock()
	g.running = false
	g.mu.Unlock()

	c.err = err
	close(c.done)
}
