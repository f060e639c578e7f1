// Package driver runs a wheel against real time.
//
// The wheel packages deliberately leave out clocks and locking: a wheel only
// moves when Advance is called, and expects a single caller at a time. Driver
// supplies both. It wraps any Wheel behind a mutex, derives elapsed base
// ticks from a monotonic start time, and delivers expiries to a callback
// from its own goroutine.
//
// Deriving the tick count from wall-clock deltas rather than counting ticker
// firings means a stalled process catches up in one batched Advance instead
// of drifting behind.
package driver

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/joshuapare/wheelkit/wheel"
)

// ErrAlreadyRunning indicates a second concurrent Run call on one Driver.
var ErrAlreadyRunning = errors.New("driver: already running")

// ExpireFunc receives each non-empty batch of expiries. It is called from
// the Run goroutine without the driver's lock held, so it may call After and
// Cancel freely; until it returns, no further ticks are processed.
type ExpireFunc[P any] func(batch []wheel.Expired[P])

// Option configures a Driver.
type Option[P any] func(*Driver[P])

// WithLogger sets the driver's logger. The default is slog.Default().
func WithLogger[P any](l *slog.Logger) Option[P] {
	return func(d *Driver[P]) { d.log = l }
}

// Driver owns a wheel and advances it in real time. All methods are safe
// for concurrent use.
type Driver[P any] struct {
	mu sync.Mutex
	w  wheel.Wheel[P]

	onExpire ExpireFunc[P]
	log      *slog.Logger

	running bool
	ticked  uint64 // ticks already applied to the wheel this run
}

// New wraps the given wheel. The driver takes over the wheel's single-owner
// contract: after New, all access must go through the driver.
func New[P any](w wheel.Wheel[P], onExpire ExpireFunc[P], opts ...Option[P]) *Driver[P] {
	d := &Driver[P]{
		w:        w,
		onExpire: onExpire,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// After registers a timer, like Wheel.Start.
func (d *Driver[P]) After(timeout time.Duration, payload P) (wheel.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.w.Start(timeout, payload)
}

// Cancel stops a pending timer, like Wheel.Stop.
func (d *Driver[P]) Cancel(h wheel.Handle) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.w.Stop(h)
}

// Len returns the number of pending timers.
func (d *Driver[P]) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.w.Len()
}

// Stats returns the wheel's counters.
func (d *Driver[P]) Stats() wheel.Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.w.Stats()
}

// Running reports whether a Run loop is active.
func (d *Driver[P]) Running() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

// Run advances the wheel until ctx is canceled, delivering expiries to the
// callback as they fire. It returns ctx.Err() on cancellation, or
// ErrAlreadyRunning if another Run is in flight.
func (d *Driver[P]) Run(ctx context.Context) error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return ErrAlreadyRunning
	}
	d.running = true
	d.ticked = 0
	base := d.w.BaseTick()
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		d.running = false
		d.mu.Unlock()
	}()

	start := time.Now()
	ticker := time.NewTicker(base)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			d.step(start, base)
		}
	}
}

// step applies every tick that has elapsed since start and hands any
// expiries to the callback.
func (d *Driver[P]) step(start time.Time, base time.Duration) {
	d.mu.Lock()
	elapsed := uint64(time.Since(start) / base)
	due := elapsed - d.ticked
	if due == 0 {
		d.mu.Unlock()
		return
	}
	if due > 1 {
		d.log.Debug("catching up missed ticks", "ticks", due)
	}
	d.ticked = elapsed
	batch := d.w.Advance(due)
	d.mu.Unlock()

	if len(batch) > 0 && d.onExpire != nil {
		d.onExpire(batch)
	}
}
