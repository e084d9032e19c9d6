// Package debounce coalesces bursts of calls into one call after a quiet period.
package debounce

import (
	"sync"
	"time"

	"github.com/bep/debounce"
)

// Debouncer runs the most recently triggered function once no new trigger
// has arrived for the configured delay.
type Debouncer struct {
	delay time.Duration
	fire  func(func())

	mu      sync.Mutex
	pending bool
}

// New returns a Debouncer with the given quiet period.
func New(delay time.Duration) *Debouncer {
	return &Debouncer{
		delay: delay,
		fire:  debounce.New(delay),
	}
}

// Delay returns the quiet period.
func (d *Debouncer) Delay() time.Duration {
	return d.delay
}

// Trigger schedules fn, replacing anything scheduled earlier.
func (d *Debouncer) Trigger(fn func()) {
	d.mu.Lock()
	d.pending = true
	d.mu.Unlock()

	d.fire(func() {
		d.mu.Lock()
		d.pending = false
		d.mu.Unlock()
		fn()
	})
}

// Flush cancels anything scheduled and runs fn synchronously.
func (d *Debouncer) Flush(fn func()) {
	d.Cancel()
	fn()
}

// Cancel drops the scheduled call, if any.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	d.pending = false
	d.mu.Unlock()
	d.fire(func() {})
}

// Pending reports whether a call is scheduled and has not yet run.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending
}
