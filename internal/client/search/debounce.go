package search

import (
	"sync"
	"time"
)

// DefaultWait is the quiet period applied when none is configured.
const DefaultWait = 300 * time.Millisecond

// Debouncer delays work until no new trigger arrived for the wait period.
// Every trigger is tagged with a sequence number; only work carrying the
// latest number may publish results.
type Debouncer struct {
	wait time.Duration

	mu    sync.Mutex
	seq   uint64
	timer *time.Timer
}

// NewDebouncer returns a Debouncer with the given quiet period. A negative
// wait means DefaultWait; zero runs work synchronously inside Trigger.
func NewDebouncer(wait time.Duration) *Debouncer {
	if wait < 0 {
		wait = DefaultWait
	}
	return &Debouncer{wait: wait}
}

// Wait returns the configured quiet period.
func (d *Debouncer) Wait() time.Duration { return d.wait }

// Trigger supersedes any pending work and schedules fn. fn receives the
// sequence number of this trigger and should check IsCurrent before
// publishing anything.
func (d *Debouncer) Trigger(fn func(seq uint64)) uint64 {
	d.mu.Lock()
	d.seq++
	seq := d.seq
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	if d.wait == 0 {
		d.mu.Unlock()
		fn(seq)
		return seq
	}
	d.timer = time.AfterFunc(d.wait, func() { fn(seq) })
	d.mu.Unlock()
	return seq
}

// IsCurrent reports whether seq belongs to the latest trigger.
func (d *Debouncer) IsCurrent(seq uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return seq == d.seq
}

// Stop cancels pending work and invalidates every issued sequence number.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seq++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
