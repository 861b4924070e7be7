package mapview

import (
	"sync"
	"time"

	"github.com/bep/debounce"
)

// Debouncer coalesces bursts of calls so that only the last one runs, once
// the burst has been quiet for the configured interval.
type Debouncer struct {
	call func(f func())

	mu      sync.Mutex
	stopped bool
}

// NewDebouncer creates a Debouncer with the given quiet interval.
func NewDebouncer(interval time.Duration) *Debouncer {
	return &Debouncer{call: debounce.New(interval)}
}

// Trigger schedules fn, replacing any pending call and restarting the timer.
func (d *Debouncer) Trigger(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.call(func() {
		d.mu.Lock()
		stopped := d.stopped
		d.mu.Unlock()
		if !stopped {
			fn()
		}
	})
}

// Stop drops any pending call. Later triggers are ignored.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	d.stopped = true
	d.mu.Unlock()
}
