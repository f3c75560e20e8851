package watcher

import (
	"sync"
	"time"
)

// DefaultDebounceDuration coalesces the burst of events an editor or an
// atomic rename produces.
const DefaultDebounceDuration = 200 * time.Millisecond

// Debouncer runs the most recently triggered func once no trigger has
// arrived for its duration.
type Debouncer struct {
	mu       sync.Mutex
	duration time.Duration
	timer    *time.Timer
	seq      uint64
}

// NewDebouncer returns a debouncer; d <= 0 means DefaultDebounceDuration.
func NewDebouncer(d time.Duration) *Debouncer {
	if d <= 0 {
		d = DefaultDebounceDuration
	}
	return &Debouncer{duration: d}
}

// Trigger (re)starts the quiet period and replaces the pending func.
func (d *Debouncer) Trigger(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.seq++
	seq := d.seq
	d.timer = time.AfterFunc(d.duration, func() {
		d.mu.Lock()
		current := seq == d.seq
		d.mu.Unlock()
		if current {
			fn()
		}
	})
}

// Cancel drops any pending func.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.seq++
}

// Duration is the quiet period.
func (d *Debouncer) Duration() time.Duration { return d.duration }
