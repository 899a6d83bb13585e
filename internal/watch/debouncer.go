package watch

import (
	"log/slog"
	"sync"
	"time"
)

// Debouncer coalesces rapid events per path. The callback fires for a path
// once no further event for that path arrived within the interval.
type Debouncer struct {
	interval time.Duration
	callback func(path string)

	mu      sync.Mutex
	timers  map[string]*time.Timer
	stopped bool
}

// NewDebouncer creates a debouncer that waits for interval of quiet on a
// path before firing callback with it.
func NewDebouncer(interval time.Duration, callback func(path string)) *Debouncer {
	return &Debouncer{
		interval: interval,
		callback: callback,
		timers:   make(map[string]*time.Timer),
	}
}

// Trigger records an event for path and restarts its quiet period. Calls
// after Stop are ignored.
func (d *Debouncer) Trigger(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	if t, ok := d.timers[path]; ok {
		t.Stop()
	}

	d.timers[path] = time.AfterFunc(d.interval, func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("debouncer callback panicked", slog.Any("error", r))
			}
		}()

		d.mu.Lock()
		if d.stopped {
			d.mu.Unlock()
			return
		}

		delete(d.timers, path)
		d.mu.Unlock()

		d.callback(path)
	})
}

// Pending returns the number of paths waiting for their quiet period.
func (d *Debouncer) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return len(d.timers)
}

// Stop cancels every pending callback.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true

	for path, t := range d.timers {
		t.Stop()
		delete(d.timers, path)
	}
}
