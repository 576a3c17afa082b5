package schedule

import (
	"sync"
	"time"
)

// Debouncer owns a single re-armable task. Every Trigger cancels the pending
// run and schedules a new one; only the latest trigger ever fires.
type Debouncer struct {
	mu         sync.Mutex
	scheduler  Scheduler
	delay      time.Duration
	timer      Timer
	generation uint64
}

// NewDebouncer returns a Debouncer firing delay after the last Trigger.
func NewDebouncer(scheduler Scheduler, delay time.Duration) *Debouncer {
	if scheduler == nil {
		scheduler = NewRealScheduler()
	}
	return &Debouncer{scheduler: scheduler, delay: delay}
}

// Trigger (re)arms the task.
func (d *Debouncer) Trigger(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.generation++
	generation := d.generation
	d.timer = d.scheduler.AfterFunc(d.delay, func() {
		if !d.claim(generation) {
			return
		}
		fn()
	})
}

// Cancel drops the pending run and reports whether one was pending.
func (d *Debouncer) Cancel() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer == nil {
		return false
	}
	d.timer.Stop()
	d.timer = nil
	d.generation++
	return true
}

// Pending reports whether a run is armed.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}

// claim guards against a runtime timer that fired concurrently with Stop.
func (d *Debouncer) claim(generation uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if generation != d.generation {
		return false
	}
	d.timer = nil
	return true
}
