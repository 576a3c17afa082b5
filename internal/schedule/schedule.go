// Package schedule provides cancellable deferred tasks.
package schedule

import (
	"sort"
	"sync"
	"time"
)

// Timer is a pending task handle.
type Timer interface {
	Stop() bool
}

// Scheduler runs a function once after a delay.
type Scheduler interface {
	AfterFunc(delay time.Duration, fn func()) Timer
}

type realScheduler struct{}

// NewRealScheduler returns a Scheduler backed by the runtime timers.
func NewRealScheduler() Scheduler {
	return realScheduler{}
}

func (realScheduler) AfterFunc(delay time.Duration, fn func()) Timer {
	return time.AfterFunc(delay, fn)
}

// Manual is a Scheduler driven explicitly through Advance. Tasks run on the
// goroutine that calls Advance.
type Manual struct {
	mu      sync.Mutex
	now     time.Time
	nextSeq int64
	tasks   []*manualTask
}

type manualTask struct {
	owner   *Manual
	seq     int64
	due     time.Time
	fn      func()
	stopped bool
	fired   bool
}

// NewManual returns a Manual scheduler starting at the given instant.
func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

// Now reports the scheduler's virtual time.
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *Manual) AfterFunc(delay time.Duration, fn func()) Timer {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextSeq++
	task := &manualTask{owner: m, seq: m.nextSeq, due: m.now.Add(delay), fn: fn}
	m.tasks = append(m.tasks, task)
	return task
}

// Pending reports how many tasks are waiting to fire.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, task := range m.tasks {
		if !task.stopped && !task.fired {
			count++
		}
	}
	return count
}

// Advance moves virtual time forward and runs every task that became due, in
// due order. Tasks scheduled while advancing run if they fall inside the window.
func (m *Manual) Advance(delta time.Duration) {
	m.mu.Lock()
	target := m.now.Add(delta)
	m.mu.Unlock()

	for {
		task := m.popDue(target)
		if task == nil {
			break
		}
		task.fn()
	}

	m.mu.Lock()
	m.now = target
	m.mu.Unlock()
}

func (m *Manual) popDue(target time.Time) *manualTask {
	m.mu.Lock()
	defer m.mu.Unlock()

	live := m.tasks[:0]
	for _, task := range m.tasks {
		if !task.stopped && !task.fired {
			live = append(live, task)
		}
	}
	m.tasks = live
	sort.SliceStable(m.tasks, func(i, j int) bool {
		if m.tasks[i].due.Equal(m.tasks[j].due) {
			return m.tasks[i].seq < m.tasks[j].seq
		}
		return m.tasks[i].due.Before(m.tasks[j].due)
	})
	if len(m.tasks) == 0 || m.tasks[0].due.After(target) {
		return nil
	}
	task := m.tasks[0]
	task.fired = true
	if task.due.After(m.now) {
		m.now = task.due
	}
	return task
}

func (t *manualTask) Stop() bool {
	t.owner.mu.Lock()
	defer t.owner.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}
