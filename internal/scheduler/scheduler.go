// Package scheduler implements the cooperative refresh loop: independent
// fixed intervals for each task, pumped from a single thread.
package scheduler

import (
	"time"

	"github.com/arprequest/tide-gauge/internal/logger"
)

type task struct {
	name      string
	interval  time.Duration
	run       func(now time.Time)
	lastFired time.Time
}

// Loop fires registered tasks whenever their interval has elapsed. One
// logical thread: tasks run synchronously in registration order, so a
// slow task delays everything after it. That is the accepted trade-off;
// there is no preemption and no locking.
type Loop struct {
	tasks []*task
}

// New creates an empty loop.
func New() *Loop {
	return &Loop{}
}

// Add registers a task. The first tick fires every task immediately.
func (l *Loop) Add(name string, interval time.Duration, run func(now time.Time)) {
	l.tasks = append(l.tasks, &task{
		name:     name,
		interval: interval,
		run:      run,
	})
}

// Tick runs one loop iteration at the given time. For each task
// independently: if the interval has elapsed since its last firing, the
// last-fired stamp is reset to the tick time BEFORE the task runs, so a
// task's own latency never accumulates into its schedule.
func (l *Loop) Tick(now time.Time) {
	for _, t := range l.tasks {
		if !t.lastFired.IsZero() && now.Sub(t.lastFired) < t.interval {
			continue
		}
		t.lastFired = now
		start := time.Now()
		t.run(now)
		if elapsed := time.Since(start); elapsed > t.interval {
			logger.Warn("Task %s took %v, longer than its %v interval", t.name, elapsed, t.interval)
		}
	}
}

// Run pumps the loop from a ticker until done is closed.
func (l *Loop) Run(done <-chan struct{}, tickInterval time.Duration) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	l.Tick(time.Now())
	for {
		select {
		case <-done:
			return
		case now := <-ticker.C:
			l.Tick(now)
		}
	}
}
