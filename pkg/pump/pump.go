// Package pump carries serialized reply scripts to the UI thread. Script
// evaluation must never start inside the webview's message callback, so
// every script is queued and flushed from a scheduled UI-thread wake-up.
package pump

import (
	"log/slog"
	"sync"
)

const defaultCapacity = 4096

// ScheduleFunc arranges one future run of fn on the UI thread.
type ScheduleFunc func(fn func())

// PostFunc evaluates a script; the host guarantees it runs on the UI thread.
type PostFunc func(script string)

// Pump is a bounded, mutex-guarded FIFO of reply scripts. A single
// flushScheduled flag guarantees exactly one pending wake-up no matter how
// many replies arrive between flushes.
type Pump struct {
	schedule ScheduleFunc
	post     PostFunc
	log      *slog.Logger
	capacity int

	mu             sync.Mutex
	queue          []string
	flushScheduled bool
}

// Option configures a Pump.
type Option func(*Pump)

// WithCapacity overrides the queue bound.
func WithCapacity(n int) Option {
	return func(p *Pump) {
		if n > 0 {
			p.capacity = n
		}
	}
}

// WithLogger overrides the default logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pump) {
		if l != nil {
			p.log = l
		}
	}
}

// New wires a pump to the host's scheduling and script-evaluation
// capabilities.
func New(schedule ScheduleFunc, post PostFunc, opts ...Option) *Pump {
	p := &Pump{
		schedule: schedule,
		post:     post,
		log:      slog.Default(),
		capacity: defaultCapacity,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Enqueue appends a script and schedules a flush unless one is already
// pending. Safe to call from any goroutine. When the queue is at capacity
// the script is dropped with a diagnostic; a stalled UI thread must not
// grow the queue without bound.
func (p *Pump) Enqueue(script string) {
	p.mu.Lock()
	if len(p.queue) >= p.capacity {
		p.mu.Unlock()
		p.log.Error("pump: queue full, dropping reply script", "capacity", p.capacity)
		return
	}
	p.queue = append(p.queue, script)
	schedule := !p.flushScheduled
	if schedule {
		p.flushScheduled = true
	}
	p.mu.Unlock()

	if schedule {
		p.schedule(p.Flush)
	}
}

// Flush drains the queue and evaluates each script in FIFO order. It runs
// on the UI thread. Scripts are posted outside the lock: a post that leads
// to a new Enqueue extends the next flush cycle instead of re-entering this
// one.
func (p *Pump) Flush() {
	p.mu.Lock()
	p.flushScheduled = false
	scripts := p.queue
	p.queue = nil
	p.mu.Unlock()

	for _, script := range scripts {
		p.post(script)
	}
}

// Len reports the number of queued scripts. Diagnostic only.
func (p *Pump) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}
