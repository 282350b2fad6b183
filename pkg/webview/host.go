// Package webview abstracts the native window layer the core runs against:
// the two UI-thread capabilities the runtime consumes, and the script the
// runtime injects into the page.
package webview

import (
	"context"
	"sync"
)

// Host is the contract the native layer fulfils. PostScript evaluates a
// script in the webview and is guaranteed by the host to run on the UI
// thread; ScheduleOnUI arranges one future run of fn on that same thread.
type Host interface {
	PostScript(source string)
	ScheduleOnUI(fn func())
}

// Loop is a single-goroutine run loop standing in for a native UI thread.
// The runtime binary and the tests use it; a real desktop shell supplies
// its own Host backed by the platform event loop.
type Loop struct {
	tasks chan func()

	mu     sync.Mutex
	post   func(script string)
	closed bool
}

// NewLoop creates a loop that forwards posted scripts to post.
func NewLoop(post func(script string)) *Loop {
	if post == nil {
		post = func(string) {}
	}
	return &Loop{
		tasks: make(chan func(), 256),
		post:  post,
	}
}

// Run executes scheduled tasks until the context ends. It must be called
// from exactly one goroutine; that goroutine is the UI thread.
func (l *Loop) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-l.tasks:
			if fn != nil {
				fn()
			}
		}
	}
}

// PostScript forwards the script to the sink. Callers must already be on
// the loop goroutine; the pump guarantees this by flushing from a task.
func (l *Loop) PostScript(source string) {
	l.mu.Lock()
	post := l.post
	l.mu.Unlock()
	post(source)
}

// ScheduleOnUI queues fn for the loop goroutine. Safe from any goroutine.
// Tasks scheduled after Close are discarded.
func (l *Loop) ScheduleOnUI(fn func()) {
	l.mu.Lock()
	closed := l.closed
	l.mu.Unlock()
	if closed {
		return
	}
	select {
	case l.tasks <- fn:
	default:
		// The loop is wedged; dropping keeps callers from blocking the
		// dispatch path.
	}
}

// Close stops accepting tasks.
func (l *Loop) Close() {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()
}
