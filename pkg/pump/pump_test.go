package pump

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// manualScheduler records scheduled flushes and runs them on demand,
// standing in for the host's UI-thread run loop.
type manualScheduler struct {
	mu      sync.Mutex
	pending []func()
}

func (s *manualScheduler) schedule(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, fn)
}

func (s *manualScheduler) runAll() {
	for {
		s.mu.Lock()
		if len(s.pending) == 0 {
			s.mu.Unlock()
			return
		}
		fn := s.pending[0]
		s.pending = s.pending[1:]
		s.mu.Unlock()
		fn()
	}
}

func (s *manualScheduler) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

func TestFlushPreservesFIFOOrder(t *testing.T) {
	sched := &manualScheduler{}
	var posted []string
	p := New(sched.schedule, func(s string) { posted = append(posted, s) })

	p.Enqueue("a")
	p.Enqueue("b")
	p.Enqueue("c")
	sched.runAll()

	require.Equal(t, []string{"a", "b", "c"}, posted)
}

func TestSingleScheduledFlushForManyEnqueues(t *testing.T) {
	sched := &manualScheduler{}
	var posted []string
	p := New(sched.schedule, func(s string) { posted = append(posted, s) })

	for i := 0; i < 50; i++ {
		p.Enqueue("x")
	}
	require.Equal(t, 1, sched.count())
	sched.runAll()
	require.Len(t, posted, 50)
}

func TestEnqueueDuringFlushSchedulesNextCycle(t *testing.T) {
	sched := &manualScheduler{}
	var posted []string
	var p *Pump
	p = New(sched.schedule, func(s string) {
		posted = append(posted, s)
		if s == "first" {
			p.Enqueue("second")
		}
	})

	p.Enqueue("first")
	sched.runAll()

	require.Equal(t, []string{"first", "second"}, posted)
}

func TestEnqueueAfterFlushSchedulesAgain(t *testing.T) {
	sched := &manualScheduler{}
	var posted []string
	p := New(sched.schedule, func(s string) { posted = append(posted, s) })

	p.Enqueue("a")
	sched.runAll()
	p.Enqueue("b")
	require.Equal(t, 1, sched.count())
	sched.runAll()

	require.Equal(t, []string{"a", "b"}, posted)
}

func TestCapacityDropsExcess(t *testing.T) {
	sched := &manualScheduler{}
	var posted []string
	p := New(sched.schedule, func(s string) { posted = append(posted, s) }, WithCapacity(2))

	p.Enqueue("a")
	p.Enqueue("b")
	p.Enqueue("dropped")
	sched.runAll()

	require.Equal(t, []string{"a", "b"}, posted)
}

func TestConcurrentEnqueueDeliversEverything(t *testing.T) {
	sched := &manualScheduler{}
	var mu sync.Mutex
	var posted []string
	p := New(sched.schedule, func(s string) {
		mu.Lock()
		posted = append(posted, s)
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				p.Enqueue("s")
			}
		}()
	}
	wg.Wait()
	sched.runAll()

	require.Len(t, posted, 800)
}
