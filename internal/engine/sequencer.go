package engine

import (
	"sync"
	"sync/atomic"
	"time"
)

// Sequencer runs tasks one at a time on a single goroutine, in the
// order they were posted. The session engine uses it as its "UI
// thread": cursor notifications, delayed fan-outs and state updates
// all serialize here, so they need no further locking against each
// other.
type Sequencer struct {
	mu     sync.Mutex
	tasks  chan func()
	closed bool
	done   chan struct{}
}

// NewSequencer starts the sequencer goroutine.
func NewSequencer() *Sequencer {
	s := &Sequencer{
		tasks: make(chan func(), 128),
		done:  make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *Sequencer) run() {
	defer close(s.done)
	for task := range s.tasks {
		task()
	}
}

// Post queues a task. Returns false if the sequencer is closed.
func (s *Sequencer) Post(task func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.tasks <- task
	return true
}

// PostDelayed schedules a task to be posted after delay. The returned
// handle can cancel it up until it starts running.
func (s *Sequencer) PostDelayed(task func(), delay time.Duration) *Delayed {
	d := &Delayed{}
	d.timer = time.AfterFunc(delay, func() {
		s.Post(func() {
			if d.claimed.CompareAndSwap(false, true) {
				task()
			}
		})
	})
	return d
}

// Close stops accepting tasks and waits for queued ones to finish.
func (s *Sequencer) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.tasks)
	s.mu.Unlock()
	<-s.done
}

// Delayed is a cancellable handle to a task scheduled with
// PostDelayed.
type Delayed struct {
	timer   *time.Timer
	claimed atomic.Bool
}

// Cancel prevents the task from running if it has not started yet.
// Returns true when the cancellation won the race.
func (d *Delayed) Cancel() bool {
	if d.claimed.CompareAndSwap(false, true) {
		d.timer.Stop()
		return true
	}
	return false
}
