// Package engine drives search sessions: it fans queries out to
// sources on a worker pool, caches per-session results, aggregates
// them through a backer, and hands the UI a cursor to observe the
// growing result list.
package engine

import "sync"

// Executor runs tasks off the caller's goroutine.
type Executor interface {
	Execute(task func())
}

// Pool is a fixed-size worker pool. Source queries and shortcut
// refreshes run here so a slow source never blocks the UI thread or
// another source.
type Pool struct {
	mu     sync.Mutex
	tasks  chan func()
	wg     sync.WaitGroup
	closed bool
}

// NewPool starts a pool with the given number of workers.
func NewPool(workers int) *Pool {
	if workers < 1 {
		workers = 1
	}
	p := &Pool{tasks: make(chan func(), 64)}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for task := range p.tasks {
		task()
	}
}

// Execute queues a task. Tasks submitted after Close are dropped.
func (p *Pool) Execute(task func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.tasks <- task
}

// Close stops accepting work and waits for queued tasks to finish.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.tasks)
	p.mu.Unlock()
	p.wg.Wait()
}

var _ Executor = (*Pool)(nil)
