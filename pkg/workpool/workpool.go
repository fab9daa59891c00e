// Package workpool provides a bounded worker pool for blocking work.
//
// Pipeline runners hand file copies, codec calls, and subprocess invocations
// to the pool so a burst of jobs cannot spawn unbounded concurrent I/O.
package workpool

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned when work is submitted after Close.
var ErrClosed = errors.New("workpool closed")

// Pool runs submitted functions on a fixed set of worker goroutines.
type Pool struct {
	tasks  chan task
	wg     sync.WaitGroup
	mu     sync.RWMutex // guards closed; held shared across submits so Close cannot race a send
	closed bool
}

type task struct {
	fn   func() error
	done chan error
}

// New creates a pool with the given number of workers.
// If workers <= 0, it defaults to 4.
func New(workers int) *Pool {
	if workers <= 0 {
		workers = 4
	}
	p := &Pool{
		tasks: make(chan task),
	}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for t := range p.tasks {
		t.done <- t.fn()
	}
}

// Do submits fn and blocks until it completes or ctx is cancelled while
// still waiting for a free worker. Once fn is running it runs to completion;
// cancellation mid-flight is the function's own responsibility.
func (p *Pool) Do(ctx context.Context, fn func() error) error {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return ErrClosed
	}

	t := task{fn: fn, done: make(chan error, 1)}

	select {
	case p.tasks <- t:
		p.mu.RUnlock()
	case <-ctx.Done():
		p.mu.RUnlock()
		return ctx.Err()
	}

	return <-t.done
}

// Close stops accepting work and waits for in-flight tasks to finish.
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
