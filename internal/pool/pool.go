// Package pool provides a fixed-size worker pool with a bounded,
// non-blocking submit. Submission never queues indefinitely: when the
// queue is full the task is dropped and counted, so a burst of slow work
// can delay commands but never wedge the subscriber callback feeding it.
package pool

import (
	"errors"
	"sync"
	"sync/atomic"
)

var (
	// ErrPoolClosed is returned by Submit after Close.
	ErrPoolClosed = errors.New("pool closed")
	// ErrQueueFull is returned by Submit when the task queue is full.
	ErrQueueFull = errors.New("task queue full")
)

// Stats tracks task accounting.
type Stats struct {
	Submitted uint64
	Completed uint64
	Dropped   uint64
}

// Pool runs submitted tasks on a fixed set of worker goroutines.
type Pool struct {
	tasks chan func()
	wg    sync.WaitGroup

	mu     sync.Mutex
	closed bool

	submitted uint64
	completed uint64
	dropped   uint64
}

// New starts a pool with the given worker count and queue depth.
func New(workers, queue int) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queue <= 0 {
		queue = 1
	}

	p := &Pool{tasks: make(chan func(), queue)}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.run()
	}
	return p
}

func (p *Pool) run() {
	defer p.wg.Done()
	for task := range p.tasks {
		task()
		atomic.AddUint64(&p.completed, 1)
	}
}

// Submit enqueues a task without blocking. A full queue drops the task and
// returns ErrQueueFull.
func (p *Pool) Submit(task func()) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPoolClosed
	}

	select {
	case p.tasks <- task:
		atomic.AddUint64(&p.submitted, 1)
		return nil
	default:
		atomic.AddUint64(&p.dropped, 1)
		return ErrQueueFull
	}
}

// Close stops accepting tasks and waits for in-flight work to finish.
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

// Stats returns a snapshot of the task counters.
func (p *Pool) Stats() Stats {
	return Stats{
		Submitted: atomic.LoadUint64(&p.submitted),
		Completed: atomic.LoadUint64(&p.completed),
		Dropped:   atomic.LoadUint64(&p.dropped),
	}
}
