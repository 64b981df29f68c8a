package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"golang.org/x/sync/errgroup"
)

var (
	ErrQueueFull = errors.New("task queue is full")
	ErrClosed    = errors.New("worker pool is closed")
)

// Job is one unit of work. The context ends when the pool shuts down.
type Job func(ctx context.Context) error

// Pool runs submitted jobs on a fixed number of workers fed by a bounded
// queue. Each job runs on exactly one worker.
type Pool struct {
	workers int
	jobs    chan Job

	mu     sync.RWMutex
	closed bool

	ctx    context.Context
	cancel context.CancelFunc
	group  *errgroup.Group
}

// NewPool creates a pool with the given number of workers and queue size.
func NewPool(workers, queueSize int) *Pool {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	return &Pool{
		workers: workers,
		jobs:    make(chan Job, queueSize),
	}
}

// Start launches the workers. Jobs receive a context derived from ctx.
func (p *Pool) Start(ctx context.Context) {
	p.ctx, p.cancel = context.WithCancel(ctx)
	p.group, _ = errgroup.WithContext(p.ctx)
	for i := 0; i < p.workers; i++ {
		id := i + 1
		p.group.Go(func() error {
			p.process(id)
			return nil
		})
	}
	log.Printf("[Worker] started %d workers (queue %d)", p.workers, cap(p.jobs))
}

// Submit enqueues job without blocking.
func (p *Pool) Submit(job Job) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}
	select {
	case p.jobs <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// Pending is the number of queued jobs not yet picked up.
func (p *Pool) Pending() int {
	return len(p.jobs)
}

func (p *Pool) process(id int) {
	for job := range p.jobs {
		if err := p.run(job); err != nil {
			log.Printf("[Worker %d] job failed: %v", id, err)
		}
	}
}

func (p *Pool) run(job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return job(p.ctx)
}

// Stop refuses new jobs, lets the workers drain the queue and waits for
// them. If ctx ends first, running jobs are cancelled.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()

	if p.group == nil {
		return nil
	}
	done := make(chan struct{})
	go func() {
		_ = p.group.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		return nil
	case <-ctx.Done():
		p.cancel()
		<-done
		return ctx.Err()
	}
}
