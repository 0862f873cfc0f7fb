// Package workerpool runs submitted tasks on a fixed number of
// goroutines. Tasks wait in a FIFO queue whose behaviour on overflow
// is chosen at construction.
package workerpool

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/pkg/errors"

	"github.com/krew-solutions/ascetic-db-go/asceticdb/log"
)

const DefaultSize = 4

var (
	ErrQueueFull = errors.New("worker pool queue is full")
	ErrStopped   = errors.New("worker pool is stopped")
)

// Overflow selects what Submit does when the queue holds Capacity
// tasks.
type Overflow string

const (
	// Grow ignores the capacity and queues without bound.
	Grow Overflow = "grow"
	// Block makes Submit wait for a free queue slot.
	Block Overflow = "block"
	// Reject makes Submit fail with ErrQueueFull.
	Reject Overflow = "reject"
)

func ParseOverflow(s string) (Overflow, error) {
	switch o := Overflow(s); o {
	case Grow, Block, Reject:
		return o, nil
	case "":
		return Grow, nil
	default:
		return "", errors.Errorf("unknown overflow policy %q", s)
	}
}

type Option func(*Pool)

func WithQueue(capacity int, overflow Overflow) Option {
	return func(p *Pool) {
		p.capacity = capacity
		p.overflow = overflow
	}
}

type Pool struct {
	size     int
	capacity int
	overflow Overflow

	mu       sync.Mutex
	notEmpty *sync.Cond
	notFull  *sync.Cond
	queue    []func()
	started  bool
	stopped  bool
	wg       sync.WaitGroup
}

func New(size int, opts ...Option) *Pool {
	if size < 1 {
		size = DefaultSize
	}
	p := &Pool{size: size, overflow: Grow}
	for _, opt := range opts {
		opt(p)
	}
	p.notEmpty = sync.NewCond(&p.mu)
	p.notFull = sync.NewCond(&p.mu)
	return p
}

// Start launches the workers. Tasks submitted earlier are kept queued
// until then. Calling Start more than once has no effect.
func (p *Pool) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started || p.stopped {
		return
	}
	p.started = true
	p.spawn()
}

// spawn must be called with mu held.
func (p *Pool) spawn() {
	for i := 0; i < p.size; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Submit queues task without waiting for it to run.
func (p *Pool) Submit(task func()) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return ErrStopped
	}
	if p.capacity > 0 && p.overflow != Grow {
		for len(p.queue) >= p.capacity {
			if p.overflow == Reject {
				return ErrQueueFull
			}
			p.notFull.Wait()
			if p.stopped {
				return ErrStopped
			}
		}
	}
	p.queue = append(p.queue, task)
	p.notEmpty.Signal()
	return nil
}

// Pending returns the number of queued tasks not yet picked by a worker.
func (p *Pool) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

func (p *Pool) Size() int {
	return p.size
}

// Shutdown stops accepting tasks, lets the workers drain the queue and
// waits for them until ctx is done. A pool that was never started is
// started to drain its queue.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	p.stopped = true
	if !p.started {
		p.started = true
		p.spawn()
	}
	p.notEmpty.Broadcast()
	p.notFull.Broadcast()
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "waiting for workers")
	}
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	for {
		p.mu.Lock()
		for len(p.queue) == 0 && !p.stopped {
			p.notEmpty.Wait()
		}
		if len(p.queue) == 0 {
			p.mu.Unlock()
			return
		}
		task := p.queue[0]
		p.queue[0] = nil
		p.queue = p.queue[1:]
		p.notFull.Signal()
		p.mu.Unlock()

		p.run(id, task)
	}
}

func (p *Pool) run(id int, task func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Error(context.Background(), "worker task panicked",
				slog.Int("worker", id),
				slog.String("panic", fmt.Sprint(r)),
			)
		}
	}()
	task()
}
