package assistant

import (
	"context"
	"errors"
	"sync"
)

// Worker pool bounds. Turns are cheap to queue but expensive to run,
// so a handful of workers keeps latency sane without flooding the
// paid providers.
const (
	MinWorkers     = 3
	MaxWorkers     = 5
	DefaultWorkers = 4
)

// ErrPoolClosed is returned by Submit after Close.
var ErrPoolClosed = errors.New("assistant: worker pool closed")

// Pool is a fixed-size worker pool for assistant turns.
type Pool struct {
	tasks chan func()
	done  chan struct{}
	wg    sync.WaitGroup
	once  sync.Once
}

// NewPool starts n workers, clamped to the supported range.
func NewPool(n int) *Pool {
	if n < MinWorkers {
		n = MinWorkers
	}
	if n > MaxWorkers {
		n = MaxWorkers
	}

	p := &Pool{
		tasks: make(chan func()),
		done:  make(chan struct{}),
	}
	for i := 0; i < n; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for {
				select {
				case task := <-p.tasks:
					task()
				case <-p.done:
					return
				}
			}
		}()
	}
	return p
}

// Submit hands a task to a worker, blocking until one accepts it, the
// context is done, or the pool is closed.
func (p *Pool) Submit(ctx context.Context, task func()) error {
	select {
	case <-p.done:
		return ErrPoolClosed
	default:
	}

	select {
	case p.tasks <- task:
		return nil
	case <-p.done:
		return ErrPoolClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the workers after their current task and waits for them.
func (p *Pool) Close() {
	p.once.Do(func() { close(p.done) })
	p.wg.Wait()
}
