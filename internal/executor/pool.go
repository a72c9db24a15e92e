package executor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/tsyne-dev/tsyne-host/internal/sandbox"
)

var (
	ErrPoolClosed     = errors.New("executor pool is closed")
	ErrAcquireTimeout = errors.New("executor slot acquisition timeout")
)

// Pool bounds how many executions run at once. A slot is plain
// capacity: the VM inside it is always built fresh, because a recycled
// VM would carry one instance's placeholder bindings into the next.
type Pool struct {
	exec           *Executor
	slots          chan struct{}
	size           int
	acquireTimeout time.Duration

	mu     sync.RWMutex
	closed bool
}

// NewPool creates a pool with the given number of slots.
func NewPool(exec *Executor, size int, acquireTimeout time.Duration) *Pool {
	if size <= 0 {
		size = 4
	}
	if acquireTimeout <= 0 {
		acquireTimeout = 5 * time.Second
	}
	p := &Pool{
		exec:           exec,
		slots:          make(chan struct{}, size),
		size:           size,
		acquireTimeout: acquireTimeout,
	}
	for i := 0; i < size; i++ {
		p.slots <- struct{}{}
	}
	return p
}

// Execute runs the artifact once a slot frees up.
func (p *Pool) Execute(ctx context.Context, art *sandbox.Artifact, opts Options) (*Result, error) {
	if err := p.acquire(ctx); err != nil {
		return nil, err
	}
	defer p.release()
	return p.exec.Execute(ctx, art, opts)
}

func (p *Pool) acquire(ctx context.Context) error {
	if p.isClosed() {
		return ErrPoolClosed
	}

	timer := time.NewTimer(p.acquireTimeout)
	defer timer.Stop()

	select {
	case <-p.slots:
		if p.isClosed() {
			return ErrPoolClosed
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return ErrAcquireTimeout
	}
}

func (p *Pool) release() {
	p.slots <- struct{}{}
}

func (p *Pool) isClosed() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.closed
}

// Close rejects further executions. In-flight runs finish on their own
// budgets.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// Stats returns pool occupancy counters.
func (p *Pool) Stats() map[string]interface{} {
	p.mu.RLock()
	defer p.mu.RUnlock()

	available := len(p.slots)
	return map[string]interface{}{
		"size":      p.size,
		"available": available,
		"in_use":    p.size - available,
		"closed":    p.closed,
	}
}
