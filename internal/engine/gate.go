package engine

import (
	"context"
	"sync"
)

// Gate is a single-flight lock with strict arrival-order handoff. Scheduled
// runs and interactive requests contend on the same gate, so at most one
// agent execution is in flight process-wide and waiters are served FIFO.
//
// sync.Mutex does not promise handoff order and semaphores wake waiters
// arbitrarily, hence the explicit waiter queue.
type Gate struct {
	mu      sync.Mutex
	held    bool
	waiters []chan struct{}
}

func NewGate() *Gate {
	return &Gate{}
}

// TryAcquire takes the gate immediately or reports false without queueing.
func (g *Gate) TryAcquire() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.held {
		return false
	}
	g.held = true
	return true
}

// Acquire blocks until the gate is handed to this caller in arrival order,
// or ctx is done.
func (g *Gate) Acquire(ctx context.Context) error {
	return g.Enqueue().Wait(ctx)
}

// Ticket is a claimed place in line at the gate.
type Ticket struct {
	g        *Gate
	ready    chan struct{}
	acquired bool
}

// Enqueue claims the caller's place in line without blocking. A free gate is
// taken immediately; otherwise the ticket waits behind earlier arrivals.
func (g *Gate) Enqueue() *Ticket {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.held {
		g.held = true
		return &Ticket{g: g, acquired: true}
	}
	ready := make(chan struct{})
	g.waiters = append(g.waiters, ready)
	return &Ticket{g: g, ready: ready}
}

// Acquired reports whether the ticket already holds the gate.
func (t *Ticket) Acquired() bool {
	return t.acquired
}

// Wait blocks until the gate is handed to this ticket, or ctx is done. After
// a nil return the caller holds the gate and must Release it.
func (t *Ticket) Wait(ctx context.Context) error {
	if t.acquired {
		return nil
	}
	select {
	case <-t.ready:
		t.acquired = true
		return nil
	case <-ctx.Done():
		g := t.g
		g.mu.Lock()
		for i, w := range g.waiters {
			if w == t.ready {
				g.waiters = append(g.waiters[:i], g.waiters[i+1:]...)
				g.mu.Unlock()
				return ctx.Err()
			}
		}
		g.mu.Unlock()
		// Ownership was handed over concurrently with cancellation; pass it
		// on so the gate is not leaked.
		<-t.ready
		g.Release()
		return ctx.Err()
	}
}

// Release hands the gate to the oldest waiter, or frees it.
func (g *Gate) Release() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.waiters) > 0 {
		next := g.waiters[0]
		g.waiters = g.waiters[1:]
		close(next)
		return
	}
	g.held = false
}

// Busy reports whether an execution currently holds the gate.
func (g *Gate) Busy() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.held
}
