package engine

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestGateTryAcquire(t *testing.T) {
	t.Parallel()
	g := NewGate()

	if !g.TryAcquire() {
		t.Fatal("first TryAcquire should succeed")
	}
	if g.TryAcquire() {
		t.Fatal("second TryAcquire should fail while held")
	}
	if !g.Busy() {
		t.Fatal("Busy should report held")
	}
	g.Release()
	if g.Busy() {
		t.Fatal("Busy should clear after release")
	}
	if !g.TryAcquire() {
		t.Fatal("TryAcquire should succeed after release")
	}
}

func TestGateFIFOOrder(t *testing.T) {
	t.Parallel()
	g := NewGate()
	ctx := context.Background()

	if !g.TryAcquire() {
		t.Fatal("TryAcquire")
	}

	const n = 5
	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup
	started := make(chan struct{}, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			started <- struct{}{}
			if err := g.Acquire(ctx); err != nil {
				t.Errorf("Acquire: %v", err)
				return
			}
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			g.Release()
		}(i)
		// let waiter i enqueue before waiter i+1 starts
		<-started
		waitForWaiters(t, g, i+1)
	}

	g.Release()
	wg.Wait()

	for i, got := range order {
		if got != i {
			t.Fatalf("handoff order = %v, want arrival order", order)
		}
	}
}

func TestGateAcquireCancelled(t *testing.T) {
	t.Parallel()
	g := NewGate()

	if !g.TryAcquire() {
		t.Fatal("TryAcquire")
	}
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- g.Acquire(ctx) }()
	waitForWaiters(t, g, 1)

	cancel()
	if err := <-errc; err != context.Canceled {
		t.Fatalf("Acquire after cancel = %v", err)
	}

	// the cancelled waiter must not receive the handoff
	g.Release()
	if !g.TryAcquire() {
		t.Fatal("gate leaked to a cancelled waiter")
	}
	g.Release()
}

func waitForWaiters(t *testing.T, g *Gate, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		g.mu.Lock()
		got := len(g.waiters)
		g.mu.Unlock()
		if got >= n {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d waiters", n)
}
