package translator

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestActorLimiter_SlidingWindow(t *testing.T) {
	clock := newFakeClock()
	l := NewActorLimiter(ActorLimitConfig{Messages: 2, Window: 10 * time.Second},
		WithActorLimiterClock(clock.Now))

	actor := ActorID("steve")

	if !l.CanProceed(actor) {
		t.Fatal("fresh actor should proceed")
	}
	l.RecordUsage(actor)
	clock.Advance(3 * time.Second)
	l.RecordUsage(actor)

	if l.CanProceed(actor) {
		t.Error("third translation inside the window should be refused")
	}

	// First stamp leaves the window at t=10s.
	clock.Advance(7*time.Second + time.Millisecond)
	if !l.CanProceed(actor) {
		t.Error("actor should proceed once the oldest stamp slides out")
	}
}

func TestActorLimiter_CanProceedDoesNotRecord(t *testing.T) {
	l := NewActorLimiter(ActorLimitConfig{Messages: 1, Window: time.Minute})

	for i := 0; i < 5; i++ {
		if !l.CanProceed("alex") {
			t.Fatalf("CanProceed call %d refused without any recorded usage", i)
		}
	}
}

func TestActorLimiter_ActorsAreIndependent(t *testing.T) {
	l := NewActorLimiter(ActorLimitConfig{Messages: 1, Window: time.Minute})

	l.RecordUsage("a")
	if l.CanProceed("a") {
		t.Error("actor a should be throttled")
	}
	if !l.CanProceed("b") {
		t.Error("actor b should not be affected by a")
	}
}

func TestActorLimiter_Defaults(t *testing.T) {
	l := NewActorLimiter(ActorLimitConfig{})
	if l.limit != 2 || l.window != 10*time.Second {
		t.Errorf("defaults = %d / %v, want 2 / 10s", l.limit, l.window)
	}
}

func TestActorLimiter_SweepAndClear(t *testing.T) {
	clock := newFakeClock()
	l := NewActorLimiter(ActorLimitConfig{Messages: 2, Window: 10 * time.Second},
		WithActorLimiterClock(clock.Now))

	l.RecordUsage("idle")
	clock.Advance(8 * time.Second)
	l.RecordUsage("busy")
	clock.Advance(5 * time.Second)

	if remaining := l.Sweep(); remaining != 1 {
		t.Errorf("Sweep left %d actors, want 1", remaining)
	}

	l.Clear()
	if remaining := l.Sweep(); remaining != 0 {
		t.Errorf("Sweep after Clear left %d actors", remaining)
	}
}

func TestActorLimiter_StartStops(t *testing.T) {
	l := NewActorLimiter(ActorLimitConfig{Messages: 1, Window: 10 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	l.Start(ctx)
	l.Start(ctx)

	l.RecordUsage("x")
	deadline := time.Now().Add(2 * time.Second)
	for {
		l.mu.RLock()
		n := len(l.windows)
		l.mu.RUnlock()
		if n == 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("background sweep never dropped the idle actor")
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
}

func TestActorLimiter_Concurrent(t *testing.T) {
	l := NewActorLimiter(ActorLimitConfig{Messages: 1000, Window: time.Minute})
	var wg sync.WaitGroup
	var admitted atomic.Int64

	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := ActorID(fmt.Sprintf("actor-%d", i%10))
			if l.CanProceed(id) {
				admitted.Add(1)
			}
			l.RecordUsage(id)
		}(i)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		l.Sweep()
	}()
	wg.Wait()

	if admitted.Load() != 200 {
		t.Errorf("admitted %d, want 200", admitted.Load())
	}
}

func TestActorLimiter_TryAcquireConcurrent(t *testing.T) {
	l := NewActorLimiter(ActorLimitConfig{Messages: 3, Window: time.Minute})
	var wg sync.WaitGroup
	var admitted atomic.Int64

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := l.TryAcquire("steve"); ok {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()

	if admitted.Load() != 3 {
		t.Errorf("admitted %d, want 3", admitted.Load())
	}
}

func TestActorLimiter_Release(t *testing.T) {
	clock := newFakeClock()
	l := NewActorLimiter(ActorLimitConfig{Messages: 2, Window: 10 * time.Second}, WithActorLimiterClock(clock.Now))

	first, ok := l.TryAcquire("alex")
	if !ok {
		t.Fatal("first acquire refused")
	}
	clock.Advance(time.Second)
	if _, ok := l.TryAcquire("alex"); !ok {
		t.Fatal("second acquire refused")
	}
	if _, ok := l.TryAcquire("alex"); ok {
		t.Fatal("third acquire admitted past the limit")
	}

	l.Release("alex", first)
	if _, ok := l.TryAcquire("alex"); !ok {
		t.Error("released slot should be reusable")
	}

	// Releasing a stamp that was already pruned leaves the window alone.
	clock.Advance(20 * time.Second)
	l.Release("alex", first)
	if _, ok := l.TryAcquire("alex"); !ok {
		t.Error("window should be empty after it elapsed")
	}
}
