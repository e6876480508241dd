package schedule

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestDebouncerCollapsesBursts(t *testing.T) {
	d := NewDebouncer(50 * time.Millisecond)
	var calls, last atomic.Int32

	for i := 1; i <= 5; i++ {
		n := int32(i)
		d.Trigger(func() {
			calls.Add(1)
			last.Store(n)
		})
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(200 * time.Millisecond)

	if calls.Load() != 1 {
		t.Errorf("Expected 1 call, got %d", calls.Load())
	}
	if last.Load() != 5 {
		t.Errorf("Expected the last trigger to win, got %d", last.Load())
	}
}

func TestDebouncerStop(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)
	var calls atomic.Int32
	d.Trigger(func() { calls.Add(1) })
	d.Stop()
	d.Trigger(func() { calls.Add(1) })
	time.Sleep(100 * time.Millisecond)
	if calls.Load() != 0 {
		t.Errorf("Expected no calls after Stop, got %d", calls.Load())
	}
}

func TestCollectorKeepsEveryKey(t *testing.T) {
	var mu sync.Mutex
	var batches [][]string
	c := NewCollector(50*time.Millisecond, func(keys []string) {
		mu.Lock()
		batches = append(batches, keys)
		mu.Unlock()
	})

	c.Add("b.md")
	time.Sleep(10 * time.Millisecond)
	c.Add("a.md")
	c.Add("b.md")
	time.Sleep(200 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(batches) != 1 {
		t.Fatalf("Expected one batch, got %v", batches)
	}
	if got := batches[0]; len(got) != 2 || got[0] != "a.md" || got[1] != "b.md" {
		t.Errorf("Expected [a.md b.md], got %v", got)
	}
}

func TestCollectorStop(t *testing.T) {
	var calls atomic.Int32
	c := NewCollector(20*time.Millisecond, func([]string) { calls.Add(1) })
	c.Add("a.md")
	c.Stop()
	c.Add("b.md")
	time.Sleep(100 * time.Millisecond)
	if calls.Load() != 0 {
		t.Errorf("Expected no calls after Stop, got %d", calls.Load())
	}
}

func TestJobStartStop(t *testing.T) {
	var ticks atomic.Int32
	j := NewJob("test-job", 0, func(ctx context.Context) { ticks.Add(1) })

	j.Start(context.Background(), 0)
	if j.Running() {
		t.Fatal("Expected zero interval not to start the job")
	}

	j.Start(context.Background(), 10*time.Millisecond)
	if !j.Running() {
		t.Fatal("Expected job to be running")
	}
	time.Sleep(80 * time.Millisecond)
	j.Stop()
	if j.Running() {
		t.Error("Expected job stopped")
	}

	seen := ticks.Load()
	if seen == 0 {
		t.Error("Expected at least one tick")
	}
	time.Sleep(40 * time.Millisecond)
	if ticks.Load() != seen {
		t.Errorf("Expected no ticks after Stop, got %d more", ticks.Load()-seen)
	}
	j.Stop()
}
