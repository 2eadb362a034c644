package rotation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestTaskQueue_ScheduleFull(t *testing.T) {
	q := NewTaskQueue(2, nil)

	noop := func(context.Context) {}
	if err := q.Schedule(noop); err != nil {
		t.Fatalf("Schedule 1: %v", err)
	}
	if err := q.Schedule(noop); err != nil {
		t.Fatalf("Schedule 2: %v", err)
	}
	if err := q.Schedule(noop); !errors.Is(err, ErrQueueFull) {
		t.Errorf("Schedule 3 error = %v, want ErrQueueFull", err)
	}
	if q.Pending() != 2 {
		t.Errorf("Pending() = %d, want 2", q.Pending())
	}
}

func TestTaskQueue_RunsInOrder(t *testing.T) {
	q := NewTaskQueue(0, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		mu    sync.Mutex
		order []int
		wg    sync.WaitGroup
	)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		n := i
		if err := q.Schedule(func(context.Context) {
			defer wg.Done()
			mu.Lock()
			order = append(order, n)
			mu.Unlock()
		}); err != nil {
			t.Fatalf("Schedule: %v", err)
		}
	}

	go q.Run(ctx)
	wg.Wait()

	for i, v := range order {
		if v != i {
			t.Fatalf("order = %v, want ascending", order)
		}
	}
}

func TestTaskQueue_PanicContained(t *testing.T) {
	q := NewTaskQueue(4, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	_ = q.Schedule(func(context.Context) { panic("task failure") })
	_ = q.Schedule(func(context.Context) { close(done) })

	go q.Run(ctx)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("queue stalled after panicking task")
	}

	deadline := time.Now().Add(2 * time.Second)
	for q.Completed() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if q.Completed() != 2 {
		t.Errorf("Completed() = %d, want 2", q.Completed())
	}
}

func TestTaskQueue_RunStopsOnCancel(t *testing.T) {
	q := NewTaskQueue(1, nil)
	ctx, cancel := context.WithCancel(context.Background())

	stopped := make(chan struct{})
	go func() {
		q.Run(ctx)
		close(stopped)
	}()

	deadline := time.Now().Add(time.Second)
	for !q.IsRunning() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	cancel()

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if q.IsRunning() {
		t.Error("IsRunning() true after Run returned")
	}
}
