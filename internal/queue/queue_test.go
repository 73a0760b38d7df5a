package queue

import (
	"context"
	"fmt"
	"testing"
	"time"

	"bookclub-notify/internal/model"
	"bookclub-notify/pkg/log"
)

func task(id string) *model.DeliveryTask {
	return &model.DeliveryTask{
		Recipients: []string{"member-1"},
		Title:      id,
		Live:       model.LiveEvent{TypeCode: model.TypeReportApproved, Title: id},
	}
}

func TestTaskQueue_FIFO(t *testing.T) {
	q := New(10, log.NewNoop(), Hooks{})

	for i := 0; i < 5; i++ {
		if ok := q.Enqueue(task(fmt.Sprintf("t%d", i))); !ok {
			t.Fatalf("enqueue %d failed with spare capacity", i)
		}
	}

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		got, ok := q.Dequeue(ctx)
		if !ok {
			t.Fatalf("dequeue %d returned not ok", i)
		}
		want := fmt.Sprintf("t%d", i)
		if got.Title != want {
			t.Errorf("dequeue %d: got %q, want %q", i, got.Title, want)
		}
	}
}

func TestTaskQueue_OverflowDropsWithoutBlocking(t *testing.T) {
	dropped := 0
	q := New(100, log.NewNoop(), Hooks{OnDropped: func() { dropped++ }})

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 150; i++ {
			q.Enqueue(task(fmt.Sprintf("t%d", i)))
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("enqueue blocked on a full queue")
	}

	if dropped != 50 {
		t.Errorf("dropped = %d, want 50", dropped)
	}
	if q.Len() != 100 {
		t.Errorf("queue length = %d, want 100", q.Len())
	}

	// The 100 accepted tasks come out in their relative enqueue order.
	ctx := context.Background()
	for i := 0; i < 100; i++ {
		got, ok := q.Dequeue(ctx)
		if !ok {
			t.Fatalf("dequeue %d returned not ok", i)
		}
		want := fmt.Sprintf("t%d", i)
		if got.Title != want {
			t.Errorf("dequeue %d: got %q, want %q", i, got.Title, want)
		}
	}
}

func TestTaskQueue_DequeueUnblocksOnContextCancel(t *testing.T) {
	q := New(1, log.NewNoop(), Hooks{})

	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan bool, 1)
	go func() {
		_, ok := q.Dequeue(ctx)
		result <- ok
	}()

	cancel()
	select {
	case ok := <-result:
		if ok {
			t.Error("dequeue returned ok after context cancellation")
		}
	case <-time.After(time.Second):
		t.Fatal("dequeue did not unblock on context cancellation")
	}
}

func TestTaskQueue_CloseAndDrain(t *testing.T) {
	q := New(10, log.NewNoop(), Hooks{})
	for i := 0; i < 3; i++ {
		q.Enqueue(task(fmt.Sprintf("t%d", i)))
	}

	q.Close()
	q.Close() // idempotent

	if ok := q.Enqueue(task("late")); ok {
		t.Error("enqueue succeeded after close")
	}

	drained := q.Drain()
	if len(drained) != 3 {
		t.Fatalf("drained %d tasks, want 3", len(drained))
	}
	for i, task := range drained {
		want := fmt.Sprintf("t%d", i)
		if task.Title != want {
			t.Errorf("drained[%d] = %q, want %q", i, task.Title, want)
		}
	}

	// Dequeue on a closed, empty queue reports not ok.
	if _, ok := q.Dequeue(context.Background()); ok {
		t.Error("dequeue returned ok on closed empty queue")
	}
}
