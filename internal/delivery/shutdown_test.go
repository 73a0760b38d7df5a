package delivery

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"bookclub-notify/internal/queue"
	"bookclub-notify/pkg/log"
)

type fakeAlerter struct {
	mu     sync.Mutex
	alerts []string
}

func (f *fakeAlerter) Alert(_ context.Context, title, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts = append(f.alerts, title)
	return nil
}

// parkedConsumer builds a consumer whose worker loop has already exited, so a
// shutdown proceeds straight to the drain phase with the whole backlog still
// queued.
func parkedConsumer(q *queue.TaskQueue, push PushGateway) *Consumer {
	c := NewConsumer(q, &fakeBroadcaster{}, push, log.NewNoop(), Hooks{})
	close(c.done)
	return c
}

func TestCoordinator_DrainsBacklogWithinBudget(t *testing.T) {
	q := queue.New(100, log.NewNoop(), queue.Hooks{})
	push := &fakePushGateway{}
	c := parkedConsumer(q, push)
	coord := NewCoordinator(q, c, 5*time.Second, log.NewNoop(), nil, CoordinatorHooks{})

	for i := 0; i < 10; i++ {
		q.Enqueue(deliveryTask(fmt.Sprintf("t%d", i)))
	}

	coord.Shutdown(context.Background())

	if got := coord.State(); got != StateDrained {
		t.Errorf("state = %d, want %d", got, StateDrained)
	}
	titles := push.titles()
	if len(titles) != 10 {
		t.Fatalf("delivered %d tasks, want 10", len(titles))
	}
	for i, title := range titles {
		want := fmt.Sprintf("t%d", i)
		if title != want {
			t.Errorf("delivery %d = %q, want %q", i, title, want)
		}
	}
}

func TestCoordinator_AbandonsTasksPastDeadline(t *testing.T) {
	q := queue.New(100, log.NewNoop(), queue.Hooks{})
	// Each push takes 60ms against a 50ms budget: the first task is
	// delivered, the remaining four are abandoned.
	push := &fakePushGateway{delay: 60 * time.Millisecond}
	c := parkedConsumer(q, push)
	alerter := &fakeAlerter{}
	abandoned := 0
	coord := NewCoordinator(q, c, 50*time.Millisecond, log.NewNoop(), alerter, CoordinatorHooks{
		OnAbandoned: func(n int) { abandoned += n },
	})

	for i := 0; i < 5; i++ {
		q.Enqueue(deliveryTask(fmt.Sprintf("t%d", i)))
	}

	coord.Shutdown(context.Background())

	if abandoned != 4 {
		t.Errorf("abandoned = %d, want 4", abandoned)
	}
	if titles := push.titles(); len(titles) != 1 {
		t.Errorf("delivered = %v, want exactly the first task", titles)
	}
	if len(alerter.alerts) != 1 {
		t.Errorf("ops alerts = %d, want 1", len(alerter.alerts))
	}
	if got := coord.State(); got != StateDrained {
		t.Errorf("state = %d, want %d", got, StateDrained)
	}
}

func TestCoordinator_ShutdownIsIdempotent(t *testing.T) {
	q := queue.New(10, log.NewNoop(), queue.Hooks{})
	push := &fakePushGateway{}
	c := parkedConsumer(q, push)
	coord := NewCoordinator(q, c, time.Second, log.NewNoop(), nil, CoordinatorHooks{})

	q.Enqueue(deliveryTask("once"))

	coord.Shutdown(context.Background())
	coord.Shutdown(context.Background())

	if titles := push.titles(); len(titles) != 1 {
		t.Errorf("delivered = %v, want a single delivery", titles)
	}
}

func TestCoordinator_StopsRunningWorkerAndDrainsEmptyQueue(t *testing.T) {
	q := queue.New(10, log.NewNoop(), queue.Hooks{})
	c := NewConsumer(q, &fakeBroadcaster{}, &fakePushGateway{}, log.NewNoop(), Hooks{})
	coord := NewCoordinator(q, c, 30*time.Second, log.NewNoop(), nil, CoordinatorHooks{})

	coord.Start()

	start := time.Now()
	coord.Shutdown(context.Background())
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("empty drain took %s", elapsed)
	}
	select {
	case <-c.Done():
	default:
		t.Error("worker still running after shutdown")
	}
	if got := coord.State(); got != StateDrained {
		t.Errorf("state = %d, want %d", got, StateDrained)
	}
}
