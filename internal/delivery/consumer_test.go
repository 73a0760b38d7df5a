package delivery

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"bookclub-notify/internal/model"
	"bookclub-notify/internal/queue"
	"bookclub-notify/pkg/log"
)

type fakeBroadcaster struct {
	mu       sync.Mutex
	calls    [][]string
	panicsOn int // 1-based call index that panics; 0 disables
}

func (f *fakeBroadcaster) SendToMany(recipientIDs []string, _ model.LiveEvent) {
	f.mu.Lock()
	f.calls = append(f.calls, recipientIDs)
	n := len(f.calls)
	f.mu.Unlock()
	if f.panicsOn != 0 && n == f.panicsOn {
		panic("registry blew up")
	}
}

func (f *fakeBroadcaster) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakePushGateway struct {
	mu    sync.Mutex
	calls []string // titles, in order
	err   error
	delay time.Duration
}

func (f *fakePushGateway) SendToRecipients(_ context.Context, _ []string, title, _, _ string) error {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	f.calls = append(f.calls, title)
	f.mu.Unlock()
	return f.err
}

func (f *fakePushGateway) titles() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func deliveryTask(title string) *model.DeliveryTask {
	return &model.DeliveryTask{
		Recipients: []string{"member-1"},
		Title:      title,
		Body:       "body",
		Live:       model.LiveEvent{TypeCode: model.TypeReportApproved, Title: title},
	}
}

func TestConsumer_ProcessesTasksInOrder(t *testing.T) {
	q := queue.New(10, log.NewNoop(), queue.Hooks{})
	live := &fakeBroadcaster{}
	push := &fakePushGateway{}
	processed := make(chan struct{}, 10)
	c := NewConsumer(q, live, push, log.NewNoop(), Hooks{
		OnProcessed: func() { processed <- struct{}{} },
	})

	for _, title := range []string{"first", "second", "third"} {
		q.Enqueue(deliveryTask(title))
	}

	ctx, cancel := context.WithCancel(context.Background())
	go c.Run(ctx)

	for i := 0; i < 3; i++ {
		select {
		case <-processed:
		case <-time.After(2 * time.Second):
			t.Fatalf("task %d not processed", i)
		}
	}
	cancel()
	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop on context cancellation")
	}

	want := []string{"first", "second", "third"}
	got := push.titles()
	if len(got) != len(want) {
		t.Fatalf("pushed %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("push %d = %q, want %q", i, got[i], want[i])
		}
	}
	if live.callCount() != 3 {
		t.Errorf("live broadcasts = %d, want 3", live.callCount())
	}
}

func TestConsumer_LivePanicDoesNotSkipPush(t *testing.T) {
	q := queue.New(10, log.NewNoop(), queue.Hooks{})
	live := &fakeBroadcaster{panicsOn: 1}
	push := &fakePushGateway{}
	c := NewConsumer(q, live, push, log.NewNoop(), Hooks{})

	c.Deliver(context.Background(), deliveryTask("survives"))

	if got := push.titles(); len(got) != 1 || got[0] != "survives" {
		t.Errorf("push calls = %v, want [survives]", got)
	}
}

func TestConsumer_PushErrorDoesNotKillWorker(t *testing.T) {
	q := queue.New(10, log.NewNoop(), queue.Hooks{})
	live := &fakeBroadcaster{}
	push := &fakePushGateway{err: errors.New("fcm unavailable")}
	processed := make(chan struct{}, 10)
	c := NewConsumer(q, live, push, log.NewNoop(), Hooks{
		OnProcessed: func() { processed <- struct{}{} },
	})

	q.Enqueue(deliveryTask("fails"))
	q.Enqueue(deliveryTask("still runs"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	for i := 0; i < 2; i++ {
		select {
		case <-processed:
		case <-time.After(2 * time.Second):
			t.Fatalf("task %d not processed after a push error", i)
		}
	}
}

func TestConsumer_StopsWhenQueueCloses(t *testing.T) {
	q := queue.New(10, log.NewNoop(), queue.Hooks{})
	c := NewConsumer(q, &fakeBroadcaster{}, &fakePushGateway{}, log.NewNoop(), Hooks{})

	go c.Run(context.Background())
	q.Close()

	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop when the queue closed")
	}
}
