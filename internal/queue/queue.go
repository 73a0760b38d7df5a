package queue

import (
	"context"
	"sync"

	"bookclub-notify/internal/model"
	"bookclub-notify/pkg/log"
)

// Hooks carries optional metric callbacks. Nil funcs are replaced with no-ops
// so the queue stays metrics-agnostic.
type Hooks struct {
	OnDropped func()
	OnDepth   func(depth int)
}

func (h *Hooks) fill() {
	if h.OnDropped == nil {
		h.OnDropped = func() {}
	}
	if h.OnDepth == nil {
		h.OnDepth = func(int) {}
	}
}

// TaskQueue is a bounded FIFO channel of delivery tasks. Enqueue never blocks
// the caller: when the queue is full the task is dropped and logged. Dequeue
// blocks the single consumer until a task arrives, the queue is closed, or
// the context is cancelled.
type TaskQueue struct {
	tasks chan *model.DeliveryTask
	l     log.Logger
	hooks Hooks

	mu     sync.RWMutex
	closed bool
}

// New creates a TaskQueue with the given capacity.
func New(capacity int, l log.Logger, hooks Hooks) *TaskQueue {
	hooks.fill()
	return &TaskQueue{
		tasks: make(chan *model.DeliveryTask, capacity),
		l:     l,
		hooks: hooks,
	}
}

// Enqueue offers a task to the queue without blocking. A full queue drops the
// task; the durable notification row already exists, so the loss is logged
// and accepted. The caller never sees an error.
func (q *TaskQueue) Enqueue(task *model.DeliveryTask) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		q.l.Warnf(context.Background(), "internal.queue.Enqueue: queue closed, dropping task for %d recipient(s)", len(task.Recipients))
		q.hooks.OnDropped()
		return false
	}

	select {
	case q.tasks <- task:
		q.hooks.OnDepth(len(q.tasks))
		return true
	default:
		q.l.Warnf(context.Background(), "internal.queue.Enqueue: queue full, dropping task for %d recipient(s), type=%s", len(task.Recipients), task.Live.TypeCode)
		q.hooks.OnDropped()
		return false
	}
}

// Dequeue blocks until a task is available. The second return value is false
// when the queue has been closed and emptied, or the context was cancelled.
func (q *TaskQueue) Dequeue(ctx context.Context) (*model.DeliveryTask, bool) {
	select {
	case <-ctx.Done():
		return nil, false
	case task, ok := <-q.tasks:
		if !ok {
			return nil, false
		}
		q.hooks.OnDepth(len(q.tasks))
		return task, true
	}
}

// Close stops intake. Tasks already queued remain available to Dequeue and
// Drain. Idempotent.
func (q *TaskQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.tasks)
}

// Drain removes every task still queued and returns them in FIFO order.
// Must be called after Close, once the consumer has stopped dequeuing.
func (q *TaskQueue) Drain() []*model.DeliveryTask {
	var drained []*model.DeliveryTask
	for task := range q.tasks {
		drained = append(drained, task)
	}
	q.hooks.OnDepth(0)
	return drained
}

// Len reports the number of tasks currently queued.
func (q *TaskQueue) Len() int {
	return len(q.tasks)
}
