package delivery

import (
	"context"

	"bookclub-notify/internal/model"
	"bookclub-notify/internal/queue"
	"bookclub-notify/pkg/log"
)

// Broadcaster is the live-connection channel boundary.
type Broadcaster interface {
	SendToMany(recipientIDs []string, ev model.LiveEvent)
}

// PushGateway is the push-notification channel boundary.
type PushGateway interface {
	SendToRecipients(ctx context.Context, recipientIDs []string, title, body, linkPath string) error
}

// Hooks carries optional metric callbacks.
type Hooks struct {
	OnProcessed func()
}

func (h *Hooks) fill() {
	if h.OnProcessed == nil {
		h.OnProcessed = func() {}
	}
}

// Consumer is the single dedicated worker that drains the delivery queue and
// drives both channels. Channel failures are isolated: a live-broadcast
// failure never skips the push step and a push failure never rolls anything
// back. Partial delivery is an accepted outcome and is never retried.
type Consumer struct {
	q     *queue.TaskQueue
	live  Broadcaster
	push  PushGateway
	l     log.Logger
	hooks Hooks

	done chan struct{}
}

// NewConsumer creates a Consumer.
func NewConsumer(q *queue.TaskQueue, live Broadcaster, push PushGateway, l log.Logger, hooks Hooks) *Consumer {
	hooks.fill()
	return &Consumer{
		q:     q,
		live:  live,
		push:  push,
		l:     l,
		hooks: hooks,
		done:  make(chan struct{}),
	}
}

// Run processes tasks until ctx is cancelled or the queue is closed.
// Started once at process startup.
func (c *Consumer) Run(ctx context.Context) {
	defer close(c.done)

	c.l.Info(ctx, "internal.delivery.Consumer: worker started")
	for {
		task, ok := c.q.Dequeue(ctx)
		if !ok {
			c.l.Info(context.Background(), "internal.delivery.Consumer: worker stopping")
			return
		}
		c.Deliver(ctx, task)
	}
}

// Done is closed when the worker loop has exited.
func (c *Consumer) Done() <-chan struct{} { return c.done }

// Deliver executes both channels for one task, sequentially and
// independently. Also used by the shutdown drain path.
func (c *Consumer) Deliver(ctx context.Context, task *model.DeliveryTask) {
	c.deliverLive(ctx, task)
	c.deliverPush(ctx, task)
	c.hooks.OnProcessed()
}

// deliverLive broadcasts the live event. A panic out of the registry is
// contained here so it cannot abort the push step or kill the worker.
func (c *Consumer) deliverLive(ctx context.Context, task *model.DeliveryTask) {
	defer func() {
		if rec := recover(); rec != nil {
			c.l.Errorf(ctx, "internal.delivery.deliverLive: recovered: %v", rec)
		}
	}()
	c.live.SendToMany(task.Recipients, task.Live)
}

// deliverPush hands the task to the push gateway. Errors are terminal here;
// they are logged and never propagate to the producer.
func (c *Consumer) deliverPush(ctx context.Context, task *model.DeliveryTask) {
	defer func() {
		if rec := recover(); rec != nil {
			c.l.Errorf(ctx, "internal.delivery.deliverPush: recovered: %v", rec)
		}
	}()
	if err := c.push.SendToRecipients(ctx, task.Recipients, task.Title, task.Body, task.LinkPath); err != nil {
		c.l.Errorf(ctx, "internal.delivery.deliverPush: push for %d recipient(s) failed: %v", len(task.Recipients), err)
	}
}
