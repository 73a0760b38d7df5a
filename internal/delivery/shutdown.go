package delivery

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"bookclub-notify/internal/queue"
	"bookclub-notify/pkg/log"
)

// Coordinator states.
const (
	StateRunning int32 = iota
	StateStopping
	StateDrained
)

// Alerter posts operational alerts. Optional.
type Alerter interface {
	Alert(ctx context.Context, title, description string) error
}

// Hooks carried by the coordinator.
type CoordinatorHooks struct {
	OnAbandoned func(count int)
}

func (h *CoordinatorHooks) fill() {
	if h.OnAbandoned == nil {
		h.OnAbandoned = func(int) {}
	}
}

// Coordinator owns the consumer lifecycle: it starts the worker, and on
// shutdown stops new dequeues, drains the queue, and attempts best-effort
// delivery of the drained backlog within a fixed time budget. Tasks that
// miss the deadline are counted and abandoned — the durable records remain
// queryable.
type Coordinator struct {
	q        *queue.TaskQueue
	consumer *Consumer
	l        log.Logger
	alerter  Alerter
	hooks    CoordinatorHooks

	drainTimeout time.Duration

	state  atomic.Int32
	cancel context.CancelFunc
}

// NewCoordinator creates a Coordinator. alerter may be nil.
func NewCoordinator(q *queue.TaskQueue, consumer *Consumer, drainTimeout time.Duration, l log.Logger, alerter Alerter, hooks CoordinatorHooks) *Coordinator {
	hooks.fill()
	if drainTimeout <= 0 {
		drainTimeout = 30 * time.Second
	}
	return &Coordinator{
		q:            q,
		consumer:     consumer,
		l:            l,
		alerter:      alerter,
		hooks:        hooks,
		drainTimeout: drainTimeout,
	}
}

// Start launches the consumer worker.
func (c *Coordinator) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	go c.consumer.Run(ctx)
}

// State reports the coordinator's current state.
func (c *Coordinator) State() int32 { return c.state.Load() }

// Shutdown runs the Running → Stopping → Drained sequence. It interrupts the
// consumer's blocking wait, drains every queued task, and delivers the
// backlog until the drain deadline passes. Never returns an error out of the
// shutdown sequence; every per-task attempt is independently contained.
func (c *Coordinator) Shutdown(ctx context.Context) {
	if !c.state.CompareAndSwap(StateRunning, StateStopping) {
		return
	}

	// Interrupt the consumer's blocking dequeue and wait for the loop to exit.
	if c.cancel != nil {
		c.cancel()
	}
	select {
	case <-c.consumer.Done():
	case <-ctx.Done():
		c.l.Warn(ctx, "internal.delivery.Coordinator.Shutdown: consumer did not stop before shutdown context expired")
	}

	c.q.Close()
	backlog := c.q.Drain()
	if len(backlog) == 0 {
		c.state.Store(StateDrained)
		c.l.Info(ctx, "internal.delivery.Coordinator.Shutdown: queue empty, nothing to drain")
		return
	}

	c.l.Infof(ctx, "internal.delivery.Coordinator.Shutdown: draining %d task(s), budget %s", len(backlog), c.drainTimeout)

	deadline := time.Now().Add(c.drainTimeout)
	delivered := 0
	for i, task := range backlog {
		if time.Now().After(deadline) {
			abandoned := len(backlog) - i
			c.l.Errorf(ctx, "internal.delivery.Coordinator.Shutdown: drain deadline exceeded, abandoning %d task(s)", abandoned)
			c.hooks.OnAbandoned(abandoned)
			c.alertAbandoned(ctx, abandoned)
			break
		}
		c.consumer.Deliver(ctx, task)
		delivered++
	}

	c.state.Store(StateDrained)
	c.l.Infof(ctx, "internal.delivery.Coordinator.Shutdown: drained, %d/%d task(s) delivered", delivered, len(backlog))
}

func (c *Coordinator) alertAbandoned(ctx context.Context, count int) {
	if c.alerter == nil {
		return
	}
	desc := fmt.Sprintf("%d queued notification task(s) were abandoned undelivered at shutdown.", count)
	if err := c.alerter.Alert(ctx, "Delivery backlog abandoned", desc); err != nil {
		c.l.Warnf(ctx, "internal.delivery.Coordinator.alertAbandoned: %v", err)
	}
}
