package producer

import (
	"context"
	"time"

	"bookclub-notify/internal/model"
	"bookclub-notify/internal/repository"
	"bookclub-notify/pkg/log"
)

// Enqueuer is the delivery queue boundary.
type Enqueuer interface {
	Enqueue(task *model.DeliveryTask) bool
}

// Notifier is the business-facing entry point of the delivery pipeline. It
// persists the durable notification record and then enqueues a delivery task.
// It never blocks on delivery and never surfaces an error to the caller: the
// business transaction that triggered the notification must not fail or slow
// down because of it.
type Notifier struct {
	store repository.NotificationRepository
	queue Enqueuer
	l     log.Logger
}

// New creates a Notifier.
func New(store repository.NotificationRepository, queue Enqueuer, l log.Logger) *Notifier {
	return &Notifier{store: store, queue: queue, l: l}
}

// Notify persists a notification for a single recipient and enqueues its
// delivery task. Persistence is a precondition: if the record cannot be
// committed no task is enqueued, so delivery never outruns durability.
func (n *Notifier) Notify(ctx context.Context, recipientID string, code model.TypeCode, title, body, linkPath string) {
	rec, err := n.store.Create(ctx, model.Notification{
		RecipientID: recipientID,
		TypeCode:    code,
		Title:       title,
		Message:     body,
		LinkPath:    linkPath,
	})
	if err != nil {
		n.l.Errorf(ctx, "internal.producer.Notify: persist for recipient %s failed, delivery skipped: %v", recipientID, err)
		return
	}

	id := rec.ID
	n.queue.Enqueue(&model.DeliveryTask{
		Recipients: []string{recipientID},
		Title:      title,
		Body:       body,
		LinkPath:   linkPath,
		Live: model.LiveEvent{
			NotificationID: &id,
			TypeCode:       code,
			Title:          title,
			Message:        body,
			LinkPath:       linkPath,
			CreatedAt:      rec.CreatedAt,
		},
	})
}

// NotifyMany persists one record per recipient and enqueues a single batch
// task. Recipients whose record failed to commit are excluded from the task;
// the live event carries no notification id since it maps to many rows.
func (n *Notifier) NotifyMany(ctx context.Context, recipientIDs []string, code model.TypeCode, title, body, linkPath string) {
	persisted := make([]string, 0, len(recipientIDs))
	for _, id := range recipientIDs {
		if _, err := n.store.Create(ctx, model.Notification{
			RecipientID: id,
			TypeCode:    code,
			Title:       title,
			Message:     body,
			LinkPath:    linkPath,
		}); err != nil {
			n.l.Errorf(ctx, "internal.producer.NotifyMany: persist for recipient %s failed, recipient excluded: %v", id, err)
			continue
		}
		persisted = append(persisted, id)
	}
	if len(persisted) == 0 {
		return
	}

	n.queue.Enqueue(&model.DeliveryTask{
		Recipients: persisted,
		Title:      title,
		Body:       body,
		LinkPath:   linkPath,
		Live: model.LiveEvent{
			TypeCode:  code,
			Title:     title,
			Message:   body,
			LinkPath:  linkPath,
			CreatedAt: time.Now().UTC(),
		},
	})
}
