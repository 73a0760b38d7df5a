package repository

import (
	"context"
	"errors"

	"bookclub-notify/internal/model"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// NotificationRepository persists durable notification records. A record is
// always committed before its delivery task is enqueued.
type NotificationRepository interface {
	Create(ctx context.Context, n model.Notification) (model.Notification, error)
	ListByRecipient(ctx context.Context, recipientID string, limit int) ([]model.Notification, error)
	MarkRead(ctx context.Context, id string) error
}

// DeviceTokenRepository reads and prunes push destinations.
type DeviceTokenRepository interface {
	ResolveEnabled(ctx context.Context, recipientIDs []string) ([]model.DeviceToken, error)
	Delete(ctx context.Context, token string) error
}
