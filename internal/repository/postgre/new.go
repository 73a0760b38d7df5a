package postgre

import (
	"database/sql"

	"bookclub-notify/internal/repository"
	"bookclub-notify/pkg/log"
)

type implNotification struct {
	l  log.Logger
	db *sql.DB
}

type implDeviceToken struct {
	l  log.Logger
	db *sql.DB
}

// NewNotification creates a PostgreSQL-backed NotificationRepository.
func NewNotification(l log.Logger, db *sql.DB) repository.NotificationRepository {
	return &implNotification{l: l, db: db}
}

// NewDeviceToken creates a PostgreSQL-backed DeviceTokenRepository.
func NewDeviceToken(l log.Logger, db *sql.DB) repository.DeviceTokenRepository {
	return &implDeviceToken{l: l, db: db}
}
