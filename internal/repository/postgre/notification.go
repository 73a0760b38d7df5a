package postgre

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"bookclub-notify/internal/model"
	"bookclub-notify/internal/repository"
)

func (r *implNotification) Create(ctx context.Context, n model.Notification) (model.Notification, error) {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}

	const q = `
		INSERT INTO notifications (id, recipient_id, type_code, title, message, link_path, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.db.ExecContext(ctx, q,
		n.ID, n.RecipientID, string(n.TypeCode), n.Title, n.Message, n.LinkPath, n.CreatedAt,
	)
	if err != nil {
		r.l.Errorf(ctx, "internal.repository.postgre.Create: %v", err)
		return model.Notification{}, err
	}

	return n, nil
}

func (r *implNotification) ListByRecipient(ctx context.Context, recipientID string, limit int) ([]model.Notification, error) {
	if limit <= 0 {
		limit = 50
	}

	const q = `
		SELECT id, recipient_id, type_code, title, message, link_path, read_at, created_at
		FROM notifications
		WHERE recipient_id = $1
		ORDER BY created_at DESC
		LIMIT $2`
	rows, err := r.db.QueryContext(ctx, q, recipientID, limit)
	if err != nil {
		r.l.Errorf(ctx, "internal.repository.postgre.ListByRecipient: %v", err)
		return nil, err
	}
	defer rows.Close()

	var res []model.Notification
	for rows.Next() {
		var n model.Notification
		var typeCode string
		var readAt sql.NullTime
		if err := rows.Scan(&n.ID, &n.RecipientID, &typeCode, &n.Title, &n.Message, &n.LinkPath, &readAt, &n.CreatedAt); err != nil {
			r.l.Errorf(ctx, "internal.repository.postgre.ListByRecipient.Scan: %v", err)
			return nil, err
		}
		n.TypeCode = model.TypeCode(typeCode)
		if readAt.Valid {
			t := readAt.Time
			n.ReadAt = &t
		}
		res = append(res, n)
	}
	if err := rows.Err(); err != nil {
		r.l.Errorf(ctx, "internal.repository.postgre.ListByRecipient.Err: %v", err)
		return nil, err
	}

	return res, nil
}

func (r *implNotification) MarkRead(ctx context.Context, id string) error {
	const q = `UPDATE notifications SET read_at = NOW() WHERE id = $1 AND read_at IS NULL`
	res, err := r.db.ExecContext(ctx, q, id)
	if err != nil {
		r.l.Errorf(ctx, "internal.repository.postgre.MarkRead: %v", err)
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		r.l.Errorf(ctx, "internal.repository.postgre.MarkRead.RowsAffected: %v", err)
		return err
	}
	if rows == 0 {
		return repository.ErrNotFound
	}
	return nil
}
