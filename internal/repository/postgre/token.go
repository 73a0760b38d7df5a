package postgre

import (
	"context"

	"github.com/lib/pq"

	"bookclub-notify/internal/model"
)

func (r *implDeviceToken) ResolveEnabled(ctx context.Context, recipientIDs []string) ([]model.DeviceToken, error) {
	if len(recipientIDs) == 0 {
		return nil, nil
	}

	const q = `
		SELECT id, recipient_id, token, platform, enabled, created_at
		FROM device_tokens
		WHERE recipient_id = ANY($1) AND enabled = true`
	rows, err := r.db.QueryContext(ctx, q, pq.Array(recipientIDs))
	if err != nil {
		r.l.Errorf(ctx, "internal.repository.postgre.ResolveEnabled: %v", err)
		return nil, err
	}
	defer rows.Close()

	var res []model.DeviceToken
	for rows.Next() {
		var t model.DeviceToken
		var platform string
		if err := rows.Scan(&t.ID, &t.RecipientID, &t.Token, &platform, &t.Enabled, &t.CreatedAt); err != nil {
			r.l.Errorf(ctx, "internal.repository.postgre.ResolveEnabled.Scan: %v", err)
			return nil, err
		}
		t.Platform = model.Platform(platform)
		res = append(res, t)
	}
	if err := rows.Err(); err != nil {
		r.l.Errorf(ctx, "internal.repository.postgre.ResolveEnabled.Err: %v", err)
		return nil, err
	}

	return res, nil
}

// Delete removes a device token. Deleting an absent token is a no-op; the
// cleanup path may race with the client re-registering.
func (r *implDeviceToken) Delete(ctx context.Context, token string) error {
	const q = `DELETE FROM device_tokens WHERE token = $1`
	if _, err := r.db.ExecContext(ctx, q, token); err != nil {
		r.l.Errorf(ctx, "internal.repository.postgre.Delete: %v", err)
		return err
	}
	return nil
}
