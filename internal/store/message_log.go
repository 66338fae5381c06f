package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/aaronsb/screentimed/internal/domain"
)

// AppendMessageLog records a dispatched notification. Failures here are
// non-essential per spec §7: the Message Router logs and swallows
// them rather than surfacing them to the kernel.
func (s *Store) AppendMessageLog(ctx context.Context, m domain.MessageLog) (int64, error) {
	var id int64
	err := s.WithTransaction(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO message_log(timestamp, user, intention, template_id, rendered_title, rendered_body, backend, notification_id)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, m.Timestamp, m.User, m.Intention, m.TemplateID, m.RenderedTitle, m.RenderedBody, m.Backend, m.NotificationID)
		if err != nil {
			return fmt.Errorf("append message log: %w", err)
		}
		id, err = res.LastInsertId()
		return err
	})
	return id, err
}

// ListMessageLog returns the most recent dispatched notifications for
// user, newest first, at most limit rows (50 when limit <= 0).
func (s *Store) ListMessageLog(ctx context.Context, user string, limit int) ([]domain.MessageLog, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, timestamp, user, intention, template_id, rendered_title, rendered_body, backend, COALESCE(notification_id, '')
		FROM message_log WHERE user = ? ORDER BY timestamp DESC LIMIT ?
	`, user, limit)
	if err != nil {
		return nil, fmt.Errorf("list message log: %w", err)
	}
	defer rows.Close()

	var out []domain.MessageLog
	for rows.Next() {
		var m domain.MessageLog
		if err := rows.Scan(&m.ID, &m.Timestamp, &m.User, &m.Intention, &m.TemplateID,
			&m.RenderedTitle, &m.RenderedBody, &m.Backend, &m.NotificationID); err != nil {
			return nil, fmt.Errorf("scan message log: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
