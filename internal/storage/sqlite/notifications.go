package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/yegors/co-efb/internal/notify"
	"github.com/yegors/co-efb/pkg/logger"
)

const (
	// DefaultListLimit caps listings when no limit is given
	DefaultListLimit = 50

	// Fixed width so created_at sorts as text
	timeLayout = "2006-01-02T15:04:05.000Z07:00"
)

// SaveNotification stores a notification and returns its id
func (s *Storage) SaveNotification(ctx context.Context, n *notify.Notification) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO notifications (kind, callsign, title, body, created_at, is_read)
		VALUES (?, ?, ?, ?, ?, ?)`,
		n.Kind,
		n.Callsign,
		n.Title,
		n.Body,
		n.CreatedAt.UTC().Format(timeLayout),
		n.Read,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert notification: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID: %w", err)
	}

	s.logger.Debug("Stored notification",
		logger.Int64("id", id),
		logger.String("kind", n.Kind))
	return id, nil
}

// ListNotifications returns the newest notifications first
func (s *Storage) ListNotifications(ctx context.Context, limit int, unreadOnly bool) ([]*notify.Notification, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	query := `SELECT id, kind, callsign, title, body, created_at, is_read FROM notifications`
	if unreadOnly {
		query += ` WHERE is_read = 0`
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}
	defer rows.Close()

	records := []*notify.Notification{}
	for rows.Next() {
		var n notify.Notification
		var createdAt string
		var callsign sql.NullString

		if err := rows.Scan(&n.ID, &n.Kind, &callsign, &n.Title, &n.Body, &createdAt, &n.Read); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}

		n.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse created_at: %w", err)
		}
		if callsign.Valid {
			n.Callsign = callsign.String
		}

		records = append(records, &n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate notifications: %w", err)
	}

	return records, nil
}

// MarkNotificationRead flags a notification as read
func (s *Storage) MarkNotificationRead(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `UPDATE notifications SET is_read = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("notification %d: %w", id, notify.ErrNotFound)
	}
	return nil
}
