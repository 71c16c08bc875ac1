package postgres

import (
	"context"
	"fmt"

	note "Matcha/module/notification/model"
	user "Matcha/module/user/model"
)

type NotificationStore struct {
	q Querier
}

func NewNotificationStore(q Querier) *NotificationStore {
	return &NotificationStore{q: q}
}

const sqlInsertNotification = `INSERT INTO notifications (user_id, type, message) VALUES ($1, $2, $3) RETURNING id, created_at`

// Insert 写入后回填 ID / CreatedAt
func (s *NotificationStore) Insert(ctx context.Context, n *note.Notification) error {
	err := s.q.QueryRow(ctx, sqlInsertNotification, int64(n.UserID), n.Type, n.Message).Scan(&n.ID, &n.CreatedAt)
	if err != nil {
		return fmt.Errorf("postgres: insert notification user=%d: %w", n.UserID, err)
	}
	return nil
}

const sqlListNotifications = `SELECT id, type, message, created_at FROM notifications WHERE user_id = $1 ORDER BY created_at DESC, id DESC`

func (s *NotificationStore) ListByUser(ctx context.Context, id user.UserID) ([]note.Notification, error) {
	rows, err := s.q.Query(ctx, sqlListNotifications, int64(id))
	if err != nil {
		return nil, fmt.Errorf("postgres: list notifications: %w", err)
	}
	defer rows.Close()

	out := make([]note.Notification, 0)
	for rows.Next() {
		n := note.Notification{UserID: id}
		if err := rows.Scan(&n.ID, &n.Type, &n.Message, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan notification: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

const sqlDeleteNotifications = `DELETE FROM notifications WHERE user_id = $1 AND type = $2`

func (s *NotificationStore) DeleteByType(ctx context.Context, id user.UserID, typ string) (int64, error) {
	tag, err := s.q.Exec(ctx, sqlDeleteNotifications, int64(id), typ)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete notifications: %w", err)
	}
	return tag.RowsAffected(), nil
}
