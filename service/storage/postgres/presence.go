package postgres

import (
	"context"
	"fmt"
	"time"

	user "Matcha/module/user/model"
)

type PresenceStore struct {
	q Querier
}

func NewPresenceStore(q Querier) *PresenceStore {
	return &PresenceStore{q: q}
}

const sqlSetPresence = `UPDATE users SET is_online = $2, last_online = $3 WHERE id = $1`

func (s *PresenceStore) SetPresence(ctx context.Context, id user.UserID, online bool, at time.Time) error {
	if _, err := s.q.Exec(ctx, sqlSetPresence, int64(id), online, at); err != nil {
		return fmt.Errorf("postgres: set presence user=%d: %w", id, err)
	}
	return nil
}

const sqlGetPresence = `SELECT id, COALESCE(is_online, FALSE), last_online FROM users WHERE id = ANY($1)`

// Presence 只返回存在的用户；调用方把缺失的当作离线
func (s *PresenceStore) Presence(ctx context.Context, ids []user.UserID) (map[user.UserID]user.PresenceRecord, error) {
	out := make(map[user.UserID]user.PresenceRecord, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	raw := make([]int64, len(ids))
	for i, id := range ids {
		raw[i] = int64(id)
	}

	rows, err := s.q.Query(ctx, sqlGetPresence, raw)
	if err != nil {
		return nil, fmt.Errorf("postgres: query presence: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id  int64
			rec user.PresenceRecord
		)
		if err := rows.Scan(&id, &rec.IsOnline, &rec.LastOnline); err != nil {
			return nil, fmt.Errorf("postgres: scan presence: %w", err)
		}
		rec.UserID = user.UserID(id)
		out[rec.UserID] = rec
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate presence: %w", err)
	}
	return out, nil
}

const sqlReapPresence = `UPDATE users SET is_online = FALSE WHERE is_online AND (last_online IS NULL OR last_online < $1)`

// MarkStaleOffline 把 last_online 早于 before 的在线用户置为离线
func (s *PresenceStore) MarkStaleOffline(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.q.Exec(ctx, sqlReapPresence, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: reap presence: %w", err)
	}
	return tag.RowsAffected(), nil
}
