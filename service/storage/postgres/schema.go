package postgres

import (
	"context"
	"fmt"
)

// users 表由资料服务维护，这里只补在线状态两列
var migrations = []string{
	`ALTER TABLE users
		ADD COLUMN IF NOT EXISTS is_online BOOLEAN DEFAULT FALSE,
		ADD COLUMN IF NOT EXISTS last_online TIMESTAMPTZ`,
	`CREATE TABLE IF NOT EXISTS notifications (
		id         BIGSERIAL PRIMARY KEY,
		user_id    BIGINT      NOT NULL,
		type       TEXT        NOT NULL,
		message    TEXT        NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS notifications_user_type_idx ON notifications (user_id, type)`,
	`CREATE TABLE IF NOT EXISTS messages (
		id          BIGSERIAL PRIMARY KEY,
		sender_id   BIGINT      NOT NULL,
		receiver_id BIGINT      NOT NULL,
		message     TEXT        NOT NULL,
		timestamp   TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS messages_pair_ts_idx ON messages (sender_id, receiver_id, timestamp DESC)`,
}

// Migrate 幂等；可重复执行
func Migrate(ctx context.Context, q Querier) error {
	for i, stmt := range migrations {
		if _, err := q.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres: migration %d: %w", i, err)
		}
	}
	return nil
}
