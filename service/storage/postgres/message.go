package postgres

import (
	"context"
	"fmt"

	chat "Matcha/module/chat/model"
	user "Matcha/module/user/model"
)

type MessageStore struct {
	q Querier
}

func NewMessageStore(q Querier) *MessageStore {
	return &MessageStore{q: q}
}

const sqlInsertMessage = `INSERT INTO messages (sender_id, receiver_id, message, timestamp) VALUES ($1, $2, $3, $4) RETURNING id`

func (s *MessageStore) Save(ctx context.Context, m *chat.Message) error {
	err := s.q.QueryRow(ctx, sqlInsertMessage, int64(m.SenderID), int64(m.ReceiverID), m.Content, m.Timestamp).Scan(&m.ID)
	if err != nil {
		return fmt.Errorf("postgres: insert message %d->%d: %w", m.SenderID, m.ReceiverID, err)
	}
	return nil
}

const sqlConversation = `
SELECT id, sender_id, receiver_id, message, timestamp FROM messages
WHERE (sender_id = $1 AND receiver_id = $2) OR (sender_id = $2 AND receiver_id = $1)
ORDER BY timestamp DESC, id DESC
LIMIT $3`

// Conversation a 与 b 之间最近 limit 条，新的在前
func (s *MessageStore) Conversation(ctx context.Context, a, b user.UserID, limit int) ([]chat.Message, error) {
	rows, err := s.q.Query(ctx, sqlConversation, int64(a), int64(b), limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: query conversation: %w", err)
	}
	defer rows.Close()

	out := make([]chat.Message, 0, limit)
	for rows.Next() {
		var (
			m        chat.Message
			from, to int64
		)
		if err := rows.Scan(&m.ID, &from, &to, &m.Content, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("postgres: scan message: %w", err)
		}
		m.SenderID, m.ReceiverID = user.UserID(from), user.UserID(to)
		out = append(out, m)
	}
	return out, rows.Err()
}
