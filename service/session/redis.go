package session

import (
	"context"
	"errors"
	"fmt"

	user "Matcha/module/user/model"
	"Matcha/tools/decode"

	"github.com/redis/go-redis/v9"
)

// RedisStore 读取 connect-redis 写入的会话：key = prefix + sid，value = 会话 JSON
type RedisStore struct {
	rdb    redis.UniversalClient
	prefix string
}

func NewRedisStore(rdb redis.UniversalClient, prefix string) *RedisStore {
	return &RedisStore{rdb: rdb, prefix: prefix}
}

func (s *RedisStore) key(sid string) string { return s.prefix + sid }

func (s *RedisStore) Get(ctx context.Context, sid string) (*Session, error) {
	raw, err := s.rdb.Get(ctx, s.key(sid)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("session: redis get: %w", err)
	}
	sess, err := Decode(raw)
	if err != nil {
		return nil, err
	}
	sess.ID = sid
	return sess, nil
}

func (s *RedisStore) Destroy(ctx context.Context, sid string) error {
	if err := s.rdb.Del(ctx, s.key(sid)).Err(); err != nil {
		return fmt.Errorf("session: redis del: %w", err)
	}
	return nil
}

type record struct {
	UserID   int64  `json:"userId"`
	Username string `json:"username"`
}

// Decode 解析会话 JSON；没有 userId 的会话（未登录）按不存在处理
func Decode(raw []byte) (*Session, error) {
	r, err := decode.DecodeJSON[record](raw)
	if err != nil {
		return nil, fmt.Errorf("session: decode: %w", err)
	}
	if r.UserID <= 0 {
		return nil, ErrNotFound
	}
	return &Session{UserID: user.UserID(r.UserID), Username: r.Username}, nil
}
