package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/deskops/helpdesk/internal/domain"
)

const keyPrefix = "session:"

// RedisStore keeps sessions as hashes that expire with the session.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore wraps a connected client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Create(ctx context.Context, sess domain.Session) error {
	ttl := time.Until(sess.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("session %s already expired", sess.ID)
	}
	key := keyPrefix + sess.ID
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, map[string]any{
			"user_id":    sess.UserID,
			"role":       string(sess.Role),
			"expires_at": sess.ExpiresAt.UTC().Format(time.RFC3339Nano),
		})
		pipe.Expire(ctx, key, ttl)
		return nil
	})
	return err
}

func (s *RedisStore) Get(ctx context.Context, id string) (*domain.Session, error) {
	values, err := s.client.HGetAll(ctx, keyPrefix+id).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if len(values) == 0 || values["user_id"] == "" {
		return nil, ErrNotFound
	}
	expiresAt, err := time.Parse(time.RFC3339Nano, values["expires_at"])
	if err != nil {
		return nil, fmt.Errorf("session %s: malformed expiry: %w", id, err)
	}
	return &domain.Session{
		ID:        id,
		UserID:    values["user_id"],
		Role:      domain.Role(values["role"]),
		ExpiresAt: expiresAt,
	}, nil
}

func (s *RedisStore) Revoke(ctx context.Context, id string) error {
	return s.client.Del(ctx, keyPrefix+id).Err()
}
