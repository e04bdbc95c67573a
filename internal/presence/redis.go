package presence

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "user_online:"

type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedis(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) MarkOnline(ctx context.Context, userID string) error {
	if err := s.client.Set(ctx, keyPrefix+userID, "true", s.ttl).Err(); err != nil {
		return fmt.Errorf("mark online %s: %w", userID, err)
	}
	return nil
}

func (s *RedisStore) MarkOffline(ctx context.Context, userID string) error {
	if err := s.client.Del(ctx, keyPrefix+userID).Err(); err != nil {
		return fmt.Errorf("mark offline %s: %w", userID, err)
	}
	return nil
}

func (s *RedisStore) IsOnline(ctx context.Context, userID string) (bool, error) {
	n, err := s.client.Exists(ctx, keyPrefix+userID).Result()
	if err != nil {
		return false, fmt.Errorf("presence lookup %s: %w", userID, err)
	}
	return n > 0, nil
}
