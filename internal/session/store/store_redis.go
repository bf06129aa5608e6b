package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"juicyid/pkg/platform/sentinel"
)

const walletSessionKeyPrefix = "siwe:token:"

// RedisStore keeps wallet sessions in Redis with a TTL matching their
// expiry, so expired sessions disappear without a sweeper.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Save(ctx context.Context, token, walletAddress string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return sentinel.ErrExpired
	}
	key := walletSessionKeyPrefix + token
	if err := s.client.Set(ctx, key, walletAddress, ttl).Err(); err != nil {
		return fmt.Errorf("save wallet session: %w", err)
	}
	return nil
}

func (s *RedisStore) FindByToken(ctx context.Context, token string) (string, error) {
	key := walletSessionKeyPrefix + token
	addr, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			// Redis evicts on expiry, so missing covers expired too.
			return "", sentinel.ErrNotFound
		}
		return "", fmt.Errorf("find wallet session: %w", err)
	}
	return addr, nil
}

func (s *RedisStore) Delete(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, walletSessionKeyPrefix+token).Err(); err != nil {
		return fmt.Errorf("delete wallet session: %w", err)
	}
	return nil
}
