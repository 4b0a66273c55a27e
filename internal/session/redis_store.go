package session

import (
	"context"
	"fmt"
	"time"
)

// redisClient is the part of the Redis client the session store needs
type redisClient interface {
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
	DeletePrefix(ctx context.Context, prefix string) (int, error)
}

const redisKeyPrefix = "session:"

// RedisStore keeps sessions as expiring keys session:<user>:<session>
type RedisStore struct {
	client redisClient
}

func NewRedisStore(client redisClient) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Put(ctx context.Context, userID, sessionID string, ttl time.Duration) error {
	if err := s.client.Set(ctx, redisKeyPrefix+key(userID, sessionID), "1", ttl); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	return nil
}

func (s *RedisStore) Exists(ctx context.Context, userID, sessionID string) (bool, error) {
	ok, err := s.client.Exists(ctx, redisKeyPrefix+key(userID, sessionID))
	if err != nil {
		return false, fmt.Errorf("failed to look up session: %w", err)
	}
	return ok, nil
}

func (s *RedisStore) Delete(ctx context.Context, userID, sessionID string) error {
	if err := s.client.Delete(ctx, redisKeyPrefix+key(userID, sessionID)); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

func (s *RedisStore) DeleteUser(ctx context.Context, userID string) (int, error) {
	n, err := s.client.DeletePrefix(ctx, redisKeyPrefix+userID+":")
	if err != nil {
		return n, fmt.Errorf("failed to delete user sessions: %w", err)
	}
	return n, nil
}
