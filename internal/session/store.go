// Package session tracks which issued tokens are still live. A token is accepted
// only while its session id is registered; logout and account removal unregister it.
package session

import (
	"context"
	"time"

	"github.com/aryan0dhankhar/landledger/pkg/cache"
)

// Store registers live sessions keyed by user and session id
type Store interface {
	Put(ctx context.Context, userID, sessionID string, ttl time.Duration) error
	Exists(ctx context.Context, userID, sessionID string) (bool, error)
	Delete(ctx context.Context, userID, sessionID string) error
	// DeleteUser removes every session of the user and reports how many there were
	DeleteUser(ctx context.Context, userID string) (int, error)
}

func key(userID, sessionID string) string {
	return userID + ":" + sessionID
}

// MemoryStore keeps sessions in a TTL cache
type MemoryStore struct {
	cache *cache.Cache[struct{}]
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{cache: cache.New[struct{}]()}
}

func (s *MemoryStore) Put(_ context.Context, userID, sessionID string, ttl time.Duration) error {
	s.cache.Set(key(userID, sessionID), struct{}{}, ttl)
	return nil
}

func (s *MemoryStore) Exists(_ context.Context, userID, sessionID string) (bool, error) {
	_, ok := s.cache.Get(key(userID, sessionID))
	return ok, nil
}

func (s *MemoryStore) Delete(_ context.Context, userID, sessionID string) error {
	s.cache.Delete(key(userID, sessionID))
	return nil
}

func (s *MemoryStore) DeleteUser(_ context.Context, userID string) (int, error) {
	return s.cache.Invalidate(userID + ":"), nil
}

// Prune drops expired sessions; called by the janitor
func (s *MemoryStore) Prune(context.Context) (int, error) {
	return s.cache.PruneExpired(), nil
}
