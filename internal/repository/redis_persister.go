package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/aryan0dhankhar/landledger/internal/observability/metrics"
	"github.com/aryan0dhankhar/landledger/internal/reliability/circuitbreaker"
)

// kvStore is the slice of the Redis client the persister uses
type kvStore interface {
	SetMany(ctx context.Context, values map[string]string) error
	GetMany(ctx context.Context, keys ...string) ([]string, []bool, error)
}

// RedisPersister stores the snapshot as three JSON blobs under the keys
// <prefix>users, <prefix>lands and <prefix>transfers.
type RedisPersister struct {
	client  kvStore
	prefix  string
	breaker *circuitbreaker.CircuitBreaker
	logger  *slog.Logger
}

// NewRedisPersister creates a Redis-backed snapshot persister
func NewRedisPersister(client kvStore, prefix string, logger *slog.Logger) *RedisPersister {
	if logger == nil {
		logger = slog.Default()
	}

	breaker := circuitbreaker.NewCircuitBreaker(3, 1, 10*time.Second)
	breaker.SetStateChangeCallback(func(from, to circuitbreaker.State) {
		logger.Warn("redis persister circuit changed",
			slog.String("from", from.String()),
			slog.String("to", to.String()),
		)
		metrics.ObserveBreakerState("redis_persister", to.String())
	})

	return &RedisPersister{
		client:  client,
		prefix:  prefix,
		breaker: breaker,
		logger:  logger,
	}
}

func (p *RedisPersister) keys() (string, string, string) {
	return p.prefix + "users", p.prefix + "lands", p.prefix + "transfers"
}

// Load reads the three collections; returns nil when none exist
func (p *RedisPersister) Load(ctx context.Context) (*Snapshot, error) {
	usersKey, landsKey, transfersKey := p.keys()

	values, found, err := p.client.GetMany(ctx, usersKey, landsKey, transfersKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	if !found[0] && !found[1] && !found[2] {
		return nil, nil
	}

	snap := &Snapshot{}
	targets := []any{&snap.Users, &snap.Lands, &snap.Transfers}
	for i, target := range targets {
		if !found[i] {
			continue
		}
		if err := json.Unmarshal([]byte(values[i]), target); err != nil {
			return nil, fmt.Errorf("failed to decode snapshot collection %d: %w", i, err)
		}
	}
	return snap, nil
}

// Save writes the three collections atomically
func (p *RedisPersister) Save(ctx context.Context, snapshot *Snapshot) error {
	usersKey, landsKey, transfersKey := p.keys()

	values := make(map[string]string, 3)
	for key, v := range map[string]any{
		usersKey:     snapshot.Users,
		landsKey:     snapshot.Lands,
		transfersKey: snapshot.Transfers,
	} {
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to marshal %s: %w", key, err)
		}
		values[key] = string(data)
	}

	err := p.breaker.Execute(func() error {
		return p.client.SetMany(ctx, values)
	})
	if err != nil {
		return fmt.Errorf("failed to store snapshot: %w", err)
	}

	p.logger.Debug("snapshot saved",
		slog.Int("users", len(snapshot.Users)),
		slog.Int("lands", len(snapshot.Lands)),
		slog.Int("transfers", len(snapshot.Transfers)),
	)
	return nil
}
