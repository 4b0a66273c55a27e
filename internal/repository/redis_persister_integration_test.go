//go:build integration

package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aryan0dhankhar/landledger/internal/domain"
	"github.com/aryan0dhankhar/landledger/internal/infrastructure/redis"
	"github.com/aryan0dhankhar/landledger/internal/testutil/containers"
)

func TestMemoryStoreOverRedis(t *testing.T) {
	ctx := context.Background()
	client, err := redis.NewClient(ctx, containers.RedisURL(t))
	require.NoError(t, err)
	defer client.Close()

	store, err := NewMemoryStore(ctx, NewRedisPersister(client, "landledger:", nil), nil)
	require.NoError(t, err)
	require.NoError(t, store.Update(ctx, func(tx domain.Tx) error {
		if err := tx.CreateUser(testUser("u1", "a@example.com")); err != nil {
			return err
		}
		return tx.CreateLand(testLand("l1", "u1"))
	}))

	reopened, err := NewMemoryStore(ctx, NewRedisPersister(client, "landledger:", nil), nil)
	require.NoError(t, err)
	require.NoError(t, reopened.View(ctx, func(tx domain.Tx) error {
		land, err := tx.GetLand("l1")
		require.NoError(t, err)
		assert.Equal(t, "u1", land.OwnerID)
		assert.Equal(t, int64(1), land.Version)
		return nil
	}))
}
