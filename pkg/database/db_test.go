package database

import (
	"context"
	"database/sql"
	"errors"
	"io/fs"
	"log/slog"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConnectionPoolRequiresURL(t *testing.T) {
	_, err := NewConnectionPool(context.Background(), &Config{}, nil)
	assert.EqualError(t, err, "database url is empty")
}

func TestMigrate(t *testing.T) {
	orig := runMigrations
	t.Cleanup(func() { runMigrations = orig })

	migrations := fstest.MapFS{"00001_init.sql": &fstest.MapFile{Data: []byte("-- +goose Up\n")}}
	pool := &ConnectionPool{logger: slog.Default()}

	var seen fs.FS
	runMigrations = func(_ context.Context, _ *sql.DB, m fs.FS) (int, error) {
		seen = m
		return 1, nil
	}
	require.NoError(t, pool.Migrate(context.Background(), migrations))
	assert.Equal(t, fs.FS(migrations), seen)

	boom := errors.New("boom")
	runMigrations = func(context.Context, *sql.DB, fs.FS) (int, error) { return 0, boom }
	err := pool.Migrate(context.Background(), migrations)
	assert.ErrorIs(t, err, boom)
}

func TestCloseWithoutDB(t *testing.T) {
	assert.NoError(t, (&ConnectionPool{}).Close())
}
