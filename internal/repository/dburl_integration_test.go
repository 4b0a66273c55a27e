//go:build integration

package repository

import (
	"testing"

	"github.com/aryan0dhankhar/landledger/internal/testutil/containers"
)

func testDatabaseURL(t *testing.T) string {
	return containers.PostgresURL(t)
}
