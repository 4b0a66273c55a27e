//go:build integration

package session

import (
	"testing"

	"github.com/aryan0dhankhar/landledger/internal/testutil/containers"
)

func testRedisURL(t *testing.T) string {
	return containers.RedisURL(t)
}
