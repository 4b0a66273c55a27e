//go:build !integration

package session

import (
	"os"
	"testing"
)

// testRedisURL points the Redis tests at an existing server, or skips them
func testRedisURL(t *testing.T) string {
	t.Helper()
	url := os.Getenv("LANDLEDGER_TEST_REDIS_URL")
	if url == "" {
		t.Skip("LANDLEDGER_TEST_REDIS_URL not set (or run with -tags integration)")
	}
	return url
}
