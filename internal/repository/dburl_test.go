//go:build !integration

package repository

import (
	"os"
	"testing"
)

// testDatabaseURL points the Postgres tests at an existing database, or skips them
func testDatabaseURL(t *testing.T) string {
	t.Helper()
	url := os.Getenv("LANDLEDGER_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("LANDLEDGER_TEST_DATABASE_URL not set (or run with -tags integration)")
	}
	return url
}
