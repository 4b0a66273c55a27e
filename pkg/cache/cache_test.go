package cache

import (
	"testing"
	"time"
)

func newTestCache() (*Cache[string], *time.Time) {
	c := New[string]()
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return clock }
	return c, &clock
}

func TestSetAndGet(t *testing.T) {
	c, _ := newTestCache()
	c.Set("user-1:s1", "alice", time.Minute)
	val, ok := c.Get("user-1:s1")
	if !ok || val != "alice" {
		t.Fatalf("expected alice, got %q, exists=%v", val, ok)
	}
	if _, ok := c.Get("missing"); ok {
		t.Fatalf("expected missing key to return false")
	}
}

func TestExpiryIsExclusive(t *testing.T) {
	c, clock := newTestCache()
	c.Set("user-1:s1", "alice", time.Minute)

	*clock = clock.Add(59 * time.Second)
	if _, ok := c.Get("user-1:s1"); !ok {
		t.Fatalf("expected entry to be live before its TTL")
	}

	*clock = clock.Add(time.Second)
	if val, ok := c.Get("user-1:s1"); ok || val != "" {
		t.Fatalf("expected entry to expire at its TTL, got %q", val)
	}
}

func TestDelete(t *testing.T) {
	c, _ := newTestCache()
	c.Set("user-1:s1", "alice", time.Minute)
	c.Delete("user-1:s1")
	if _, ok := c.Get("user-1:s1"); ok {
		t.Fatalf("expected deleted key to return false")
	}
}

func TestInvalidatePrefix(t *testing.T) {
	c, _ := newTestCache()
	c.Set("user-1:a", "s1", time.Minute)
	c.Set("user-1:b", "s2", time.Minute)
	c.Set("user-10:a", "s3", time.Minute)

	if n := c.Invalidate("user-1:"); n != 2 {
		t.Fatalf("expected 2 invalidated, got %d", n)
	}
	if _, ok := c.Get("user-1:a"); ok {
		t.Fatalf("expected user-1 sessions to be gone")
	}
	if _, ok := c.Get("user-10:a"); !ok {
		t.Fatalf("expected user-10:a to survive")
	}
}

func TestPruneExpired(t *testing.T) {
	c, clock := newTestCache()
	c.Set("short", "a", time.Second)
	c.Set("long", "b", time.Hour)
	*clock = clock.Add(time.Minute)

	if n := c.PruneExpired(); n != 1 {
		t.Fatalf("expected 1 pruned entry, got %d", n)
	}
	if c.Len() != 1 {
		t.Fatalf("expected 1 remaining entry, got %d", c.Len())
	}
}
