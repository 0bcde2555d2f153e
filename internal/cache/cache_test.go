package cache

import (
	"context"
	"testing"
	"time"
)

func TestLRUCache_GetSet(t *testing.T) {
	ctx := context.Background()
	c := NewLRUCache[string](2, time.Minute)

	if _, ok := c.Get(ctx, "missing"); ok {
		t.Fatal("expected miss")
	}

	c.Set(ctx, "a", "1")
	c.Set(ctx, "b", "2")
	if v, ok := c.Get(ctx, "a"); !ok || v != "1" {
		t.Fatalf("Get(a) = %q, %v", v, ok)
	}

	// "b" is now least recently used and goes first
	c.Set(ctx, "c", "3")
	if _, ok := c.Get(ctx, "b"); ok {
		t.Error("expected b to be evicted")
	}
	if c.Size() != 2 {
		t.Errorf("Size() = %d, want 2", c.Size())
	}

	c.Set(ctx, "a", "updated")
	if v, _ := c.Get(ctx, "a"); v != "updated" {
		t.Errorf("Get(a) = %q, want updated", v)
	}
}

func TestLRUCache_Expiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewLRUCache[int](10, time.Minute)
	c.now = func() time.Time { return now }

	c.Set(ctx, "k", 42)
	now = now.Add(30 * time.Second)
	if v, ok := c.Get(ctx, "k"); !ok || v != 42 {
		t.Fatalf("expected hit before ttl, got %d %v", v, ok)
	}

	c.Set(ctx, "other", 1)
	now = now.Add(45 * time.Second)
	if _, ok := c.Get(ctx, "k"); ok {
		t.Fatal("expected k to expire")
	}
	if n := c.CleanExpired(); n != 0 {
		t.Errorf("CleanExpired() = %d, want 0 (other still fresh)", n)
	}
	now = now.Add(time.Minute)
	if n := c.CleanExpired(); n != 1 {
		t.Errorf("CleanExpired() = %d, want 1", n)
	}
}

func TestLRUCache_DeletePrefix(t *testing.T) {
	ctx := context.Background()
	c := NewLRUCache[int](10, time.Minute)
	c.Set(ctx, "tax:u1:2024", 1)
	c.Set(ctx, "tax:u1:2025", 2)
	c.Set(ctx, "tax:u10:2025", 3)
	c.Set(ctx, "tax:u2:2025", 4)

	if n := c.DeletePrefix(ctx, "tax:u1:"); n != 2 {
		t.Fatalf("DeletePrefix() = %d, want 2", n)
	}
	if _, ok := c.Get(ctx, "tax:u10:2025"); !ok {
		t.Error("u10 entry should survive")
	}
	c.Delete(ctx, "tax:u2:2025")
	if c.Size() != 1 {
		t.Errorf("Size() = %d, want 1", c.Size())
	}
}

func TestManager_CleanNow(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	c := NewLRUCache[int](10, time.Second)
	c.now = func() time.Time { return now }
	c.Set(ctx, "a", 1)
	c.Set(ctx, "b", 2)

	m := NewManager()
	m.Register(c)
	now = now.Add(2 * time.Second)
	if n := m.CleanNow(); n != 2 {
		t.Fatalf("CleanNow() = %d, want 2", n)
	}

	m.StartCleanup(time.Hour)
	m.Stop()
	m.Stop()
}

func TestRedisCache_UnreachableDegradesToMiss(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client := NewRedisClient("127.0.0.1:1", 0)
	defer client.Close()
	c := NewRedisCache[int](client, "bookngn-test", time.Minute)

	c.Set(ctx, "k", 1)
	if _, ok := c.Get(ctx, "k"); ok {
		t.Fatal("expected miss when redis is unreachable")
	}
	if n := c.DeletePrefix(ctx, "k"); n != 0 {
		t.Fatalf("DeletePrefix() = %d, want 0", n)
	}
	if err := c.Ping(ctx); err == nil {
		t.Fatal("expected ping error")
	}
	if got := c.key("tax:u1:2025"); got != "bookngn-test:tax:u1:2025" {
		t.Errorf("key() = %q", got)
	}
}
