package database

import (
	"context"
	"testing"
	"time"
)

// TestDownloadCache tests basic cache operations.
func TestDownloadCache(t *testing.T) {
	t.Parallel()

	t.Run("stores and retrieves a download", func(t *testing.T) {
		t.Parallel()

		c, err := Open(t.TempDir(), DefaultOptions())
		if err != nil {
			t.Fatalf("failed to open cache: %v", err)
		}
		defer c.Close()

		ctx := context.Background()
		body := []byte{0xFF, 0xD8, 0xFF}
		if err := c.Put(ctx, "https://cdn.example.com/a.jpg", "https://example.com/archives/1", body); err != nil {
			t.Fatalf("failed to put: %v", err)
		}

		got, ok, err := c.Get(ctx, "https://cdn.example.com/a.jpg", "https://example.com/archives/1")
		if err != nil {
			t.Fatalf("failed to get: %v", err)
		}
		if !ok {
			t.Fatal("expected cache hit")
		}
		if string(got) != string(body) {
			t.Errorf("body mismatch: %v vs %v", got, body)
		}
	})

	t.Run("misses on unknown key and different referer", func(t *testing.T) {
		t.Parallel()

		c, err := Open(t.TempDir(), DefaultOptions())
		if err != nil {
			t.Fatalf("failed to open cache: %v", err)
		}
		defer c.Close()

		ctx := context.Background()
		if err := c.Put(ctx, "https://cdn.example.com/a.jpg", "https://example.com/1", []byte("x")); err != nil {
			t.Fatalf("failed to put: %v", err)
		}

		if _, ok, _ := c.Get(ctx, "https://cdn.example.com/other.jpg", "https://example.com/1"); ok {
			t.Error("expected miss for unknown URL")
		}
		if _, ok, _ := c.Get(ctx, "https://cdn.example.com/a.jpg", "https://example.com/2"); ok {
			t.Error("expected miss for different referer")
		}
	})

	t.Run("expired entries are evicted", func(t *testing.T) {
		t.Parallel()

		opts := DefaultOptions()
		opts.TTL = 10 * time.Millisecond
		c, err := Open(t.TempDir(), opts)
		if err != nil {
			t.Fatalf("failed to open cache: %v", err)
		}
		defer c.Close()

		ctx := context.Background()
		if err := c.Put(ctx, "https://cdn.example.com/a.jpg", "", []byte("x")); err != nil {
			t.Fatalf("failed to put: %v", err)
		}

		time.Sleep(30 * time.Millisecond)

		if _, ok, err := c.Get(ctx, "https://cdn.example.com/a.jpg", ""); err != nil || ok {
			t.Errorf("expected expired miss, ok=%v err=%v", ok, err)
		}
		if n, _ := c.Count(ctx); n != 0 {
			t.Errorf("expected expired row deleted, count=%d", n)
		}
	})

	t.Run("put replaces an existing entry", func(t *testing.T) {
		t.Parallel()

		c, err := Open(t.TempDir(), DefaultOptions())
		if err != nil {
			t.Fatalf("failed to open cache: %v", err)
		}
		defer c.Close()

		ctx := context.Background()
		if err := c.Put(ctx, "u", "r", []byte("old")); err != nil {
			t.Fatalf("failed to put: %v", err)
		}
		if err := c.Put(ctx, "u", "r", []byte("new")); err != nil {
			t.Fatalf("failed to replace: %v", err)
		}

		got, ok, err := c.Get(ctx, "u", "r")
		if err != nil || !ok {
			t.Fatalf("expected hit, ok=%v err=%v", ok, err)
		}
		if string(got) != "new" {
			t.Errorf("expected replaced body, got %q", got)
		}
	})

	t.Run("rejects non-positive TTL", func(t *testing.T) {
		t.Parallel()

		if _, err := Open(t.TempDir(), Options{TTL: 0}); err == nil {
			t.Error("expected error for zero TTL")
		}
	})
}
