package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestStore(t *testing.T) (*RateLimitStore, *miniredis.Miniredis) {
	t.Helper()

	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := NewRateLimitStore(client, SlidingWindowConfig{
		KeyPrefix: "auth:ratelimit",
		TTL:       2 * time.Minute,
	})
	return store, server
}

func TestRateLimitStoreCountWithinWindow(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for _, offset := range []time.Duration{-90 * time.Second, -30 * time.Second, -5 * time.Second} {
		if err := store.RecordAttempt(ctx, "203.0.113.7", now.Add(offset)); err != nil {
			t.Fatalf("RecordAttempt: %v", err)
		}
	}

	// The 90s-old attempt falls outside a 60s window.
	count, err := store.CountAttempts(ctx, "203.0.113.7", time.Minute, now)
	if err != nil {
		t.Fatalf("CountAttempts: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 attempts in window, got %d", count)
	}

	// A wider window sees all three.
	count, err = store.CountAttempts(ctx, "203.0.113.7", 2*time.Minute, now)
	if err != nil {
		t.Fatalf("CountAttempts: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 attempts in wide window, got %d", count)
	}
}

func TestRateLimitStoreIdentifiersAreIsolated(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	if err := store.RecordAttempt(ctx, "client-a", now); err != nil {
		t.Fatalf("RecordAttempt: %v", err)
	}

	count, err := store.CountAttempts(ctx, "client-b", time.Minute, now)
	if err != nil {
		t.Fatalf("CountAttempts: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected isolated identifier, got %d attempts", count)
	}
}

func TestRateLimitStoreTrimWindow(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for _, offset := range []time.Duration{-90 * time.Second, -10 * time.Second} {
		if err := store.RecordAttempt(ctx, "client", now.Add(offset)); err != nil {
			t.Fatalf("RecordAttempt: %v", err)
		}
	}

	if err := store.TrimWindow(ctx, "client", time.Minute, now); err != nil {
		t.Fatalf("TrimWindow: %v", err)
	}

	count, err := store.CountAttempts(ctx, "client", 2*time.Minute, now)
	if err != nil {
		t.Fatalf("CountAttempts: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected stale attempt removed, got %d", count)
	}
}

func TestRateLimitStoreOldestAttempt(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	oldest := now.Add(-45 * time.Second)
	for _, at := range []time.Time{oldest, now.Add(-10 * time.Second)} {
		if err := store.RecordAttempt(ctx, "client", at); err != nil {
			t.Fatalf("RecordAttempt: %v", err)
		}
	}

	got, ok, err := store.OldestAttempt(ctx, "client", time.Minute, now)
	if err != nil {
		t.Fatalf("OldestAttempt: %v", err)
	}
	if !ok {
		t.Fatal("expected an attempt in the window")
	}
	if got.UnixNano() != oldest.UnixNano() {
		t.Fatalf("expected oldest %v, got %v", oldest, got)
	}

	_, ok, err = store.OldestAttempt(ctx, "empty", time.Minute, now)
	if err != nil {
		t.Fatalf("OldestAttempt empty: %v", err)
	}
	if ok {
		t.Fatal("expected no attempts for unknown identifier")
	}
}

func TestRateLimitStoreExpiresKeys(t *testing.T) {
	store, server := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	if err := store.RecordAttempt(ctx, "client", now); err != nil {
		t.Fatalf("RecordAttempt: %v", err)
	}

	// Past the configured TTL, the whole key is gone.
	server.FastForward(3 * time.Minute)

	count, err := store.CountAttempts(ctx, "client", time.Hour, now.Add(3*time.Minute))
	if err != nil {
		t.Fatalf("CountAttempts: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected expired key, got %d attempts", count)
	}
}
