package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// TestLimiter_Integration requires a running Redis; it is skipped if one
// isn't reachable.
func TestLimiter_Integration(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	ctx := context.Background()
	if _, err := client.Ping(ctx).Result(); err != nil {
		t.Skip("skipping ratelimit integration test: redis not available")
	}

	l := New(client)
	policy := Policy{RatePerSecond: 1, Burst: 1}
	bag := "test-bag"

	allowed, err := l.Allow(ctx, bag, policy, 1)
	if err != nil {
		t.Fatalf("Allow: %v", err)
	}
	if !allowed {
		t.Fatalf("expected allowed=true for a fresh bucket")
	}

	allowed, err = l.Allow(ctx, bag, policy, 1)
	if err != nil {
		t.Fatalf("Allow: %v", err)
	}
	if allowed {
		t.Fatalf("expected allowed=false immediately after exhausting burst")
	}

	time.Sleep(1100 * time.Millisecond)
	allowed, err = l.Allow(ctx, bag, policy, 1)
	if err != nil {
		t.Fatalf("Allow: %v", err)
	}
	if !allowed {
		t.Fatalf("expected allowed=true after refill")
	}
}
