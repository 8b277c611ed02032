// Package ratelimit provides optional Redis-backed token-bucket admission
// control for AddMessage. A bag's own capacity check in the facade is
// authoritative but racy under concurrent admission — a caller may still
// observe bagFull under burst. This package does not replace that check —
// it is a second, coarser backpressure layer a deployment can set on
// facade.Config, which Facade.AddMessage consults before it reads the bag's
// capacity.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// tokenBucketScript runs the token bucket algorithm atomically in Redis.
// KEYS[1] = bucket key; ARGV[1] = refill rate (tokens/sec); ARGV[2] =
// capacity; ARGV[3] = cost; ARGV[4] = current unix time (float seconds).
var tokenBucketScript = redis.NewScript(`
local key = KEYS[1]
local rate = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local cost = tonumber(ARGV[3])
local now = tonumber(ARGV[4])

local state = redis.call("HMGET", key, "tokens", "last_refill")
local tokens = tonumber(state[1])
local last_refill = tonumber(state[2])

if not tokens or not last_refill then
    tokens = capacity
    last_refill = now
end

local elapsed = now - last_refill
if elapsed > 0 then
    local added = elapsed * rate
    tokens = tokens + added
    if tokens > capacity then
        tokens = capacity
    end
    last_refill = now
end

local allowed = 0
if tokens >= cost then
    tokens = tokens - cost
    allowed = 1
end

redis.call("HMSET", key, "tokens", tokens, "last_refill", last_refill)
redis.call("EXPIRE", key, 60)

return {allowed, tokens}
`)

// Policy bounds the admission rate for a single bag: Burst tokens
// available instantly, refilling at RatePerSecond.
type Policy struct {
	RatePerSecond float64
	Burst         int
}

// Limiter admits or rejects AddMessage calls against a bag-scoped token
// bucket stored in Redis, shared across every process fronting the same
// bag.
type Limiter struct {
	client *redis.Client
}

// New constructs a Limiter over an existing Redis client.
func New(client *redis.Client) *Limiter {
	return &Limiter{client: client}
}

// Allow consumes cost tokens from bagTag's bucket under policy, returning
// whether the call may proceed.
func (l *Limiter) Allow(ctx context.Context, bagTag string, policy Policy, cost int) (bool, error) {
	key := fmt.Sprintf("depot:bag-admission:%s", bagTag)

	rate := policy.RatePerSecond
	if rate <= 0 {
		rate = 1.0
	}
	burst := policy.Burst
	if burst <= 0 {
		burst = 1
	}
	now := float64(time.Now().UnixMicro()) / 1e6

	res, err := tokenBucketScript.Run(ctx, l.client, []string{key}, rate, burst, cost, now).Result()
	if err != nil {
		return false, fmt.Errorf("ratelimit: redis script: %w", err)
	}

	results, ok := res.([]interface{})
	if !ok || len(results) != 2 {
		return false, fmt.Errorf("ratelimit: unexpected script response")
	}
	allowed, _ := results[0].(int64)
	return allowed == 1, nil
}
