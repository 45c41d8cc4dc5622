package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"time"

	"github.com/redis/go-redis/v9"
)

// authLimitPrefix namespaces the per-IP signup/login buckets.
const authLimitPrefix = "ratelimit:auth:"

// RateLimitResult contains the result of a rate limit check.
type RateLimitResult struct {
	Allowed    bool
	Remaining  int64
	ResetAt    time.Time
	RetryAfter time.Duration
}

// authBucketScript takes one credential attempt from the bucket at KEYS[1].
// ARGV: refill interval per attempt (ms), capacity, now (ms).
// Returns {allowed, wait_ms, attempts_left}. The key lives only as long as
// an empty bucket needs to become full again.
var authBucketScript = redis.NewScript(`
local interval = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local now = tonumber(ARGV[3])

local state = redis.call('HMGET', KEYS[1], 'left', 'at')
local left = tonumber(state[1]) or capacity
local at = tonumber(state[2]) or now

left = math.min(capacity, left + (now - at) / interval)

local wait = 0
if left >= 1 then
	left = left - 1
else
	wait = math.ceil((1 - left) * interval)
end

redis.call('HSET', KEYS[1], 'left', tostring(left), 'at', now)
redis.call('PEXPIRE', KEYS[1], math.ceil(capacity * interval))

if wait > 0 then
	return {0, wait, 0}
end
return {1, 0, math.floor(left)}
`)

// CheckAuthRateLimit spends one signup/login attempt for ip. The bucket holds
// burst attempts and regains ratePerMinute of them per minute. Addresses are
// stored hashed. A non-positive rate disables the check.
func (c *Cache) CheckAuthRateLimit(ctx context.Context, ip string, ratePerMinute, burst int) (*RateLimitResult, error) {
	now := time.Now()
	if burst < 1 {
		burst = 1
	}
	if ratePerMinute <= 0 {
		return &RateLimitResult{Allowed: true, Remaining: int64(burst), ResetAt: now.Add(time.Minute)}, nil
	}

	interval := time.Minute / time.Duration(ratePerMinute)
	reply, err := authBucketScript.Run(ctx, c.client,
		[]string{authLimitPrefix + hashIP(ip)},
		interval.Milliseconds(), burst, now.UnixMilli(),
	).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("auth rate limit: %w", err)
	}
	if len(reply) != 3 {
		return nil, fmt.Errorf("auth rate limit: unexpected reply %v", reply)
	}

	wait := time.Duration(reply[1]) * time.Millisecond
	res := &RateLimitResult{
		Allowed:   reply[0] == 1,
		Remaining: reply[2],
		ResetAt:   now.Add(interval),
	}
	if !res.Allowed {
		// Retry-After is whole seconds.
		res.RetryAfter = time.Duration(math.Ceil(wait.Seconds())) * time.Second
		res.ResetAt = now.Add(wait)
	}
	return res, nil
}

// hashIP keys buckets by the first 8 bytes of the address's SHA-256.
func hashIP(ip string) string {
	sum := sha256.Sum256([]byte(ip))
	return hex.EncodeToString(sum[:8])
}
