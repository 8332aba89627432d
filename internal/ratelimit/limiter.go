package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// LimitResult is the outcome of a rate limit check.
type LimitResult struct {
	Allowed    bool
	Remaining  int64
	ResetAt    time.Time
	RetryAfter time.Duration
}

// Limiter performs fixed-window rate limiting keyed by
// (client address, operation). Counts live in Redis so they are shared
// across instances; without Redis a lock-protected in-process window
// still enforces the quota rather than failing open.
type Limiter struct {
	rdb *redis.Client

	mu      sync.Mutex
	windows map[string]*localWindow
}

type localWindow struct {
	count   int64
	expires time.Time
}

// NewLimiter creates a rate limiter. rdb may be nil; enforcement then
// falls back to the in-process counter.
func NewLimiter(rdb *redis.Client) *Limiter {
	return &Limiter{
		rdb:     rdb,
		windows: make(map[string]*localWindow),
	}
}

// fixedWindowScript atomically increments the window counter and sets
// its expiry on first use.
// KEYS[1] = window counter key
// ARGV[1] = window length in milliseconds
// Returns: [count, remaining ttl ms]
var fixedWindowScript = redis.NewScript(`
local count = redis.call('INCR', KEYS[1])
if count == 1 then
    redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
local ttl = redis.call('PTTL', KEYS[1])
return {count, ttl}
`)

// Check counts this request against the key's window and reports whether
// it is within quota. The request is counted even when rejected.
func (l *Limiter) Check(ctx context.Context, key string, limit int64, window time.Duration) (LimitResult, error) {
	if l.rdb == nil {
		return l.checkLocal(key, limit, window), nil
	}

	redisKey := fmt.Sprintf("medsage:rl:%s", key)
	result, err := fixedWindowScript.Run(ctx, l.rdb, []string{redisKey}, window.Milliseconds()).Int64Slice()
	if err != nil {
		// Redis down: the local counter still protects this instance.
		return l.checkLocal(key, limit, window), nil
	}

	count := result[0]
	ttl := time.Duration(result[1]) * time.Millisecond
	if ttl < 0 {
		ttl = window
	}
	return buildResult(count, limit, time.Now().Add(ttl)), nil
}

func (l *Limiter) checkLocal(key string, limit int64, window time.Duration) LimitResult {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	w, ok := l.windows[key]
	if !ok || now.After(w.expires) {
		w = &localWindow{expires: now.Add(window)}
		l.windows[key] = w
	}
	w.count++
	return buildResult(w.count, limit, w.expires)
}

func buildResult(count, limit int64, resetAt time.Time) LimitResult {
	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}
	res := LimitResult{
		Allowed:   count <= limit,
		Remaining: remaining,
		ResetAt:   resetAt,
	}
	if !res.Allowed {
		res.RetryAfter = time.Until(resetAt)
	}
	return res
}
