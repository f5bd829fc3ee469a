package ratelimit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// slidingWindow trims expired hits, records the new one only when there is
// room, and reports the oldest surviving hit so callers know when a slot frees.
var slidingWindow = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local max = tonumber(ARGV[3])
redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)
local allowed = 0
if count < max then
  redis.call('ZADD', key, now, ARGV[4])
  count = count + 1
  allowed = 1
end
redis.call('PEXPIRE', key, window)
local oldest = now
local head = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
if head[2] then
  oldest = tonumber(head[2])
end
return {allowed, count, oldest}
`)

// Decision is the outcome of a single Allow call.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	// ResetAt is when the oldest counted hit leaves the window.
	ResetAt    time.Time
	RetryAfter time.Duration
}

// Limiter is a sliding window limiter over Redis sorted sets. Rejected
// requests do not count against the window.
type Limiter struct {
	Client redis.Scripter
	Prefix string
	Now    func() time.Time
}

func (l Limiter) now() time.Time {
	if l.Now != nil {
		return l.Now()
	}
	return time.Now()
}

// Allow records a hit for key when fewer than max hits landed in the last window.
func (l Limiter) Allow(ctx context.Context, key string, window time.Duration, max int) (Decision, error) {
	now := l.now()
	if l.Client == nil || max <= 0 || window <= 0 {
		return Decision{Allowed: true, Limit: max, Remaining: max, ResetAt: now.Add(window)}, nil
	}

	nowMs := now.UnixMilli()
	windowMs := window.Milliseconds()
	if windowMs < 1 {
		windowMs = 1
	}
	res, err := slidingWindow.Run(ctx, l.Client, []string{l.Prefix + key}, nowMs, windowMs, max, uuid.NewString()).Int64Slice()
	if err != nil {
		return Decision{Limit: max, ResetAt: now.Add(window)}, err
	}

	count := int(res[1])
	d := Decision{
		Allowed:   res[0] == 1,
		Limit:     max,
		Remaining: max - count,
		ResetAt:   time.UnixMilli(res[2] + windowMs),
	}
	if d.Remaining < 0 {
		d.Remaining = 0
	}
	if !d.Allowed {
		d.RetryAfter = d.ResetAt.Sub(now)
		if d.RetryAfter < 0 {
			d.RetryAfter = 0
		}
	}
	return d, nil
}
