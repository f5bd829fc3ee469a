package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	limiter "github.com/ulule/limiter/v3"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

// Quota is a fixed-window allowance keyed per subject, e.g. OTP sends per phone
// number. Rates use the "<limit>-<period>" format ("5-H", "10-M").
type Quota struct {
	lim *limiter.Limiter
}

// QuotaResult describes the state of a subject's allowance after a hit.
type QuotaResult struct {
	Allowed   bool
	Remaining int64
	ResetAt   time.Time
}

// NewQuota builds a Quota stored in Redis under prefix.
func NewQuota(client *redis.Client, prefix, rate string) (*Quota, error) {
	parsed, err := limiter.NewRateFromFormatted(rate)
	if err != nil {
		return nil, fmt.Errorf("ratelimit: parse rate %q: %w", rate, err)
	}
	store, err := limiterredis.NewStoreWithOptions(client, limiter.StoreOptions{Prefix: prefix})
	if err != nil {
		return nil, fmt.Errorf("ratelimit: redis store: %w", err)
	}
	return &Quota{lim: limiter.New(store, parsed)}, nil
}

// Take consumes one unit of the subject's allowance.
func (q *Quota) Take(ctx context.Context, subject string) (QuotaResult, error) {
	if q == nil || q.lim == nil {
		return QuotaResult{Allowed: true}, nil
	}
	lc, err := q.lim.Get(ctx, subject)
	if err != nil {
		return QuotaResult{}, err
	}
	return QuotaResult{
		Allowed:   !lc.Reached,
		Remaining: lc.Remaining,
		ResetAt:   time.Unix(lc.Reset, 0),
	}, nil
}
