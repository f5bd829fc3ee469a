package ratelimit

import (
	"net/http"
	"strconv"
	"time"

	"github.com/noah-isme/storefront-checkout/internal/common"
)

// Config describes how to derive a rate limit key and thresholds.
type Config struct {
	Key    func(*http.Request) string
	Window time.Duration
	Max    int
}

// Handler throttles requests per key and answers 429 once the window is full.
type Handler struct {
	Limiter Limiter
	Config  Config
	OnError func(error)
}

func (h Handler) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.Config.Key == nil {
			next.ServeHTTP(w, r)
			return
		}
		decision, err := h.Limiter.Allow(r.Context(), h.Config.Key(r), h.Config.Window, h.Config.Max)
		if err != nil {
			// Redis trouble fails open.
			if h.OnError != nil {
				h.OnError(err)
			}
			next.ServeHTTP(w, r)
			return
		}

		writeHeaders(w.Header(), decision)
		if !decision.Allowed {
			common.JSONError(w, http.StatusTooManyRequests, "RATE_LIMITED", "too many requests, try again shortly", map[string]any{
				"retry_after_seconds": retryAfterSeconds(decision.RetryAfter),
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}

func writeHeaders(h http.Header, d Decision) {
	limit := d.Limit
	if limit < 0 {
		limit = 0
	}
	h.Set("X-RateLimit-Limit", strconv.Itoa(limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))
	if !d.Allowed {
		h.Set("Retry-After", strconv.Itoa(retryAfterSeconds(d.RetryAfter)))
	}
}

// retryAfterSeconds rounds up so clients never retry a moment too early.
func retryAfterSeconds(d time.Duration) int {
	secs := int((d + time.Second - 1) / time.Second)
	if secs < 1 {
		return 1
	}
	return secs
}

// ByUserOrIP keys authenticated callers by user id and anonymous ones by client IP.
func ByUserOrIP(scope string) func(*http.Request) string {
	return func(r *http.Request) string {
		if userID, ok := common.UserID(r.Context()); ok {
			return scope + ":user:" + userID
		}
		return scope + ":ip:" + common.ClientIP(r)
	}
}
