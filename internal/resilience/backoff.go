package resilience

import (
	"math/rand"
	"time"
)

// maxBackoff caps retry sleeps; checkout calls sit on a user-facing request.
const maxBackoff = 2 * time.Second

// Backoff is base doubled per attempt (attempt 1 waits base), capped at
// maxBackoff, then spread by ±jitterPct.
func Backoff(base time.Duration, attempt int, jitterPct float64) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	d := base
	for i := 1; i < attempt && d < maxBackoff; i++ {
		d *= 2
	}
	if d > maxBackoff {
		d = maxBackoff
	}
	if jitterPct <= 0 {
		return d
	}
	spread := float64(d) * jitterPct
	return d + time.Duration((rand.Float64()*2-1)*spread)
}
