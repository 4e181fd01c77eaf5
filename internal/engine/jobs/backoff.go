package jobs

import (
	"math/rand"
	"time"
)

// backoff returns the wait before poll attempt n (1 based) after consecutive failures: base doubled
// per failure, capped at max, with up to ±20% jitter when jitter is set.
func backoff(n int, base, max time.Duration, jitter bool) time.Duration {
	if n < 1 {
		n = 1
	}
	d := base
	for i := 1; i < n && d < max; i++ {
		d *= 2
	}
	if d > max {
		d = max
	}
	if !jitter || d <= 0 {
		return d
	}
	spread := int64(d) / 5
	if spread <= 0 {
		return d
	}
	return d - time.Duration(spread) + time.Duration(rand.Int63n(2*spread)) // #nosec G404 non-crypto
}
