package httpapi

import (
	"math"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// limiter admits /v1/generate requests; nil means unlimited.
var limiter atomic.Pointer[rate.Limiter]

// SetRateLimit caps /v1/generate at rps requests per second with the given
// burst. rps <= 0 removes the limit.
func SetRateLimit(rps float64, burst int) {
	if rps <= 0 {
		limiter.Store(nil)
		return
	}
	if burst < 1 {
		burst = 1
	}
	limiter.Store(rate.NewLimiter(rate.Limit(rps), burst))
}

func rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		l := limiter.Load()
		if l == nil {
			next.ServeHTTP(w, r)
			return
		}
		res := l.Reserve()
		if d := res.Delay(); d > 0 {
			res.Cancel()
			w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(d)))
			IncrementBackpressure("rate_limit")
			writeJSONError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func retryAfterSeconds(d time.Duration) int {
	return int(math.Max(1, math.Ceil(d.Seconds())))
}
