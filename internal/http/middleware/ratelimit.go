// README: Per-client-IP token bucket limiter for the credential endpoints.
package middleware

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

type ipLimiter struct {
	limiters sync.Map // map[string]*rate.Limiter
	rps      float64
	burst    int
}

func (l *ipLimiter) get(key string) *rate.Limiter {
	if v, ok := l.limiters.Load(key); ok {
		return v.(*rate.Limiter)
	}
	lim := rate.NewLimiter(rate.Limit(l.rps), l.burst)
	actual, _ := l.limiters.LoadOrStore(key, lim)
	return actual.(*rate.Limiter)
}

// RateLimit answers 429 once a client IP exhausts its bucket.
func RateLimit(rps float64, burst int) gin.HandlerFunc {
	if burst <= 0 {
		burst = 5
	}
	l := &ipLimiter{rps: rps, burst: burst}
	return func(c *gin.Context) {
		if !l.get(c.ClientIP()).Allow() {
			abort(c, http.StatusTooManyRequests, "too many requests")
			return
		}
		c.Next()
	}
}
