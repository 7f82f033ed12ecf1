package middlewares

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/delivery-app/utils"
	"golang.org/x/time/rate"
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per client IP.
type RateLimiter struct {
	limit rate.Limit
	burst int
	ttl   time.Duration

	mu       sync.Mutex
	visitors map[string]*visitor
}

// NewRateLimiter allows requests per interval with the given burst.
func NewRateLimiter(requests int, interval time.Duration, burst int) *RateLimiter {
	return &RateLimiter{
		limit:    rate.Every(interval / time.Duration(requests)),
		burst:    burst,
		ttl:      10 * time.Minute,
		visitors: make(map[string]*visitor),
	}
}

// NewStrictRateLimiter guards login and registration: 10 attempts per minute.
func NewStrictRateLimiter() gin.HandlerFunc {
	return NewRateLimiter(10, time.Minute, 10).RateLimit()
}

func (rl *RateLimiter) get(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	for k, v := range rl.visitors {
		if now.Sub(v.lastSeen) > rl.ttl {
			delete(rl.visitors, k)
		}
	}

	v, ok := rl.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.visitors[ip] = v
	}
	v.lastSeen = now
	return v.limiter
}

func (rl *RateLimiter) RateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.get(c.ClientIP()).Allow() {
			utils.RespondError(c, http.StatusTooManyRequests, errors.New("too many requests, please wait a moment"))
			c.Abort()
			return
		}
		c.Next()
	}
}
