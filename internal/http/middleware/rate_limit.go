package middleware

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"stockroom-server/internal/utils"
)

// RateLimiter applies a fixed-window per-IP limit; it guards the login and
// registration endpoints against credential stuffing.
type RateLimiter struct {
	limit     int
	mu        sync.Mutex
	items     map[string]*rateEntry
	nextSweep time.Time
}

type rateEntry struct {
	count int
	reset time.Time
}

func NewRateLimiter(limit int) *RateLimiter {
	return &RateLimiter{
		limit:     limit,
		items:     make(map[string]*rateEntry),
		nextSweep: time.Now().Add(time.Minute),
	}
}

func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		now := time.Now()

		rl.mu.Lock()
		// Drop entries whose window has passed, at most once a minute, so
		// the map does not grow with every IP ever seen.
		if now.After(rl.nextSweep) {
			for key, e := range rl.items {
				if now.After(e.reset) {
					delete(rl.items, key)
				}
			}
			rl.nextSweep = now.Add(time.Minute)
		}

		entry, ok := rl.items[ip]
		if !ok || now.After(entry.reset) {
			entry = &rateEntry{count: 0, reset: now.Add(time.Minute)}
			rl.items[ip] = entry
		}
		entry.count++
		count := entry.count
		reset := entry.reset
		rl.mu.Unlock()

		if count > rl.limit {
			retry := int(time.Until(reset).Seconds())
			c.Header("Retry-After", fmt.Sprintf("%d", retry))
			utils.RespondError(c, utils.NewAppError(http.StatusTooManyRequests, utils.CodeRateLimit, "too many requests", nil))
			c.Abort()
			return
		}

		c.Next()
	}
}
