package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func newLimitedRouter(rl *RateLimiter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(rl.Middleware())
	router.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })
	return router
}

func hit(router *gin.Engine, ip string) int {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = ip + ":1234"
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec.Code
}

func TestRateLimiterEnforcesPerIPLimit(t *testing.T) {
	rl := NewRateLimiter(2)
	router := newLimitedRouter(rl)

	for i := 0; i < 2; i++ {
		if code := hit(router, "10.0.0.1"); code != http.StatusOK {
			t.Fatalf("request %d: status %d", i+1, code)
		}
	}
	if code := hit(router, "10.0.0.1"); code != http.StatusTooManyRequests {
		t.Fatalf("over limit: status %d", code)
	}

	// Another IP has its own window.
	if code := hit(router, "10.0.0.2"); code != http.StatusOK {
		t.Fatalf("other ip: status %d", code)
	}
}

func TestRateLimiterEvictsExpiredEntries(t *testing.T) {
	rl := NewRateLimiter(10)
	router := newLimitedRouter(rl)

	for _, ip := range []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"} {
		if code := hit(router, ip); code != http.StatusOK {
			t.Fatalf("seed %s: status %d", ip, code)
		}
	}

	rl.mu.Lock()
	for _, entry := range rl.items {
		entry.reset = time.Now().Add(-time.Second)
	}
	rl.nextSweep = time.Now().Add(-time.Second)
	rl.mu.Unlock()

	if code := hit(router, "10.0.0.4"); code != http.StatusOK {
		t.Fatalf("fresh ip: status %d", code)
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if len(rl.items) != 1 {
		t.Fatalf("expired entries kept, map size %d", len(rl.items))
	}
	if _, ok := rl.items["10.0.0.4"]; !ok {
		t.Fatal("fresh entry missing after sweep")
	}
}
