package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func newTestLimiter(perMinute, perHour int) (*RateLimiter, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC)}
	rl := NewRateLimiter(perMinute, perHour, true)
	rl.now = clock.now
	return rl, clock
}

func TestAllowRequest_MinuteWindow(t *testing.T) {
	rl, clock := newTestLimiter(2, 100)

	assert.True(t, rl.AllowRequest("scraper-a"))
	assert.True(t, rl.AllowRequest("scraper-a"))
	assert.False(t, rl.AllowRequest("scraper-a"))

	// callers are tracked separately
	assert.True(t, rl.AllowRequest("scraper-b"))

	clock.t = clock.t.Add(61 * time.Second)
	assert.True(t, rl.AllowRequest("scraper-a"))
}

func TestAllowRequest_HourWindow(t *testing.T) {
	rl, clock := newTestLimiter(10, 3)
	for i := 0; i < 3; i++ {
		assert.True(t, rl.AllowRequest("scraper-a"))
		clock.t = clock.t.Add(2 * time.Minute)
	}
	assert.False(t, rl.AllowRequest("scraper-a"))

	stats := rl.GetStats("scraper-a")
	assert.Equal(t, 3, stats.RequestsLastHour)
	assert.Equal(t, 0, stats.RemainingThisHour)

	clock.t = clock.t.Add(time.Hour)
	assert.True(t, rl.AllowRequest("scraper-a"))
}

func TestAllowRequest_Disabled(t *testing.T) {
	rl := NewRateLimiter(1, 1, false)
	for i := 0; i < 5; i++ {
		assert.True(t, rl.AllowRequest("x"))
	}
	assert.False(t, rl.GetStats("x").Enabled)
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rl, _ := newTestLimiter(1, 10)

	r := gin.New()
	r.POST("/api/refresh", rl.Middleware(ByUserOrIP), func(c *gin.Context) {
		c.Status(http.StatusAccepted)
	})

	send := func(user string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/refresh", nil)
		req.Header.Set("X-User-ID", user)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusAccepted, send("scraper-svc"))
	assert.Equal(t, http.StatusTooManyRequests, send("scraper-svc"))
	assert.Equal(t, http.StatusAccepted, send("other-svc"))
}
