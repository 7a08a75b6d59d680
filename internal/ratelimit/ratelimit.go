package ratelimit

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// RateLimiter enforces per-caller sliding-window limits on scraper refresh ingestion
type RateLimiter struct {
	requestsPerMinute int
	requestsPerHour   int
	enabled           bool
	now               func() time.Time

	mu      sync.Mutex
	callers map[string]*window
}

type window struct {
	minute []time.Time
	hour   []time.Time
}

// NewRateLimiter creates a new rate limiter with the given limits
func NewRateLimiter(requestsPerMinute, requestsPerHour int, enabled bool) *RateLimiter {
	return &RateLimiter{
		requestsPerMinute: requestsPerMinute,
		requestsPerHour:   requestsPerHour,
		enabled:           enabled,
		now:               time.Now,
		callers:           map[string]*window{},
	}
}

// AllowRequest records a request for caller and reports whether it is within limits
func (rl *RateLimiter) AllowRequest(caller string) bool {
	if !rl.enabled {
		return true
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	w := rl.window(caller, now)

	if rl.requestsPerMinute > 0 && len(w.minute) >= rl.requestsPerMinute {
		return false
	}
	if rl.requestsPerHour > 0 && len(w.hour) >= rl.requestsPerHour {
		return false
	}

	w.minute = append(w.minute, now)
	w.hour = append(w.hour, now)
	return true
}

// window returns the caller's window with expired entries removed
func (rl *RateLimiter) window(caller string, now time.Time) *window {
	w, ok := rl.callers[caller]
	if !ok {
		w = &window{}
		rl.callers[caller] = w
	}
	w.minute = filterTimes(w.minute, now.Add(-time.Minute))
	w.hour = filterTimes(w.hour, now.Add(-time.Hour))
	return w
}

// filterTimes keeps only times after the cutoff
func filterTimes(times []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(times) && !times[i].After(cutoff) {
		i++
	}
	return times[i:]
}

// GetStats returns current usage for caller
func (rl *RateLimiter) GetStats(caller string) Stats {
	if !rl.enabled {
		return Stats{Enabled: false}
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	w := rl.window(caller, rl.now())
	return Stats{
		Enabled:             true,
		RequestsLastMinute:  len(w.minute),
		RequestsLastHour:    len(w.hour),
		LimitPerMinute:      rl.requestsPerMinute,
		LimitPerHour:        rl.requestsPerHour,
		RemainingThisMinute: max(0, rl.requestsPerMinute-len(w.minute)),
		RemainingThisHour:   max(0, rl.requestsPerHour-len(w.hour)),
	}
}

// Stats contains rate limiter statistics
type Stats struct {
	Enabled             bool `json:"enabled"`
	RequestsLastMinute  int  `json:"requests_last_minute"`
	RequestsLastHour    int  `json:"requests_last_hour"`
	LimitPerMinute      int  `json:"limit_per_minute"`
	LimitPerHour        int  `json:"limit_per_hour"`
	RemainingThisMinute int  `json:"remaining_this_minute"`
	RemainingThisHour   int  `json:"remaining_this_hour"`
}

// Reset clears all tracked requests
func (rl *RateLimiter) Reset() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.callers = map[string]*window{}
}

// CallerKey identifies the caller of a request
type CallerKey func(c *gin.Context) string

// ByUserOrIP keys on the X-User-ID header, falling back to the client IP
func ByUserOrIP(c *gin.Context) string {
	if user := c.GetHeader("X-User-ID"); user != "" {
		return "user:" + user
	}
	return "ip:" + c.ClientIP()
}

// Middleware returns a Gin middleware that enforces rate limiting
func (rl *RateLimiter) Middleware(key CallerKey) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller := key(c)
		if !rl.AllowRequest(caller) {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":   "Rate limit exceeded",
				"message": "Too many refresh requests. Please try again later.",
				"stats":   rl.GetStats(caller),
			})
			c.Abort()
			return
		}
		c.Next()
	}
}
