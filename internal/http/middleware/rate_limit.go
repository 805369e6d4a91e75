package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"gocart/internal/clock"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const limiterIdleTTL = 10 * time.Minute

type rateLimitClient struct {
	limiter  *rate.Limiter
	lastSeen atomic.Int64 // unix nanos
}

// RateLimiter throttles each caller, keyed by user id when authenticated and
// by client IP otherwise.
type RateLimiter struct {
	limiters    map[string]*rateLimitClient
	mu          sync.RWMutex
	rateLimit   rate.Limit
	burstSize   int
	cleanupTick *time.Ticker
	stopChan    chan struct{}
	stopOnce    sync.Once
	clock       clock.Clock
}

// NewRateLimiter allows perMinute requests a minute with an equal burst.
// perMinute <= 0 disables limiting.
func NewRateLimiter(perMinute int, clk clock.Clock) *RateLimiter {
	if clk == nil {
		clk = clock.RealClock{}
	}
	limit := rate.Inf
	if perMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(perMinute))
	}
	rl := &RateLimiter{
		limiters:    make(map[string]*rateLimitClient),
		rateLimit:   limit,
		burstSize:   perMinute,
		cleanupTick: time.NewTicker(5 * time.Minute),
		stopChan:    make(chan struct{}),
		clock:       clk,
	}
	go rl.cleanup()
	return rl
}

func (rl *RateLimiter) getLimiter(key string) *rate.Limiter {
	now := rl.clock.Now().UnixNano()
	rl.mu.RLock()
	if client, ok := rl.limiters[key]; ok {
		client.lastSeen.Store(now)
		rl.mu.RUnlock()
		return client.limiter
	}
	rl.mu.RUnlock()

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if client, ok := rl.limiters[key]; ok {
		client.lastSeen.Store(now)
		return client.limiter
	}
	client := &rateLimitClient{limiter: rate.NewLimiter(rl.rateLimit, rl.burstSize)}
	client.lastSeen.Store(now)
	rl.limiters[key] = client
	return client.limiter
}

func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl.rateLimit == rate.Inf {
			c.Next()
			return
		}
		key := "ip:" + c.ClientIP()
		if uid := c.GetInt64(userIDKey); uid > 0 {
			key = "user:" + strconv.FormatInt(uid, 10)
		}
		if !rl.getLimiter(key).AllowN(rl.clock.Now(), 1) {
			retryAfter := math.Ceil(1 / float64(rl.rateLimit))
			c.Header("Retry-After", strconv.Itoa(int(retryAfter)))
			c.Header("X-RateLimit-Limit", strconv.Itoa(rl.burstSize))
			c.Header("X-RateLimit-Remaining", "0")
			abort(c, http.StatusTooManyRequests, "rate_limited", "too many requests, try again later")
			return
		}
		c.Next()
	}
}

// cleanupOnce evicts limiters idle for longer than limiterIdleTTL.
func (rl *RateLimiter) cleanupOnce() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	now := rl.clock.Now()
	for key, client := range rl.limiters {
		last := client.lastSeen.Load()
		if last == 0 {
			continue
		}
		if now.Sub(time.Unix(0, last)) > limiterIdleTTL {
			delete(rl.limiters, key)
		}
	}
}

func (rl *RateLimiter) cleanup() {
	for {
		select {
		case <-rl.cleanupTick.C:
			rl.cleanupOnce()
		case <-rl.stopChan:
			return
		}
	}
}

// Stop ends the cleanup goroutine. Safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() {
		close(rl.stopChan)
		rl.cleanupTick.Stop()
	})
}

func (rl *RateLimiter) size() int {
	rl.mu.RLock()
	defer rl.mu.RUnlock()
	return len(rl.limiters)
}
