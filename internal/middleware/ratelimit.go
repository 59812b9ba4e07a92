package middleware

import (
	"context"  // Context for Redis operations
	"fmt"      // Message formatting
	"net/http" // HTTP status codes
	"strconv"  // Header values
	"sync"     // Guards the local limiters
	"time"     // Rate periods

	"github.com/gin-gonic/gin"                      // Gin web framework
	redis_rate "github.com/go-redis/redis_rate/v10" // Redis-backed GCRA limiter
	"github.com/redis/go-redis/v9"                  // Redis client
	"github.com/sirupsen/logrus"                    // Logging library
	"golang.org/x/time/rate"                        // In-process fallback limiter
)

// RateLimiter throttles requests per client IP. It uses Redis when a client
// is configured and falls back to in-process token buckets otherwise or when
// Redis fails.
type RateLimiter struct {
	limiter   *redis_rate.Limiter // Nil without Redis
	limit     redis_rate.Limit    // Requests per period
	prefix    string              // Key namespace, e.g. "auth"
	now       func() time.Time
	mu        sync.Mutex
	fallback  map[string]*localBucket // Keyed like the Redis limiter
	lastSweep time.Time               // Last eviction of idle buckets
}

// localBucket is an in-process limiter and the time it was last used
type localBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter allows perMinute requests per minute per IP, with bursts of
// the same size
func NewRateLimiter(rdb *redis.Client, prefix string, perMinute int) *RateLimiter {
	if perMinute <= 0 {
		perMinute = 60
	}
	rl := &RateLimiter{
		limit:    redis_rate.PerMinute(perMinute),
		prefix:   prefix,
		now:      time.Now,
		fallback: make(map[string]*localBucket),
	}
	if rdb != nil {
		rl.limiter = redis_rate.NewLimiter(rdb)
	}
	return rl
}

// Handler is the gin middleware
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := "ratelimit:" + rl.prefix + ":ip:" + c.ClientIP()
		allowed, retryAfter := rl.allow(c.Request.Context(), key)
		if !allowed {
			secs := int(retryAfter.Seconds())
			if secs < 1 {
				secs = 1
			}
			logrus.WithFields(logrus.Fields{
				"key":  key,
				"path": c.FullPath(),
			}).Warn("Rate limit exceeded")
			c.Header("Retry-After", strconv.Itoa(secs))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": fmt.Sprintf("Too many requests. Retry after %d seconds.", secs),
			})
			return
		}
		c.Next()
	}
}

func (rl *RateLimiter) allow(ctx context.Context, key string) (bool, time.Duration) {
	if rl.limiter != nil {
		res, err := rl.limiter.Allow(ctx, key, rl.limit)
		if err == nil {
			return res.Allowed > 0, res.RetryAfter
		}
		logrus.WithError(err).Warn("Rate limiter unavailable, using local fallback")
	}
	return rl.allowLocal(key)
}

func (rl *RateLimiter) allowLocal(key string) (bool, time.Duration) {
	perSec := float64(rl.limit.Rate) / rl.limit.Period.Seconds()
	now := rl.now()
	rl.mu.Lock()
	rl.sweep(now)
	b, ok := rl.fallback[key]
	if !ok {
		b = &localBucket{limiter: rate.NewLimiter(rate.Limit(perSec), rl.limit.Burst)}
		rl.fallback[key] = b
	}
	b.lastSeen = now
	allowed := b.limiter.AllowN(now, 1)
	rl.mu.Unlock()
	if allowed {
		return true, 0
	}
	return false, time.Duration(float64(time.Second) / perSec)
}

// sweep drops buckets unused for a full period. Such a bucket has refilled
// completely, so a fresh one behaves the same. Callers hold rl.mu.
func (rl *RateLimiter) sweep(now time.Time) {
	if now.Sub(rl.lastSweep) < rl.limit.Period {
		return
	}
	rl.lastSweep = now
	for key, b := range rl.fallback {
		if now.Sub(b.lastSeen) >= rl.limit.Period {
			delete(rl.fallback, key)
		}
	}
}
