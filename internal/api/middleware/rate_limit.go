package middleware

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	apiContext "projecthub/internal/api/context"
	"projecthub/internal/pkg/errors"
	"projecthub/internal/platform/config"
)

// Limit classes used in route tables.
const (
	LimitRead  = "api_read"
	LimitWrite = "api_write"
	LimitAuth  = "auth"
)

type RateLimiter struct {
	store  sync.Map // map[string]*Bucket
	limits map[string]int
	now    func() time.Time
}

type Bucket struct {
	tokens     int
	lastRefill time.Time
	mu         sync.Mutex
	lastAccess time.Time
}

func NewRateLimiter(cfg config.RateLimitConfig) *RateLimiter {
	return &RateLimiter{
		limits: map[string]int{
			LimitRead:  cfg.APIReadPerMinute,
			LimitWrite: cfg.APIWritePerMinute,
			LimitAuth:  cfg.AuthPerMinute,
		},
		now: time.Now,
	}
}

// Cleanup drops buckets idle for more than ten minutes until ctx is done.
func (rl *RateLimiter) Cleanup(ctx context.Context) {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := rl.now()
			rl.store.Range(func(key, value interface{}) bool {
				bucket := value.(*Bucket)
				bucket.mu.Lock()
				if now.Sub(bucket.lastAccess) > 10*time.Minute {
					rl.store.Delete(key)
				}
				bucket.mu.Unlock()
				return true
			})
		}
	}
}

// Allow takes one token from key's bucket, refilled at limit per minute.
func (rl *RateLimiter) Allow(key string, limit int) bool {
	now := rl.now()

	val, _ := rl.store.LoadOrStore(key, &Bucket{
		tokens:     limit,
		lastRefill: now,
		lastAccess: now,
	})

	bucket := val.(*Bucket)
	bucket.mu.Lock()
	defer bucket.mu.Unlock()

	bucket.lastAccess = now

	refillRate := float64(limit) / 60.0
	refillTokens := int(now.Sub(bucket.lastRefill).Seconds() * refillRate)
	if refillTokens > 0 {
		bucket.tokens += refillTokens
		if bucket.tokens > limit {
			bucket.tokens = limit
		}
		bucket.lastRefill = now
	}

	if bucket.tokens > 0 {
		bucket.tokens--
		return true
	}
	return false
}

// Limit keys buckets by organization inside tenant routes and by client IP
// elsewhere. A class with no positive limit is not throttled.
func (rl *RateLimiter) Limit(class string) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			limit := rl.limits[class]
			if limit <= 0 {
				next(w, r)
				return
			}

			key := "ip:" + ClientIP(r) + ":" + class
			if org, ok := apiContext.OrganizationFrom(r.Context()); ok {
				key = "org:" + org.ID + ":" + class
			}

			if !rl.Allow(key, limit) {
				w.Header().Set("Retry-After", "60")
				w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
				errors.WriteError(w, http.StatusTooManyRequests, errors.ErrCodeRateLimitExceeded, "Rate limit exceeded", nil)
				return
			}
			next(w, r)
		}
	}
}
