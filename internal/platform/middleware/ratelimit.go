package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/ayurdiet/ayurdiet/internal/platform/auth"
)

type RateLimitConfig struct {
	RequestsPerSecond float64
	BurstSize         int
}

func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{RequestsPerSecond: 100, BurstSize: 200}
}

// ProposeRateLimitConfig allows a handful of plan proposals a minute per
// caller; each one is a slow, billed upstream call.
func ProposeRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{RequestsPerSecond: 0.1, BurstSize: 3}
}

type tokenBucket struct {
	mu         sync.Mutex
	tokens     float64
	maxTokens  float64
	refillRate float64 // tokens per second
	lastRefill time.Time
}

func newTokenBucket(rate float64, burst int, now time.Time) *tokenBucket {
	return &tokenBucket{
		tokens:     float64(burst),
		maxTokens:  float64(burst),
		refillRate: rate,
		lastRefill: now,
	}
}

// take refills for the elapsed time and spends one token. When empty it
// returns the seconds until the next token.
func (b *tokenBucket) take(now time.Time) (bool, int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.tokens += now.Sub(b.lastRefill).Seconds() * b.refillRate
	if b.tokens > b.maxTokens {
		b.tokens = b.maxTokens
	}
	b.lastRefill = now

	if b.tokens >= 1 {
		b.tokens--
		return true, 0
	}
	if b.refillRate <= 0 {
		return false, 1
	}
	return false, int((1-b.tokens)/b.refillRate) + 1
}

type rateLimiterStore struct {
	mu      sync.RWMutex
	buckets map[string]*tokenBucket
	config  RateLimitConfig
}

func (s *rateLimiterStore) bucket(key string, now time.Time) *tokenBucket {
	s.mu.RLock()
	b, ok := s.buckets[key]
	s.mu.RUnlock()
	if ok {
		return b
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.buckets[key]; ok {
		return b
	}
	b = newTokenBucket(s.config.RequestsPerSecond, s.config.BurstSize, now)
	s.buckets[key] = b
	return b
}

// RateLimit keeps one token bucket per caller: the authenticated user when
// there is one, otherwise the client IP, both scoped by tenant.
func RateLimit(cfg RateLimitConfig) echo.MiddlewareFunc {
	store := &rateLimiterStore{buckets: make(map[string]*tokenBucket), config: cfg}
	limit := strconv.FormatFloat(cfg.RequestsPerSecond, 'f', -1, 64)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := auth.UserIDFromContext(c.Request().Context())
			if key == "" {
				key = c.RealIP()
			}
			if tenant, ok := c.Get("jwt_tenant_id").(string); ok && tenant != "" {
				key = tenant + ":" + key
			}

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", limit)
			if ok, retry := store.bucket(key, time.Now()).take(time.Now()); !ok {
				h.Set("Retry-After", strconv.Itoa(retry))
				h.Set("X-RateLimit-Remaining", "0")
				return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
			}
			return next(c)
		}
	}
}
