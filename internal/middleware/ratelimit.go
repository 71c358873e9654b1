package middleware

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/taxrates/taxrates-api/internal/metrics"
	"github.com/taxrates/taxrates-api/internal/types/api/responses"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	defaultCleanupInterval = 10 * time.Minute
	limiterIdleTTL         = time.Hour
)

// RateLimiter enforces a per-minute and a per-hour budget for each client.
// Both budgets are token buckets that refill continuously, so a client that
// exhausts its minute budget regains one request every minute/perMinute.
type RateLimiter struct {
	perMinute int
	perHour   int
	limiters  sync.Map
	now       func() time.Time
	metrics   *metrics.Metrics
}

// limiterEntry holds one client's buckets and its last access time
type limiterEntry struct {
	mu         sync.Mutex
	minute     *rate.Limiter
	hour       *rate.Limiter
	lastAccess time.Time
}

// Decision is the outcome of one rate-limit check.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	Reset      time.Time
	RetryAfter time.Duration
}

// RateLimiterOption customizes a RateLimiter.
type RateLimiterOption func(*RateLimiter)

// WithLimiterClock replaces the wall clock, for tests.
func WithLimiterClock(now func() time.Time) RateLimiterOption {
	return func(rl *RateLimiter) {
		rl.now = now
	}
}

// WithLimiterMetrics counts rejected requests.
func WithLimiterMetrics(m *metrics.Metrics) RateLimiterOption {
	return func(rl *RateLimiter) {
		rl.metrics = m
	}
}

// NewRateLimiter creates a limiter allowing perMinute requests per minute and
// perHour requests per hour for each client.
func NewRateLimiter(perMinute, perHour int, opts ...RateLimiterOption) *RateLimiter {
	perMinute = max(perMinute, 1)
	perHour = max(perHour, 1)
	rl := &RateLimiter{
		perMinute: perMinute,
		perHour:   perHour,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(rl)
	}
	return rl
}

// Cleanup drops limiters of clients idle for over an hour until ctx is done.
func (rl *RateLimiter) Cleanup(ctx context.Context) error {
	ticker := time.NewTicker(defaultCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			rl.sweep(rl.now())
		}
	}
}

func (rl *RateLimiter) sweep(now time.Time) {
	rl.limiters.Range(func(key, value interface{}) bool {
		entry := value.(*limiterEntry)
		entry.mu.Lock()
		idle := now.Sub(entry.lastAccess) > limiterIdleTTL
		entry.mu.Unlock()
		if idle {
			rl.limiters.Delete(key)
		}
		return true
	})
}

func (rl *RateLimiter) entry(key string) *limiterEntry {
	if val, ok := rl.limiters.Load(key); ok {
		return val.(*limiterEntry)
	}
	entry := &limiterEntry{
		minute: rate.NewLimiter(rate.Every(time.Minute/time.Duration(rl.perMinute)), rl.perMinute),
		hour:   rate.NewLimiter(rate.Every(time.Hour/time.Duration(rl.perHour)), rl.perHour),
	}
	actual, _ := rl.limiters.LoadOrStore(key, entry)
	return actual.(*limiterEntry)
}

// Allow checks and, when allowed, consumes one request from both of the
// client's budgets. A rejected request consumes nothing.
func (rl *RateLimiter) Allow(key string) Decision {
	now := rl.now()
	e := rl.entry(key)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastAccess = now

	if d, denied := deny(e.minute, rl.perMinute, now); denied {
		return d
	}
	if d, denied := deny(e.hour, rl.perHour, now); denied {
		return d
	}

	e.minute.AllowN(now, 1)
	e.hour.AllowN(now, 1)

	minuteLeft := e.minute.TokensAt(now)
	remaining := int(math.Min(minuteLeft, e.hour.TokensAt(now)))
	refill := time.Duration((float64(rl.perMinute) - minuteLeft) / float64(e.minute.Limit()) * float64(time.Second))
	return Decision{
		Allowed:   true,
		Limit:     rl.perMinute,
		Remaining: max(remaining, 0),
		Reset:     now.Add(refill),
	}
}

func deny(lim *rate.Limiter, limit int, now time.Time) (Decision, bool) {
	tokens := lim.TokensAt(now)
	if tokens >= 1 {
		return Decision{}, false
	}
	wait := time.Duration((1 - tokens) / float64(lim.Limit()) * float64(time.Second))
	return Decision{
		Limit:      limit,
		Reset:      now.Add(wait),
		RetryAfter: wait,
	}, true
}

// ClientKey identifies the caller: the first X-Forwarded-For hop, then
// X-Real-IP, then the connection address.
func ClientKey(c *gin.Context) string {
	if forwarded := c.GetHeader("X-Forwarded-For"); forwarded != "" {
		if first := strings.TrimSpace(strings.Split(forwarded, ",")[0]); first != "" {
			return first
		}
	}
	if realIP := strings.TrimSpace(c.GetHeader("X-Real-IP")); realIP != "" {
		return realIP
	}
	if ip := c.ClientIP(); ip != "" {
		return ip
	}
	return "unknown"
}

// Middleware returns a Gin middleware handler for rate limiting
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions || shouldSkipLogging(c.Request.URL.Path) {
			c.Next()
			return
		}

		clientID := ClientKey(c)
		d := rl.Allow(clientID)

		c.Header("X-RateLimit-Limit", strconv.Itoa(d.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(int64(math.Ceil(float64(d.Reset.UnixNano())/1e9)), 10))

		if !d.Allowed {
			retryAfter := max(int(math.Ceil(d.RetryAfter.Seconds())), 1)
			LogWithCorrelationID(c.Request.Context()).Warn("Rate limit exceeded",
				zap.String("client_id", clientID),
				zap.String("path", c.Request.URL.Path),
				zap.Int("limit", d.Limit),
				zap.Int("retry_after", retryAfter),
			)
			if rl.metrics != nil {
				rl.metrics.RateLimited.Inc()
			}

			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, responses.RateLimitResponse{
				Error:      "Too many requests",
				Message:    "Rate limit exceeded. Please try again later.",
				RetryAfter: retryAfter,
			})
			return
		}

		c.Next()
	}
}
