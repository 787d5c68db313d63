package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// Counter increments a fixed-window counter and returns the new value.
type Counter interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
}

type redisCounter struct {
	client *redis.Client
}

func NewRedisCounter(client *redis.Client) Counter {
	return &redisCounter{client: client}
}

func (c *redisCounter) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	pipe := c.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

type memoryCounter struct {
	mu        sync.Mutex
	entries   map[string]memoryWindow
	nextSweep time.Time
	now       func() time.Time
}

type memoryWindow struct {
	count   int64
	expires time.Time
}

// NewMemoryCounter is the single-instance fallback when Redis is not configured.
func NewMemoryCounter() Counter {
	return &memoryCounter{entries: make(map[string]memoryWindow), now: time.Now}
}

func (c *memoryCounter) Incr(_ context.Context, key string, window time.Duration) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	c.sweep(now, window)
	entry, ok := c.entries[key]
	if !ok || !now.Before(entry.expires) {
		entry = memoryWindow{expires: now.Add(window)}
	}
	entry.count++
	c.entries[key] = entry
	return entry.count, nil
}

// sweep drops expired windows at most once per window, so keys of idle users
// and of past buckets do not accumulate.
func (c *memoryCounter) sweep(now time.Time, window time.Duration) {
	if now.Before(c.nextSweep) {
		return
	}
	for key, entry := range c.entries {
		if !now.Before(entry.expires) {
			delete(c.entries, key)
		}
	}
	c.nextSweep = now.Add(window)
}

type RateLimiter struct {
	counter Counter
	limit   int
	window  time.Duration
	prefix  string
	logger  *slog.Logger
	now     func() time.Time
}

func NewRateLimiter(counter Counter, limit int, window time.Duration, prefix string, logger *slog.Logger) *RateLimiter {
	if logger == nil {
		logger = slog.Default()
	}
	return &RateLimiter{
		counter: counter,
		limit:   limit,
		window:  window,
		prefix:  prefix,
		logger:  logger,
		now:     time.Now,
	}
}

// Limit allows at most limit requests per user and window. It must run after
// Authenticate. Counter failures let the request through.
func (l *RateLimiter) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if l.counter == nil || l.limit <= 0 || l.window <= 0 {
			next.ServeHTTP(w, r)
			return
		}
		userID, err := GetUserIDFromContext(r.Context())
		if err != nil {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}

		bucket := l.now().UnixNano() / int64(l.window)
		key := fmt.Sprintf("%s:%d:%d", l.prefix, userID, bucket)
		count, err := l.counter.Incr(r.Context(), key, l.window)
		if err != nil {
			l.logger.Warn("rate limit counter unavailable", slog.String("key", key), slog.Any("error", err))
			next.ServeHTTP(w, r)
			return
		}

		remaining := int64(l.limit) - count
		if remaining < 0 {
			remaining = 0
		}
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(l.limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

		if count > int64(l.limit) {
			w.Header().Set("Retry-After", strconv.Itoa(int(l.window.Seconds())))
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded, slow down")
			return
		}
		next.ServeHTTP(w, r)
	})
}
