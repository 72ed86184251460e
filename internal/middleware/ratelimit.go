package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/DukeRupert/aula/internal/auth"
	"github.com/DukeRupert/aula/internal/metrics"
	"github.com/redis/go-redis/v9"
)

// Limiter decides whether one more request for key fits in the current window.
type Limiter interface {
	// Allow consumes one slot. When the request is refused, retryAfter is the
	// time until the window resets.
	Allow(ctx context.Context, key string) (allowed bool, retryAfter time.Duration, err error)
}

// =============================================================================
// In-memory Limiter
// =============================================================================

// RateLimiter is a fixed-window limiter held in process memory. It suits a
// single instance; use RedisRateLimiter when several instances share limits.
type RateLimiter struct {
	maxRequests int
	window      time.Duration
	now         func() time.Time

	mu      sync.Mutex
	entries map[string]*rateLimitEntry
	stop    chan struct{}
}

type rateLimitEntry struct {
	count       int
	windowStart time.Time
}

// NewRateLimiter creates a limiter and starts its cleanup loop. Call Close to
// stop it.
func NewRateLimiter(maxRequests int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		maxRequests: maxRequests,
		window:      window,
		now:         time.Now,
		entries:     make(map[string]*rateLimitEntry),
		stop:        make(chan struct{}),
	}
	go rl.cleanup()
	return rl
}

// Allow implements Limiter.
func (rl *RateLimiter) Allow(_ context.Context, key string) (bool, time.Duration, error) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	entry, ok := rl.entries[key]
	if !ok || now.Sub(entry.windowStart) >= rl.window {
		rl.entries[key] = &rateLimitEntry{count: 1, windowStart: now}
		return true, 0, nil
	}

	if entry.count < rl.maxRequests {
		entry.count++
		return true, 0, nil
	}

	return false, rl.window - now.Sub(entry.windowStart), nil
}

// Close stops the cleanup loop.
func (rl *RateLimiter) Close() {
	close(rl.stop)
}

// cleanup drops expired windows so idle keys do not accumulate.
func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(rl.window)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			rl.mu.Lock()
			now := rl.now()
			for key, entry := range rl.entries {
				if now.Sub(entry.windowStart) >= rl.window {
					delete(rl.entries, key)
				}
			}
			rl.mu.Unlock()
		}
	}
}

// =============================================================================
// Redis Limiter
// =============================================================================

// RedisRateLimiter is a fixed-window limiter shared through Redis.
type RedisRateLimiter struct {
	client      redis.Cmdable
	prefix      string
	maxRequests int
	window      time.Duration
}

// NewRedisRateLimiter creates a limiter storing counters under prefix.
func NewRedisRateLimiter(client redis.Cmdable, prefix string, maxRequests int, window time.Duration) *RedisRateLimiter {
	return &RedisRateLimiter{
		client:      client,
		prefix:      prefix,
		maxRequests: maxRequests,
		window:      window,
	}
}

// Allow implements Limiter. The counter and its expiry are set in one
// transaction so a crash cannot leave a counter without a TTL.
func (rl *RedisRateLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	k := rl.key(key)

	pipe := rl.client.TxPipeline()
	incr := pipe.Incr(ctx, k)
	pipe.Do(ctx, "pexpire", k, rl.window.Milliseconds(), "nx")
	ttl := pipe.PTTL(ctx, k)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, fmt.Errorf("rate limit %s: %w", k, err)
	}

	if incr.Val() <= int64(rl.maxRequests) {
		return true, 0, nil
	}

	retry := ttl.Val()
	if retry <= 0 {
		retry = rl.window
	}
	return false, retry, nil
}

func (rl *RedisRateLimiter) key(key string) string {
	return rl.prefix + ":" + key
}

// ConnectRedis parses url and pings the server.
func ConnectRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// =============================================================================
// Rate Limit Middleware
// =============================================================================

// RateLimitMiddleware applies a Limiter per authenticated user, or per client
// IP for anonymous requests.
type RateLimitMiddleware struct {
	limiter Limiter
	name    string
	logger  *slog.Logger
}

// NewRateLimitMiddleware creates a new rate limit middleware. name labels the
// limiter in logs and metrics.
func NewRateLimitMiddleware(limiter Limiter, name string, logger *slog.Logger) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		limiter: limiter,
		name:    name,
		logger:  logger,
	}
}

// Limit returns middleware that rate limits requests. Limiter failures let
// the request through.
func (m *RateLimitMiddleware) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := "ip:" + getClientIP(r)
		if userID, ok := auth.GetUserID(r.Context()); ok {
			key = "user:" + userID.String()
		}

		allowed, retryAfter, err := m.limiter.Allow(r.Context(), key)
		if err != nil {
			m.logger.Error("rate limiter failed, allowing request",
				"limiter", m.name,
				"key", key,
				"error", err,
			)
			next.ServeHTTP(w, r)
			return
		}

		if !allowed {
			metrics.RateLimitedTotal.WithLabelValues(m.name).Inc()
			m.logger.Warn("rate limit exceeded",
				"limiter", m.name,
				"key", key,
				"path", r.URL.Path,
				"method", r.Method,
			)

			seconds := int(retryAfter.Round(time.Second).Seconds())
			if seconds < 1 {
				seconds = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(seconds))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"error": "Too many requests. Please try again later.",
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}

// =============================================================================
// Helpers
// =============================================================================

// getClientIP extracts the client IP from the request, considering proxy headers.
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
