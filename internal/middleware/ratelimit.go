package middleware

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RateLimitConfig bounds how many admin requests a client may send per window.
type RateLimitConfig struct {
	RequestsPerWindow int
	Window            time.Duration
	KeyPrefix         string
}

// RateLimitMiddleware counts requests per client in a fixed Redis window.
// Authenticated callers are counted by token subject, anonymous ones by
// address; the two never share a counter. Redis failures let requests through.
func RateLimitMiddleware(redisClient *redis.Client, config RateLimitConfig, logger *zap.Logger) func(http.Handler) http.Handler {
	limit := strconv.Itoa(config.RequestsPerWindow)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := rateLimitKey(r, config.KeyPrefix)

			count, err := hit(r.Context(), redisClient, key, config.Window)
			if err != nil {
				logger.Error("Failed to increment rate limit counter", zap.Error(err), zap.String("key", key))
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Set("X-RateLimit-Limit", limit)

			if count <= int64(config.RequestsPerWindow) {
				w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(int64(config.RequestsPerWindow)-count, 10))
				next.ServeHTTP(w, r)
				return
			}

			ttl, err := redisClient.TTL(r.Context(), key).Result()
			if err != nil || ttl < 0 {
				ttl = config.Window
			}
			logger.Warn("Rate limit exceeded",
				zap.String("key", key),
				zap.Int64("count", count),
				zap.Int("limit", config.RequestsPerWindow),
			)

			w.Header().Set("X-RateLimit-Remaining", "0")
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(ttl).Unix(), 10))
			w.Header().Set("Retry-After", strconv.Itoa(int(ttl.Seconds())))
			RespondWithError(w, http.StatusTooManyRequests, "rate limit exceeded")
		})
	}
}

// hit increments the counter at key and starts its window on the first request.
func hit(ctx context.Context, rdb *redis.Client, key string, window time.Duration) (int64, error) {
	count, err := rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if count == 1 {
		if err := rdb.Expire(ctx, key, window).Err(); err != nil {
			return count, fmt.Errorf("failed to start rate limit window: %w", err)
		}
	}
	return count, nil
}

func rateLimitKey(r *http.Request, prefix string) string {
	if subject, ok := GetSubject(r.Context()); ok {
		return fmt.Sprintf("%s:subject:%s", prefix, subject)
	}
	host := r.RemoteAddr
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return fmt.Sprintf("%s:addr:%s", prefix, host)
}
