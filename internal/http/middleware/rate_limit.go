package middleware

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	MaxRequests int
	Window      time.Duration
	KeyPrefix   string
}

// DefaultRateLimitConfig returns default rate limit configuration.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		MaxRequests: 100,
		Window:      time.Minute,
		KeyPrefix:   "ratelimit",
	}
}

// RateLimit applies a fixed-window per-IP limit backed by Redis. Redis errors
// let the request through.
func RateLimit(client *redis.Client, cfg RateLimitConfig, logger *zap.Logger) fiber.Handler {
	defaults := DefaultRateLimitConfig()
	if cfg.MaxRequests <= 0 {
		cfg.MaxRequests = defaults.MaxRequests
	}
	if cfg.Window <= 0 {
		cfg.Window = defaults.Window
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = defaults.KeyPrefix
	}

	return func(c *fiber.Ctx) error {
		ctx := c.UserContext()
		key := cfg.KeyPrefix + ":" + c.IP()

		count, err := client.Incr(ctx, key).Result()
		if err != nil {
			logger.Error("rate limit redis error", zap.Error(err))
			return c.Next()
		}
		if count == 1 {
			if err := client.Expire(ctx, key, cfg.Window).Err(); err != nil {
				logger.Warn("rate limit expire failed", zap.String("key", key), zap.Error(err))
			}
		}
		reset := time.Now().Add(cfg.Window)

		c.Set("X-RateLimit-Limit", strconv.Itoa(cfg.MaxRequests))
		c.Set("X-RateLimit-Remaining", strconv.FormatInt(max(0, int64(cfg.MaxRequests)-count), 10))
		c.Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))

		if count > int64(cfg.MaxRequests) {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "rate limit exceeded",
			})
		}
		return c.Next()
	}
}
