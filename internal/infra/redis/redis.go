package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/petermyo/DecentralizeFileShare/config"
	"github.com/redis/go-redis/v9"
)

const (
	defaultHost        = "localhost"
	defaultPort        = 6379
	defaultDialTimeout = 5 * time.Second
	pingTimeout        = 10 * time.Second
)

// Addr renders host:port for cfg, filling in local defaults.
func Addr(cfg config.RedisConfig) string {
	host := cfg.Host
	if host == "" {
		host = defaultHost
	}
	port := cfg.Port
	if port == 0 {
		port = defaultPort
	}
	return fmt.Sprintf("%s:%d", host, port)
}

// NewClient builds the client backing the link registry, credential vault and
// rate limiter, and verifies connectivity via PING.
func NewClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        Addr(cfg),
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: defaultDialTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: ping %s: %w", Addr(cfg), err)
	}
	return rdb, nil
}
