// Package redis wraps the go-redis client backing the onboarding payload
// cache and exposes it as a health-checkable dependency.
package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"onramp/internal/platform/config"
)

// Client is the shared Redis connection. A nil *Client means Redis is not
// configured; callers treat that as "cache disabled".
type Client struct {
	*redis.Client
}

// New connects using cfg and verifies the connection with a bounded ping.
// An empty URL returns (nil, nil).
func New(cfg config.RedisConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns
	opts.DialTimeout = cfg.DialTimeout
	opts.ReadTimeout = cfg.ReadTimeout
	opts.WriteTimeout = cfg.WriteTimeout

	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Client{Client: client}, nil
}

// Health reports connection liveness for the readiness endpoint.
func (c *Client) Health(ctx context.Context) error {
	return c.Ping(ctx).Err()
}
