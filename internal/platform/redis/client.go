// Package redis holds the shared client for the schedule store. The engine's
// redis traffic is small and bursty (hourly scans plus occasional admin
// calls), so the pool is kept deliberately modest.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client wraps go-redis with a health check for the readiness endpoint.
type Client struct {
	*redis.Client
}

// New connects and verifies the server is reachable before returning. An
// unreachable redis at boot is a configuration error, not a degraded state.
func New(ctx context.Context, url string) (*Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	opts.PoolSize = 4
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Client{Client: client}, nil
}

// Health reports whether the connection is still serving.
func (c *Client) Health(ctx context.Context) error {
	return c.Ping(ctx).Err()
}
