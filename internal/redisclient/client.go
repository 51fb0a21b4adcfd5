package redisclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"storefront/internal/models"

	"github.com/go-redis/redis/v8"
)

const defaultSnapshotKey = "catalog:snapshot"

// Client stores catalog snapshots in Redis so every storefront replica shares one feed fetch.
type Client struct {
	rdb *redis.Client
	key string
	ttl time.Duration
}

// NewClient creates a new Redis client and verifies the connection.
// ttl bounds how long Redis keeps a snapshot; freshness is still judged by the caller.
func NewClient(addr, password string, db int, ttl time.Duration) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{
		rdb: rdb,
		key: defaultSnapshotKey,
		ttl: ttl,
	}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Load returns the stored snapshot, or nil when there is none.
func (c *Client) Load(ctx context.Context) (*models.CatalogSnapshot, error) {
	data, err := c.rdb.Get(ctx, c.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog snapshot: %w", err)
	}

	var snap models.CatalogSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to decode catalog snapshot: %w", err)
	}
	return &snap, nil
}

// Save stores snapshot, replacing the previous one.
func (c *Client) Save(ctx context.Context, snapshot models.CatalogSnapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to encode catalog snapshot: %w", err)
	}

	if err := c.rdb.Set(ctx, c.key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write catalog snapshot: %w", err)
	}
	return nil
}

// Invalidate removes the stored snapshot
func (c *Client) Invalidate(ctx context.Context) error {
	return c.rdb.Del(ctx, c.key).Err()
}
