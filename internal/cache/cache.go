// Package cache provides Redis-based caching for hot analytics reads
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// Default TTLs for different data types
const (
	TTLRealTime = 30 * time.Second
	TTLSnapshot = 5 * time.Minute
	TTLTopList  = 1 * time.Minute
)

// Cache provides Redis-based caching operations
type Cache struct {
	client    *redis.Client
	keyPrefix string
	enabled   bool
}

// Config holds cache configuration
type Config struct {
	URL       string
	KeyPrefix string
	Enabled   bool
}

// New creates a new Cache instance. A disabled cache is valid and turns every
// operation into a no-op miss.
func New(cfg *Config) (*Cache, error) {
	if !cfg.Enabled {
		return &Cache{enabled: false}, nil
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "chainpulse"
	}

	return &Cache{
		client:    client,
		keyPrefix: prefix,
		enabled:   true,
	}, nil
}

// Close closes the Redis connection
func (c *Cache) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// IsEnabled returns whether caching is enabled
func (c *Cache) IsEnabled() bool {
	return c.enabled
}

// key generates a cache key with prefix
func (c *Cache) key(parts ...string) string {
	key := c.keyPrefix
	for _, part := range parts {
		key += ":" + part
	}
	return key
}

// Get retrieves a value from cache
func (c *Cache) Get(ctx context.Context, key string, dest interface{}) error {
	if !c.enabled {
		return redis.Nil
	}

	data, err := c.client.Get(ctx, c.key(key)).Bytes()
	if err != nil {
		return err
	}

	return json.Unmarshal(data, dest)
}

// Set stores a value in cache with TTL
func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !c.enabled {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	return c.client.Set(ctx, c.key(key), data, ttl).Err()
}

// Delete removes a key from cache
func (c *Cache) Delete(ctx context.Context, key string) error {
	if !c.enabled {
		return nil
	}
	return c.client.Del(ctx, c.key(key)).Err()
}

// IsMiss reports whether err from Get means the key was absent.
func IsMiss(err error) bool {
	return err == redis.Nil
}
