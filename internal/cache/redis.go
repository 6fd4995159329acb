package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"pepu-name-service/internal/observability"
)

// DefaultRedisPrefix namespaces cache keys.
const DefaultRedisPrefix = "pns:taken:"

// Redis is a NameCache shared between service instances.
type Redis struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedis connects to the Redis server at url (redis://...).
// A zero ttl keeps entries forever.
func NewRedis(ctx context.Context, url, prefix string, ttl time.Duration) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &Redis{client: client, prefix: prefix, ttl: ttl}, nil
}

// IsTaken implements NameCache.
func (c *Redis) IsTaken(ctx context.Context, name string) (bool, error) {
	n, err := c.client.Exists(ctx, c.prefix+name).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists: %w", err)
	}
	observability.RecordCacheLookup("redis", n > 0)
	return n > 0, nil
}

// MarkTaken implements NameCache.
func (c *Redis) MarkTaken(ctx context.Context, name string) error {
	if err := c.client.Set(ctx, c.prefix+name, 1, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Close closes the client.
func (c *Redis) Close() error {
	return c.client.Close()
}

var _ NameCache = (*Redis)(nil)
