package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// RedisConfig configures a Redis-backed storage
type RedisConfig struct {
	// Addr is the host:port of the server
	Addr string

	// Password is optional
	Password string

	// DB selects the logical database
	DB int

	// Namespace is prepended to every key so the medium can share a server
	// with unrelated data (default: "crystalcache:")
	Namespace string
}

// Redis is a Storage backed by a Redis server
type Redis struct {
	client    *redis.Client
	namespace string
}

// NewRedis connects to the server described by cfg and pings it
func NewRedis(ctx context.Context, cfg RedisConfig) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", cfg.Addr, err)
	}
	return NewRedisFromClient(client, cfg.Namespace), nil
}

// NewRedisFromClient wraps an existing client
func NewRedisFromClient(client *redis.Client, namespace string) *Redis {
	if namespace == "" {
		namespace = "crystalcache:"
	}
	return &Redis{client: client, namespace: namespace}
}

// GetItem implements Storage
func (r *Redis) GetItem(ctx context.Context, key string) (string, bool, error) {
	value, err := r.client.Get(ctx, r.namespace+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get item: %w", err)
	}
	return value, true, nil
}

// SetItem implements Storage. Expiry stays with the cache entry, so keys are stored without a Redis TTL.
func (r *Redis) SetItem(ctx context.Context, key, value string) error {
	if err := r.client.Set(ctx, r.namespace+key, value, 0).Err(); err != nil {
		return fmt.Errorf("set item: %w", err)
	}
	return nil
}

// RemoveItem implements Storage
func (r *Redis) RemoveItem(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.namespace+key).Err(); err != nil {
		return fmt.Errorf("remove item: %w", err)
	}
	return nil
}

// Keys implements Storage
func (r *Redis) Keys(ctx context.Context) ([]string, error) {
	var (
		keys   []string
		cursor uint64
	)
	for {
		batch, next, err := r.client.Scan(ctx, cursor, r.namespace+"*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("scan keys: %w", err)
		}
		for _, k := range batch {
			keys = append(keys, strings.TrimPrefix(k, r.namespace))
		}
		if next == 0 {
			return keys, nil
		}
		cursor = next
	}
}

// Close implements Storage
func (r *Redis) Close() error {
	return r.client.Close()
}
