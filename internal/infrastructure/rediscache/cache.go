// Copyright The TrueCivic Authors.
// SPDX-License-Identifier: MIT

// Package rediscache implements the cache port over Redis for deployments
// that share cache state across processes. Losing it never affects
// correctness.
package rediscache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	errs "github.com/truecivic/parliament-service/pkg/errors"
)

// Config holds the Redis connection settings.
type Config struct {
	Addr     string
	Password string
	DB       int
}

// Cache is the Redis-backed cache.
type Cache struct {
	client *redis.Client
}

// NewCache connects to Redis.
func NewCache(config Config) *Cache {
	return &Cache{
		client: redis.NewClient(&redis.Options{
			Addr:     config.Addr,
			Password: config.Password,
			DB:       config.DB,
		}),
	}
}

// Get returns the stored bytes, or NotFound when absent.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, errs.NewNotFound("cache miss: " + key)
	}
	if err != nil {
		return nil, errs.NewServiceUnavailable("cache unavailable", err)
	}
	return value, nil
}

// Set stores value under key for ttl.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return errs.NewServiceUnavailable("cache unavailable", err)
	}
	return nil
}

// Delete removes the key.
func (c *Cache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		return errs.NewServiceUnavailable("cache unavailable", err)
	}
	return nil
}

// IsReady implements port.ReadinessChecker.
func (c *Cache) IsReady(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return errs.NewServiceUnavailable("redis unreachable", err)
	}
	return nil
}

// Close releases the client.
func (c *Cache) Close() error {
	return c.client.Close()
}
