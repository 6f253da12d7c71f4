// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis connection timeouts.
const (
	redisDialTimeout  = 3 * time.Second
	redisReadTimeout  = 2 * time.Second
	redisWriteTimeout = 2 * time.Second
	redisPingTimeout  = 2 * time.Second
)

// RedisBackend stores the session under a single key with a native TTL, so
// a shared kiosk profile can keep its remembered login on a school server.
type RedisBackend struct {
	client redis.Cmdable
	key    string
}

// NewRedisBackend returns a backend over an existing client.
func NewRedisBackend(client redis.Cmdable, key string) *RedisBackend {
	return &RedisBackend{client: client, key: key}
}

// DialRedis parses a redis:// URL, connects and pings.
func DialRedis(ctx context.Context, redisURL string, logger *slog.Logger) (*redis.Client, error) {
	options, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis: invalid URL: %w", err)
	}
	options.PoolSize = 2
	options.DialTimeout = redisDialTimeout
	options.ReadTimeout = redisReadTimeout
	options.WriteTimeout = redisWriteTimeout

	client := redis.NewClient(options)

	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: ping failed: %w", err)
	}

	logger.Info("redis_connected", slog.String("addr", options.Addr), slog.Int("db", options.DB))
	return client, nil
}

// Read implements Backend.
func (b *RedisBackend) Read(ctx context.Context) ([]byte, error) {
	data, err := b.client.Get(ctx, b.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Write implements Backend.
func (b *RedisBackend) Write(ctx context.Context, data []byte, ttl time.Duration) error {
	return b.client.Set(ctx, b.key, data, ttl).Err()
}

// Delete implements Backend.
func (b *RedisBackend) Delete(ctx context.Context) error {
	return b.client.Del(ctx, b.key).Err()
}

// Name implements Backend.
func (b *RedisBackend) Name() string { return "redis" }
