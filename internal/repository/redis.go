package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"mechconnect/internal/config"
	"mechconnect/internal/models"

	"github.com/redis/go-redis/v9"
)

// RedisJobCache keeps list buckets in redis so a restarted client does not
// hammer the backend for lists it fetched moments ago.
type RedisJobCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisClient creates a redis client from configuration.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	options := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	}
	return redis.NewClient(options)
}

func NewRedisJobCache(client *redis.Client, ttl time.Duration) *RedisJobCache {
	return &RedisJobCache{
		client: client,
		ttl:    ttl,
	}
}

func (c *RedisJobCache) get(ctx context.Context, key string, out interface{}) (bool, error) {
	if c.client == nil {
		return false, fmt.Errorf("redis client is nil")
	}
	val, err := c.client.Get(ctx, "jobs:"+key).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get %s from redis: %w", key, err)
	}
	if err := json.Unmarshal([]byte(val), out); err != nil {
		return false, fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}
	return true, nil
}

func (c *RedisJobCache) set(ctx context.Context, key string, val interface{}) error {
	if c.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	data, err := json.Marshal(val)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	if err := c.client.Set(ctx, "jobs:"+key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set %s in redis: %w", key, err)
	}
	return nil
}

func (c *RedisJobCache) GetRequests(ctx context.Context, bucket string) ([]models.Request, bool, error) {
	var requests []models.Request
	ok, err := c.get(ctx, RequestKey(bucket), &requests)
	if err != nil || !ok {
		return nil, false, err
	}
	return requests, true, nil
}

func (c *RedisJobCache) SetRequests(ctx context.Context, bucket string, requests []models.Request) error {
	return c.set(ctx, RequestKey(bucket), requests)
}

func (c *RedisJobCache) GetBookings(ctx context.Context, status string) ([]models.Booking, bool, error) {
	var bookings []models.Booking
	ok, err := c.get(ctx, BookingKey(status), &bookings)
	if err != nil || !ok {
		return nil, false, err
	}
	return bookings, true, nil
}

func (c *RedisJobCache) SetBookings(ctx context.Context, status string, bookings []models.Booking) error {
	return c.set(ctx, BookingKey(status), bookings)
}

func (c *RedisJobCache) Invalidate(ctx context.Context, keys ...string) error {
	if c.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	for _, key := range keys {
		if err := c.client.Del(ctx, "jobs:"+key).Err(); err != nil {
			return fmt.Errorf("failed to delete %s from redis: %w", key, err)
		}
	}
	return nil
}

// Ping verifies the redis connection.
func Ping(ctx context.Context, client *redis.Client) error {
	_, err := client.Ping(ctx).Result()
	if err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

// Close shuts down the redis connection.
func Close(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}
