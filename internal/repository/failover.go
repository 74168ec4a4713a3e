package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"mechconnect/internal/domain"
	"mechconnect/internal/models"

	"github.com/rs/zerolog"
)

// FailoverJobCache serves from the primary (redis) cache and degrades to the
// in-memory fallback when the primary errors. The primary is retried after a
// cooldown.
type FailoverJobCache struct {
	primary   domain.JobCache
	fallback  domain.JobCache
	logger    *zerolog.Logger
	isDown    atomic.Bool
	mu        sync.Mutex
	lastCheck time.Time
	cooldown  time.Duration
}

func NewFailoverJobCache(primary, fallback domain.JobCache, logger *zerolog.Logger) *FailoverJobCache {
	return &FailoverJobCache{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
		cooldown: time.Minute,
	}
}

func (c *FailoverJobCache) markDown(err error) {
	c.logger.Error().Err(err).Msg("primary job cache failed, falling back to memory")
	c.isDown.Store(true)
	c.mu.Lock()
	c.lastCheck = time.Now()
	c.mu.Unlock()
}

// usePrimary reports whether the next call should try the primary cache.
func (c *FailoverJobCache) usePrimary() bool {
	if !c.isDown.Load() {
		return true
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if time.Since(c.lastCheck) > c.cooldown {
		c.lastCheck = time.Now()
		c.isDown.Store(false)
		return true
	}
	return false
}

func (c *FailoverJobCache) GetRequests(ctx context.Context, bucket string) ([]models.Request, bool, error) {
	if c.usePrimary() {
		requests, ok, err := c.primary.GetRequests(ctx, bucket)
		if err == nil {
			return requests, ok, nil
		}
		c.markDown(err)
	}
	return c.fallback.GetRequests(ctx, bucket)
}

func (c *FailoverJobCache) SetRequests(ctx context.Context, bucket string, requests []models.Request) error {
	c.writePrimary(func() error { return c.primary.SetRequests(ctx, bucket, requests) })
	// Fallback is always written so a primary outage does not lose the list.
	return c.fallback.SetRequests(ctx, bucket, requests)
}

func (c *FailoverJobCache) GetBookings(ctx context.Context, status string) ([]models.Booking, bool, error) {
	if c.usePrimary() {
		bookings, ok, err := c.primary.GetBookings(ctx, status)
		if err == nil {
			return bookings, ok, nil
		}
		c.markDown(err)
	}
	return c.fallback.GetBookings(ctx, status)
}

func (c *FailoverJobCache) SetBookings(ctx context.Context, status string, bookings []models.Booking) error {
	c.writePrimary(func() error { return c.primary.SetBookings(ctx, status, bookings) })
	return c.fallback.SetBookings(ctx, status, bookings)
}

func (c *FailoverJobCache) Invalidate(ctx context.Context, keys ...string) error {
	c.writePrimary(func() error { return c.primary.Invalidate(ctx, keys...) })
	return c.fallback.Invalidate(ctx, keys...)
}

// writePrimary attempts a mutation on the primary even while it is marked
// down: a primary that recovers mid-cooldown must not be readmitted still
// holding pre-mutation state. A successful write readmits it early.
func (c *FailoverJobCache) writePrimary(op func() error) {
	err := op()
	switch {
	case err == nil:
		if c.isDown.Load() {
			c.logger.Info().Msg("primary job cache write succeeded, readmitting")
			c.isDown.Store(false)
		}
	case c.isDown.Load():
		c.logger.Debug().Err(err).Msg("primary job cache still down")
	default:
		c.markDown(err)
	}
}
