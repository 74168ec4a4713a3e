package repository

import (
	"context"
	"sync"
	"time"

	"mechconnect/internal/models"
)

// MemoryJobCache is the in-process fallback cache. Entries expire by TTL and
// are dropped lazily on read.
type MemoryJobCache struct {
	entries sync.Map
	ttl     time.Duration
}

type cacheEntry struct {
	requests  []models.Request
	bookings  []models.Booking
	expiresAt time.Time
}

func NewMemoryJobCache(ttl time.Duration) *MemoryJobCache {
	return &MemoryJobCache{ttl: ttl}
}

func (c *MemoryJobCache) load(key string) (*cacheEntry, bool) {
	val, ok := c.entries.Load(key)
	if !ok {
		return nil, false
	}
	entry := val.(*cacheEntry)
	if time.Now().After(entry.expiresAt) {
		c.entries.Delete(key)
		return nil, false
	}
	return entry, true
}

func (c *MemoryJobCache) GetRequests(ctx context.Context, bucket string) ([]models.Request, bool, error) {
	entry, ok := c.load(RequestKey(bucket))
	if !ok {
		return nil, false, nil
	}
	return entry.requests, true, nil
}

func (c *MemoryJobCache) SetRequests(ctx context.Context, bucket string, requests []models.Request) error {
	c.entries.Store(RequestKey(bucket), &cacheEntry{
		requests:  requests,
		expiresAt: time.Now().Add(c.ttl),
	})
	return nil
}

func (c *MemoryJobCache) GetBookings(ctx context.Context, status string) ([]models.Booking, bool, error) {
	entry, ok := c.load(BookingKey(status))
	if !ok {
		return nil, false, nil
	}
	return entry.bookings, true, nil
}

func (c *MemoryJobCache) SetBookings(ctx context.Context, status string, bookings []models.Booking) error {
	c.entries.Store(BookingKey(status), &cacheEntry{
		bookings:  bookings,
		expiresAt: time.Now().Add(c.ttl),
	})
	return nil
}

func (c *MemoryJobCache) Invalidate(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		c.entries.Delete(key)
	}
	return nil
}
