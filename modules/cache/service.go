// Package cache provides a caching layer using the mono.Storage interface.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/go-monolith/mono/pkg/storage"
)

// CacheService defines the caching operations used by consumers.
type CacheService interface {
	// Get unmarshals the cached value into dest and reports a hit.
	Get(ctx context.Context, key string, dest any) (bool, error)

	// Set stores a JSON-encoded value with the default TTL.
	Set(ctx context.Context, key string, value any) error

	// SetWithTTL stores a value with a custom TTL.
	SetWithTTL(ctx context.Context, key string, value any, ttl time.Duration) error

	// Delete removes keys. Missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error

	// Stats reports hit and miss counters since start.
	Stats() Stats

	// Close closes the underlying storage connection.
	Close() error
}

// Stats counts cache lookups.
type Stats struct {
	Hits   uint64 `json:"hits"`
	Misses uint64 `json:"misses"`
	Errors uint64 `json:"errors"`
}

// cacheService implements CacheService using the Storage interface.
type cacheService struct {
	storage storage.Storage
	prefix  string
	ttl     time.Duration
	hits    atomic.Uint64
	misses  atomic.Uint64
	errors  atomic.Uint64
}

// NewCacheService creates a new CacheService wrapping the provided storage.
func NewCacheService(s storage.Storage, prefix string, ttl time.Duration) CacheService {
	return &cacheService{
		storage: s,
		prefix:  prefix,
		ttl:     ttl,
	}
}

func (c *cacheService) Get(ctx context.Context, key string, dest any) (bool, error) {
	data, err := c.storage.GetWithContext(ctx, c.prefix+key)
	if err != nil {
		c.errors.Add(1)
		return false, fmt.Errorf("cache get error: %w", err)
	}

	// nil or empty means key not found
	if len(data) == 0 {
		c.misses.Add(1)
		return false, nil
	}

	if err := json.Unmarshal(data, dest); err != nil {
		c.errors.Add(1)
		return false, fmt.Errorf("cache unmarshal error: %w", err)
	}

	c.hits.Add(1)
	return true, nil
}

func (c *cacheService) Set(ctx context.Context, key string, value any) error {
	return c.SetWithTTL(ctx, key, value, c.ttl)
}

func (c *cacheService) SetWithTTL(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache marshal error: %w", err)
	}

	if err := c.storage.SetWithContext(ctx, c.prefix+key, data, ttl); err != nil {
		c.errors.Add(1)
		return fmt.Errorf("cache set error: %w", err)
	}
	return nil
}

func (c *cacheService) Delete(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		if err := c.storage.DeleteWithContext(ctx, c.prefix+key); err != nil {
			c.errors.Add(1)
			return fmt.Errorf("cache delete error: %w", err)
		}
	}
	return nil
}

func (c *cacheService) Stats() Stats {
	return Stats{Hits: c.hits.Load(), Misses: c.misses.Load(), Errors: c.errors.Load()}
}

func (c *cacheService) Close() error {
	return c.storage.Close()
}

// noopService is used when no cache backend is configured. Every lookup misses.
type noopService struct {
	misses atomic.Uint64
}

// NewNoopService returns a CacheService that stores nothing.
func NewNoopService() CacheService {
	return &noopService{}
}

func (n *noopService) Get(context.Context, string, any) (bool, error) {
	n.misses.Add(1)
	return false, nil
}
func (n *noopService) Set(context.Context, string, any) error { return nil }
func (n *noopService) SetWithTTL(context.Context, string, any, time.Duration) error {
	return nil
}
func (n *noopService) Delete(context.Context, ...string) error { return nil }
func (n *noopService) Stats() Stats                            { return Stats{Misses: n.misses.Load()} }
func (n *noopService) Close() error                            { return nil }
