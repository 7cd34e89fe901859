package lookup

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// cacheEntry records misses as well as hits so hot absent keys do not
// hammer a slow backend.
type cacheEntry struct {
	value string
	found bool
}

// Cached wraps a Map with a TTL-bounded LRU. Backend errors are never
// cached.
type Cached struct {
	inner Map
	cache *expirable.LRU[string, cacheEntry]
}

// NewCached wraps inner with room for maxEntries cached keys. A ttl of 0
// keeps entries until evicted by size.
func NewCached(inner Map, maxEntries int, ttl time.Duration) *Cached {
	return &Cached{
		inner: inner,
		cache: expirable.NewLRU[string, cacheEntry](maxEntries, nil, ttl),
	}
}

func (c *Cached) Metadata() MapMetadata {
	return c.inner.Metadata()
}

func (c *Cached) Lookup(ctx context.Context, key string) (string, bool, error) {
	if entry, ok := c.cache.Get(key); ok {
		return entry.value, entry.found, nil
	}
	value, found, err := c.inner.Lookup(ctx, key)
	if err != nil {
		return "", false, err
	}
	c.cache.Add(key, cacheEntry{value: value, found: found})
	return value, found, nil
}

// Reload forwards to the inner map when it supports reloading and drops
// every cached entry so stale values cannot outlive the new source.
func (c *Cached) Reload() error {
	reloader, ok := c.inner.(Reloader)
	if !ok {
		return ErrNotReloadable
	}
	if err := reloader.Reload(); err != nil {
		return err
	}
	c.cache.Purge()
	return nil
}

func (c *Cached) Close() error {
	return c.inner.Close()
}
