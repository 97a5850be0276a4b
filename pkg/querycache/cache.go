package querycache

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"
)

// Cache holds server-state responses keyed by resource. Entries go stale
// after a per-fetch window; stale or missing entries are refetched, with
// concurrent identical reads deduplicated. Invalidation is the only coherence
// mechanism: there is no way to write a value except through a fetch, so
// server-authoritative fields can never be patched locally.
type Cache struct {
	mu      sync.RWMutex
	entries map[Key]entry
	subs    map[int]chan Key
	nextSub int

	group singleflight.Group
}

type entry struct {
	value     interface{}
	fetchedAt time.Time
}

func New() *Cache {
	return &Cache{
		entries: map[Key]entry{},
		subs:    map[int]chan Key{},
	}
}

// FetchFunc loads a resource from the server.
type FetchFunc func(ctx context.Context) (interface{}, error)

// Fetch returns the cached value when it is younger than staleAfter,
// otherwise runs fn and caches its result. Errors are returned to every
// deduplicated waiter and never cached.
func (c *Cache) Fetch(ctx context.Context, key Key, staleAfter time.Duration, fn FetchFunc) (interface{}, error) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if ok && time.Since(e.fetchedAt) < staleAfter {
		return e.value, nil
	}

	value, err, _ := c.group.Do(string(key), func() (interface{}, error) {
		// Re-check under the flight: another waiter may have refreshed it.
		c.mu.RLock()
		e, ok := c.entries[key]
		c.mu.RUnlock()
		if ok && time.Since(e.fetchedAt) < staleAfter {
			return e.value, nil
		}

		v, err := fn(ctx)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.entries[key] = entry{value: v, fetchedAt: time.Now()}
		c.mu.Unlock()
		return v, nil
	})
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return value, nil
}

// Peek returns the cached value regardless of staleness, for rendering while
// a refetch is in flight. The second return reports presence.
func (c *Cache) Peek(key Key) (interface{}, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	return e.value, true
}

// Invalidate drops the given entries and notifies subscribers so dependent
// views refetch.
func (c *Cache) Invalidate(keys ...Key) {
	c.mu.Lock()
	for _, key := range keys {
		delete(c.entries, key)
	}
	c.mu.Unlock()

	for _, key := range keys {
		c.notify(key)
	}
}

// InvalidatePrefix drops every entry under prefix (list keys with parameters,
// detail keys, etc).
func (c *Cache) InvalidatePrefix(prefix Key) {
	var dropped []Key

	c.mu.Lock()
	for key := range c.entries {
		if key.HasPrefix(prefix) {
			delete(c.entries, key)
			dropped = append(dropped, key)
		}
	}
	c.mu.Unlock()

	// Subscribers always hear about the prefix itself, even when nothing was
	// cached under it, so pollers can trigger an eager refetch.
	c.notify(prefix)
	for _, key := range dropped {
		if key != prefix {
			c.notify(key)
		}
	}
}

// Subscribe returns a channel of invalidated keys and a cancel func. Slow
// subscribers miss notifications rather than blocking mutations.
func (c *Cache) Subscribe() (<-chan Key, func()) {
	ch := make(chan Key, 16)

	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch
	c.mu.Unlock()

	cancel := func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
	return ch, cancel
}

func (c *Cache) notify(key Key) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, ch := range c.subs {
		select {
		case ch <- key:
		default:
		}
	}
}

// Fetch is the typed wrapper most callers use.
func Fetch[T any](ctx context.Context, c *Cache, key Key, staleAfter time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	v, err := c.Fetch(ctx, key, staleAfter, func(ctx context.Context) (interface{}, error) {
		return fn(ctx)
	})
	if err != nil {
		return zero, err
	}
	typed, ok := v.(T)
	if !ok {
		return zero, errors.Errorf("querycache: entry %q holds %T", key, v)
	}
	return typed, nil
}
