package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/matheus3301/chatsync/internal/bus"
	"go.uber.org/zap"
)

// KindChanged is published whenever a cached value is replaced or patched.
const KindChanged = "cache.changed"

// Loader fetches the authoritative value for a key.
type Loader[T any] func(ctx context.Context) (T, error)

// Change is the payload of KindChanged events. Local is true for optimistic
// patches and false for values that came from a loader.
type Change[T any] struct {
	Key   string
	Value T
	Local bool
}

type entry[T any] struct {
	value     T
	fetchedAt time.Time
}

// Cache is a keyed query cache: values come from registered loaders, can be
// patched optimistically, and are replaced by the next successful load.
type Cache[T any] struct {
	mu      sync.RWMutex
	entries map[string]*entry[T]
	loaders map[string]Loader[T]
	// gen orders concurrent loads per key; a load only applies if no later
	// started load has applied already.
	started map[string]uint64
	applied map[string]uint64
	bus     *bus.Bus
	logger  *zap.Logger
}

// New creates an empty cache.
func New[T any](b *bus.Bus, logger *zap.Logger) *Cache[T] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache[T]{
		entries: make(map[string]*entry[T]),
		loaders: make(map[string]Loader[T]),
		started: make(map[string]uint64),
		applied: make(map[string]uint64),
		bus:     b,
		logger:  logger,
	}
}

// Register sets the loader used by Invalidate for key.
func (c *Cache[T]) Register(key string, load Loader[T]) {
	c.mu.Lock()
	c.loaders[key] = load
	c.mu.Unlock()
}

// Get returns the cached value for key.
func (c *Cache[T]) Get(key string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok {
		var zero T
		return zero, false
	}
	return e.value, true
}

// FetchedAt returns when key was last loaded; zero if never.
func (c *Cache[T]) FetchedAt(key string) time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if e, ok := c.entries[key]; ok {
		return e.fetchedAt
	}
	return time.Time{}
}

// Patch applies fn to the cached value. It returns false, without calling fn,
// when nothing is cached for key yet.
func (c *Cache[T]) Patch(key string, fn func(T) T) bool {
	c.mu.Lock()
	e, ok := c.entries[key]
	if !ok {
		c.mu.Unlock()
		return false
	}
	e.value = fn(e.value)
	v := e.value
	c.mu.Unlock()

	c.publish(Change[T]{Key: key, Value: v, Local: true})
	return true
}

// Invalidate refetches key through its loader and replaces the cached value.
// A load that finishes after a newer one has applied is discarded.
func (c *Cache[T]) Invalidate(ctx context.Context, key string) error {
	c.mu.Lock()
	load, ok := c.loaders[key]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("no loader registered for %q", key)
	}
	c.started[key]++
	gen := c.started[key]
	c.mu.Unlock()

	v, err := load(ctx)
	if err != nil {
		return fmt.Errorf("load %s: %w", key, err)
	}

	c.mu.Lock()
	if gen < c.applied[key] {
		c.mu.Unlock()
		c.logger.Debug("discarding superseded load", zap.String("key", key))
		return nil
	}
	c.applied[key] = gen
	c.entries[key] = &entry[T]{value: v, fetchedAt: time.Now()}
	c.mu.Unlock()

	c.publish(Change[T]{Key: key, Value: v})
	return nil
}

func (c *Cache[T]) publish(ch Change[T]) {
	if c.bus == nil {
		return
	}
	c.bus.Publish(bus.Event{
		Kind:      KindChanged,
		Timestamp: time.Now(),
		Payload:   ch,
	})
}
