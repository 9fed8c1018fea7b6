// Package cache holds lazily computed per-key results such as the matched
// positions of a document or the autocompleter of an engine context.
package cache

import (
	"context"
	"sync"

	gocache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

// Factory computes the value for a key.
type Factory[V any] func(ctx context.Context) (V, error)

type entry[V any] struct {
	done  chan struct{}
	value V
	err   error
}

func (e *entry[V]) wait(ctx context.Context) (V, error) {
	select {
	case <-e.done:
		return e.value, e.err
	case <-ctx.Done():
		var zero V
		return zero, errors.Errorf("waiting for cached computation: %w", ctx.Err())
	}
}

// Cache maps string keys to pending-or-resolved computations. Invalidating a
// key never cancels a computation already running for it; that computation's
// result is simply not handed to anyone who asks after the invalidation.
type Cache[V any] struct {
	useCase string
	mu      sync.Mutex
	store   *gocache.Cache
}

func New[V any](useCase string) *Cache[V] {
	return &Cache[V]{
		useCase: useCase,
		store:   gocache.New(gocache.NoExpiration, 0),
	}
}

func (c *Cache[V]) lookup(key string) (*entry[V], bool) {
	v, ok := c.store.Get(key)
	if !ok {
		return nil, false
	}
	e, ok := v.(*entry[V])
	return e, ok
}

// GetOrCompute returns the cached value for key, starting factory when there
// is none. Concurrent callers for the same key share one computation. Errors
// are returned to every waiter but are not kept in the cache.
func (c *Cache[V]) GetOrCompute(ctx context.Context, key string, factory Factory[V]) (V, error) {
	logger := zerolog.Ctx(ctx)

	c.mu.Lock()
	if e, ok := c.lookup(key); ok {
		c.mu.Unlock()
		logger.Trace().Str("cache", c.useCase).Str("key", key).Msg("cache hit")
		return e.wait(ctx)
	}

	e := &entry[V]{done: make(chan struct{})}
	c.store.Set(key, e, gocache.NoExpiration)
	c.mu.Unlock()

	logger.Trace().Str("cache", c.useCase).Str("key", key).Msg("cache miss")

	go func() {
		defer close(e.done)
		e.value, e.err = factory(context.WithoutCancel(ctx))
		if e.err == nil {
			return
		}
		c.mu.Lock()
		defer c.mu.Unlock()
		if cur, ok := c.lookup(key); ok && cur == e {
			c.store.Delete(key)
		}
	}()

	return e.wait(ctx)
}

// Peek returns the resolved value for key without starting a computation.
func (c *Cache[V]) Peek(key string) (V, bool) {
	var zero V
	c.mu.Lock()
	e, ok := c.lookup(key)
	c.mu.Unlock()
	if !ok {
		return zero, false
	}
	select {
	case <-e.done:
		if e.err != nil {
			return zero, false
		}
		return e.value, true
	default:
		return zero, false
	}
}

func (c *Cache[V]) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store.Delete(key)
}

func (c *Cache[V]) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store.Flush()
}

func (c *Cache[V]) Len() int {
	return c.store.ItemCount()
}
