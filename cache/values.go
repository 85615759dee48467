package cache

import (
	"context"
	"errors"
	"fmt"
)

// ValueCache is the read-through entry point for plain values, stored in a
// UnifiedCache under "key:{path}" keys.
//
// Contract:
// - Concurrency: safe for concurrent use; loaders run without locks held.
// - Errors: loader errors other than ErrNotFound propagate and are not cached.
// - Defaults: a not-found default is cached like any other value.
type ValueCache struct {
	cache *UnifiedCache
	keys  Keyer
}

// NewValueCache creates a ValueCache. If keys is nil, a fresh KeyCache is used.
func NewValueCache(c *UnifiedCache, keys Keyer) (*ValueCache, error) {
	if c == nil {
		return nil, fmt.Errorf("%w: nil cache", ErrInvalidArgument)
	}
	if keys == nil {
		keys = NewKeyCache()
	}
	return &ValueCache{cache: c, keys: keys}, nil
}

// Key returns the canonical cache key for loc.
func (v *ValueCache) Key(loc Location) (string, error) {
	return v.keys.GenerateKey(KindKey, loc)
}

// Get returns the value at loc. On a cache miss loader is called with the
// canonical dot path; if it reports ErrNotFound, def is cached and returned.
func (v *ValueCache) Get(ctx context.Context, loc Location, loader Loader, def any) (any, error) {
	if loader == nil {
		return nil, fmt.Errorf("%w: nil loader", ErrInvalidArgument)
	}
	key, err := v.Key(loc)
	if err != nil {
		return nil, err
	}

	if val, ok := v.cache.lookup(key); ok {
		v.cache.recordHit()
		return val, nil
	}

	_, path, _ := ParseKey(key)
	policy := v.cache.Policy()
	ttl := policy.EffectiveTTL(0)

	val, err := loader(ctx, path)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
		val = def
		ttl = policy.notFoundTTL()
	}

	if _, err := v.cache.store(key, val, ttl); err != nil {
		return nil, err
	}
	v.cache.recordMiss()
	return val, nil
}

// Forget drops the cached value at loc and reports whether one was cached.
func (v *ValueCache) Forget(ctx context.Context, loc Location) (bool, error) {
	key, err := v.Key(loc)
	if err != nil {
		return false, err
	}
	return v.cache.Delete(ctx, key), nil
}

// InvalidateSubtree drops the cached value at path and every value below it.
func (v *ValueCache) InvalidateSubtree(path string) int {
	return v.cache.InvalidateFunc(Subtree(KindKey, path))
}
