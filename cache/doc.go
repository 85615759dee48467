// Package cache is the caching and lazy-section-loading engine behind confcache.
//
// It provides a bounded TTL+LRU store (UnifiedCache) shared by plain values and
// lazily materialized configuration sections, a memo for canonical cache keys
// (KeyCache), wildcard invalidation, and a stats collector that reports on all
// of them.
//
// Keys have the shape "{kind}:{dot.path}", where kind is "key" for values and
// "section" for sections.
package cache
