package cache

import (
	"container/heap"
	"container/list"
	"context"
	"fmt"
	"sync"
	"time"
)

// Config configures a UnifiedCache.
type Config struct {
	// MaxSize is the maximum number of entries. Must be positive.
	MaxSize int

	// Policy controls entry expiry.
	Policy Policy

	// CleanupInterval enables a background sweep of expired entries.
	// Zero disables it; expired entries are still dropped when accessed.
	CleanupInterval time.Duration
}

// UnifiedCache is a bounded TTL+LRU store shared by values and sections.
//
// One mutex guards the entry map, the recency list, the expiry heap and the
// counters. The map and the list always hold the same key set; the heap holds
// exactly the entries that carry a TTL.
type UnifiedCache struct {
	mu      sync.Mutex
	maxSize int
	policy  Policy

	items  map[string]*list.Element
	lru    *list.List // Front = most recently used, Back = least recently used
	expiry expiryHeap
	memory int64

	hits          uint64
	misses        uint64
	evictions     uint64
	invalidations uint64
	expirations   uint64

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closed    bool
	closeOnce sync.Once
}

type entry struct {
	key         string
	value       any
	createdAt   time.Time
	lastAccess  time.Time
	expiresAt   time.Time
	hasExpiry   bool
	accessCount uint64
	size        int64
	heapIndex   int // -1 when the entry carries no TTL
}

func (e *entry) expired(now time.Time) bool {
	return e.hasExpiry && !now.Before(e.expiresAt)
}

// New creates a UnifiedCache.
func New(cfg Config) (*UnifiedCache, error) {
	if cfg.MaxSize <= 0 {
		return nil, fmt.Errorf("%w: max size must be positive, got %d", ErrInvalidArgument, cfg.MaxSize)
	}
	if err := cfg.Policy.Validate(); err != nil {
		return nil, err
	}
	if cfg.CleanupInterval < 0 {
		return nil, fmt.Errorf("%w: negative cleanup interval %v", ErrInvalidArgument, cfg.CleanupInterval)
	}

	c := &UnifiedCache{
		maxSize: cfg.MaxSize,
		policy:  cfg.Policy,
		items:   make(map[string]*list.Element),
		lru:     list.New(),
	}

	if cfg.CleanupInterval > 0 {
		ctx, cancel := context.WithCancel(context.Background())
		c.cancel = cancel
		c.wg.Add(1)
		go c.cleanupLoop(ctx, cfg.CleanupInterval)
	}

	return c, nil
}

// Policy returns the expiry policy the cache was built with.
func (c *UnifiedCache) Policy() Policy {
	return c.policy
}

// MaxSize returns the configured capacity.
func (c *UnifiedCache) MaxSize() int {
	return c.maxSize
}

// Get retrieves a value. A hit refreshes recency; an expired entry is removed
// and reported as a miss.
func (c *UnifiedCache) Get(_ context.Context, key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, ok := c.lookupLocked(key, time.Now())
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return v, ok
}

// Set stores a value with the policy's default TTL.
func (c *UnifiedCache) Set(_ context.Context, key string, value any) error {
	_, err := c.store(key, value, c.policy.EffectiveTTL(0))
	return err
}

// SetWithTTL stores a value with an explicit TTL, clamped to Policy.MaxTTL.
// A zero or negative ttl is rejected.
func (c *UnifiedCache) SetWithTTL(_ context.Context, key string, value any, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("%w: ttl must be positive, got %v", ErrInvalidArgument, ttl)
	}
	_, err := c.store(key, value, c.policy.EffectiveTTL(ttl))
	return err
}

// Delete removes an entry. It reports whether a live entry was removed.
func (c *UnifiedCache) Delete(_ context.Context, key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return false
	}
	live := !el.Value.(*entry).expired(time.Now())
	c.removeLocked(el)
	return live
}

// Contains reports whether key holds a live entry. It touches neither
// recency nor counters.
func (c *UnifiedCache) Contains(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	return ok && !el.Value.(*entry).expired(time.Now())
}

// Invalidate removes every entry whose key matches the glob pattern and
// returns the number removed. Matching entries that had already expired are
// dropped too but count as expirations, not invalidations.
func (c *UnifiedCache) Invalidate(pattern string) int {
	if !HasWildcard(pattern) {
		c.mu.Lock()
		defer c.mu.Unlock()

		el, ok := c.items[pattern]
		if !ok {
			return 0
		}
		expired := el.Value.(*entry).expired(time.Now())
		c.removeLocked(el)
		if expired {
			c.expirations++
			return 0
		}
		c.invalidations++
		return 1
	}
	return c.InvalidateFunc(Glob(pattern))
}

// InvalidateFunc removes every entry whose key satisfies match.
func (c *UnifiedCache) InvalidateFunc(match Matcher) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	removed := 0
	for key, el := range c.items {
		if !match(key) {
			continue
		}
		expired := el.Value.(*entry).expired(now)
		c.removeLocked(el)
		if expired {
			c.expirations++
			continue
		}
		removed++
	}
	c.invalidations += uint64(removed)
	return removed
}

// InvalidateAll empties the cache and returns the number of entries it held.
func (c *UnifiedCache) InvalidateAll() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(c.items)
	c.items = make(map[string]*list.Element)
	c.lru.Init()
	c.expiry = nil
	c.memory = 0
	c.invalidations += uint64(n)
	return n
}

// PurgeExpired removes every expired entry and returns how many were removed.
func (c *UnifiedCache) PurgeExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	removed := 0
	for len(c.expiry) > 0 && c.expiry[0].expired(now) {
		c.removeLocked(c.items[c.expiry[0].key])
		c.expirations++
		removed++
	}
	return removed
}

// Len returns the number of stored entries, including expired entries not yet
// discovered.
func (c *UnifiedCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Keys returns the stored keys from most to least recently used.
func (c *UnifiedCache) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]string, 0, c.lru.Len())
	for el := c.lru.Front(); el != nil; el = el.Next() {
		keys = append(keys, el.Value.(*entry).key)
	}
	return keys
}

// Stats returns a snapshot of the counters.
func (c *UnifiedCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Stats{
		Size:           len(c.items),
		MaxSize:        c.maxSize,
		Hits:           c.hits,
		Misses:         c.misses,
		Evictions:      c.evictions,
		Invalidations:  c.invalidations,
		Expirations:    c.expirations,
		MemoryEstimate: c.memory,
	}
}

// Verify checks that the entry map, the recency list and the expiry heap
// agree with each other.
func (c *UnifiedCache) Verify() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.verifyLocked()
}

// Close stops the cleanup goroutine. Further writes fail with ErrClosed.
// Close is safe to call multiple times.
func (c *UnifiedCache) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()

		// Cancel outside the lock so shutdown doesn't block readers/writers.
		if c.cancel != nil {
			c.cancel()
		}
		c.wg.Wait()
	})
	return nil
}

func (c *UnifiedCache) recordHit() {
	c.mu.Lock()
	c.hits++
	c.mu.Unlock()
}

func (c *UnifiedCache) recordMiss() {
	c.mu.Lock()
	c.misses++
	c.mu.Unlock()
}

// lookup reads an entry without counting a hit or miss.
func (c *UnifiedCache) lookup(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lookupLocked(key, time.Now())
}

func (c *UnifiedCache) lookupLocked(key string, now time.Time) (any, bool) {
	el, ok := c.items[key]
	if !ok {
		return nil, false
	}

	e := el.Value.(*entry)
	if e.expired(now) {
		c.removeLocked(el)
		c.expirations++
		return nil, false
	}

	e.lastAccess = now
	e.accessCount++
	c.lru.MoveToFront(el)
	return e.value, true
}

// store inserts or overwrites key at the most recent position. ttl is final:
// zero means the entry never expires. It reports whether a live entry was
// replaced.
func (c *UnifiedCache) store(key string, value any, ttl time.Duration) (bool, error) {
	size := estimateEntrySize(key, value)
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false, ErrClosed
	}

	if el, ok := c.items[key]; ok {
		e := el.Value.(*entry)
		replaced := !e.expired(now)

		c.memory += size - e.size
		e.value = value
		e.size = size
		e.createdAt = now
		e.lastAccess = now
		c.setExpiryLocked(e, now, ttl)

		// Updating counts as use; move to MRU.
		c.lru.MoveToFront(el)
		return replaced, nil
	}

	for len(c.items) >= c.maxSize {
		if err := c.evictOneLocked(now); err != nil {
			return false, err
		}
	}

	e := &entry{
		key:        key,
		value:      value,
		createdAt:  now,
		lastAccess: now,
		size:       size,
		heapIndex:  -1,
	}
	c.items[key] = c.lru.PushFront(e)
	c.memory += size
	c.setExpiryLocked(e, now, ttl)
	return false, nil
}

// evictOneLocked removes the oldest expired entry if any, else the least
// recently used one.
func (c *UnifiedCache) evictOneLocked(now time.Time) error {
	if len(c.expiry) > 0 && c.expiry[0].expired(now) {
		victim, ok := c.items[c.expiry[0].key]
		if !ok {
			return fmt.Errorf("%w: expiring key %q has no entry", ErrInvariantViolation, c.expiry[0].key)
		}
		c.removeLocked(victim)
		c.evictions++
		return nil
	}

	victim := c.lru.Back()
	if victim == nil {
		return fmt.Errorf("%w: %d entries indexed but recency list is empty", ErrInvariantViolation, len(c.items))
	}
	if _, ok := c.items[victim.Value.(*entry).key]; !ok {
		return fmt.Errorf("%w: recency list holds unindexed key %q", ErrInvariantViolation, victim.Value.(*entry).key)
	}
	c.removeLocked(victim)
	c.evictions++
	return nil
}

func (c *UnifiedCache) setExpiryLocked(e *entry, now time.Time, ttl time.Duration) {
	if ttl <= 0 {
		e.hasExpiry = false
		e.expiresAt = time.Time{}
		if e.heapIndex >= 0 {
			heap.Remove(&c.expiry, e.heapIndex)
		}
		return
	}

	e.hasExpiry = true
	e.expiresAt = now.Add(ttl)
	if e.heapIndex >= 0 {
		heap.Fix(&c.expiry, e.heapIndex)
	} else {
		heap.Push(&c.expiry, e)
	}
}

func (c *UnifiedCache) removeLocked(el *list.Element) {
	e := el.Value.(*entry)
	delete(c.items, e.key)
	c.lru.Remove(el)
	if e.heapIndex >= 0 {
		heap.Remove(&c.expiry, e.heapIndex)
	}
	c.memory -= e.size
}

func (c *UnifiedCache) verifyLocked() error {
	if len(c.items) != c.lru.Len() {
		return fmt.Errorf("%w: %d indexed entries, %d in recency list", ErrInvariantViolation, len(c.items), c.lru.Len())
	}
	if len(c.items) > c.maxSize {
		return fmt.Errorf("%w: size %d exceeds max %d", ErrInvariantViolation, len(c.items), c.maxSize)
	}

	withTTL := 0
	for el := c.lru.Front(); el != nil; el = el.Next() {
		e := el.Value.(*entry)
		if c.items[e.key] != el {
			return fmt.Errorf("%w: recency list entry %q not indexed", ErrInvariantViolation, e.key)
		}
		if e.hasExpiry {
			withTTL++
			if e.heapIndex < 0 || e.heapIndex >= len(c.expiry) || c.expiry[e.heapIndex] != e {
				return fmt.Errorf("%w: entry %q missing from expiry heap", ErrInvariantViolation, e.key)
			}
		}
	}
	if withTTL != len(c.expiry) {
		return fmt.Errorf("%w: %d entries with TTL, %d in expiry heap", ErrInvariantViolation, withTTL, len(c.expiry))
	}
	return nil
}

func (c *UnifiedCache) cleanupLoop(ctx context.Context, every time.Duration) {
	defer c.wg.Done()

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.PurgeExpired()
		}
	}
}

// expiryHeap orders entries by absolute expiry, earliest first.
type expiryHeap []*entry

func (h expiryHeap) Len() int           { return len(h) }
func (h expiryHeap) Less(i, j int) bool { return h[i].expiresAt.Before(h[j].expiresAt) }

func (h expiryHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].heapIndex = i
	h[j].heapIndex = j
}

func (h *expiryHeap) Push(x any) {
	e := x.(*entry)
	e.heapIndex = len(*h)
	*h = append(*h, e)
}

func (h *expiryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.heapIndex = -1
	*h = old[:n-1]
	return e
}

// Ensure UnifiedCache implements Cache
var _ Cache = (*UnifiedCache)(nil)
