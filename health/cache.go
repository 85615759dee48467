package health

import (
	"context"
	"fmt"

	"github.com/jonwraymond/confcache/cache"
)

// CacheSource is the view of a cache engine the cache checker needs.
// *cache.UnifiedCache satisfies it.
type CacheSource interface {
	Stats() cache.Stats
	Verify() error
}

// CacheCheckerConfig configures the cache health checker.
type CacheCheckerConfig struct {
	// MemoryBudget is the expected upper bound of the cache memory estimate
	// in bytes. Zero disables the memory check.
	MemoryBudget int64

	// WarningThreshold is the fraction of MemoryBudget that triggers degraded
	// status. Value should be between 0 and 1. Default: 0.8 (80%)
	WarningThreshold float64

	// CriticalThreshold is the fraction of MemoryBudget that triggers
	// unhealthy status. Value should be between 0 and 1. Default: 0.95 (95%)
	CriticalThreshold float64

	// MinHitRate reports degraded when the hit rate falls below it once
	// MinRequests lookups have been made. Zero disables the check.
	MinHitRate float64

	// MinRequests is the sample size required before MinHitRate applies.
	// Default: 100
	MinRequests uint64
}

// CacheChecker checks that a cache engine's bookkeeping is consistent and
// that it is earning its keep.
type CacheChecker struct {
	source CacheSource
	config CacheCheckerConfig
}

// NewCacheChecker creates a new cache health checker.
func NewCacheChecker(source CacheSource, config CacheCheckerConfig) *CacheChecker {
	if config.WarningThreshold <= 0 || config.WarningThreshold >= 1 {
		config.WarningThreshold = 0.8
	}
	if config.CriticalThreshold <= 0 || config.CriticalThreshold >= 1 {
		config.CriticalThreshold = 0.95
	}
	if config.CriticalThreshold < config.WarningThreshold {
		config.CriticalThreshold = config.WarningThreshold + 0.1
		if config.CriticalThreshold >= 1 {
			config.CriticalThreshold = 0.99
		}
	}
	if config.MinRequests == 0 {
		config.MinRequests = 100
	}

	return &CacheChecker{source: source, config: config}
}

// Name returns the name of this checker.
func (c *CacheChecker) Name() string {
	return "cache"
}

// Check verifies cache invariants, then memory use and hit rate.
func (c *CacheChecker) Check(ctx context.Context) Result {
	if r, done := canceled(ctx); done {
		return r
	}
	if c.source == nil {
		return Healthy("cache disabled")
	}

	if err := c.source.Verify(); err != nil {
		return Unhealthy("cache bookkeeping inconsistent", fmt.Errorf("%w: %w", ErrCheckFailed, err))
	}

	st := c.source.Stats()
	details := map[string]any{
		"size":            st.Size,
		"max_size":        st.MaxSize,
		"hits":            st.Hits,
		"misses":          st.Misses,
		"hit_rate":        st.HitRate(),
		"evictions":       st.Evictions,
		"invalidations":   st.Invalidations,
		"expirations":     st.Expirations,
		"memory_estimate": st.MemoryEstimate,
	}

	if budget := c.config.MemoryBudget; budget > 0 {
		usage := float64(st.MemoryEstimate) / float64(budget)
		details["memory_budget"] = budget
		details["memory_percent"] = usage * 100

		if usage >= c.config.CriticalThreshold {
			return Unhealthy(
				fmt.Sprintf("cache memory critical: %.1f%% of budget", usage*100),
				ErrCheckFailed,
			).WithDetails(details)
		}
		if usage >= c.config.WarningThreshold {
			return Degraded(
				fmt.Sprintf("cache memory high: %.1f%% of budget", usage*100),
			).WithDetails(details)
		}
	}

	if c.config.MinHitRate > 0 && st.Requests() >= c.config.MinRequests && st.HitRate() < c.config.MinHitRate {
		return Degraded(
			fmt.Sprintf("cache hit rate low: %.1f%%", st.HitRate()*100),
		).WithDetails(details)
	}

	return Healthy(fmt.Sprintf("cache holds %d of %d entries", st.Size, st.MaxSize)).WithDetails(details)
}
