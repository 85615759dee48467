package cache

import (
	"fmt"
	"time"
)

// Policy configures expiry behavior.
type Policy struct {
	// DefaultTTL is the TTL to use when none is specified.
	// If zero, entries never expire by default.
	DefaultTTL time.Duration

	// MaxTTL is the maximum allowed lifetime. TTLs are clamped to this and
	// entries without a TTL receive it.
	// If zero, no maximum is enforced.
	MaxTTL time.Duration

	// NotFoundTTL is the TTL for defaults cached after a loader reported
	// ErrNotFound. If zero, DefaultTTL applies.
	NotFoundTTL time.Duration
}

// DefaultPolicy returns the default expiry policy.
// DefaultTTL: 1 hour, no MaxTTL, not-found results follow DefaultTTL.
func DefaultPolicy() Policy {
	return Policy{
		DefaultTTL: 1 * time.Hour,
	}
}

// NoExpiryPolicy returns a policy under which entries live until evicted.
func NoExpiryPolicy() Policy {
	return Policy{}
}

// Validate rejects negative durations.
func (p Policy) Validate() error {
	switch {
	case p.DefaultTTL < 0:
		return fmt.Errorf("%w: negative default TTL %v", ErrInvalidArgument, p.DefaultTTL)
	case p.MaxTTL < 0:
		return fmt.Errorf("%w: negative max TTL %v", ErrInvalidArgument, p.MaxTTL)
	case p.NotFoundTTL < 0:
		return fmt.Errorf("%w: negative not-found TTL %v", ErrInvalidArgument, p.NotFoundTTL)
	}
	return nil
}

// Expires reports whether entries stored with the default TTL expire.
func (p Policy) Expires() bool {
	return p.DefaultTTL > 0 || p.MaxTTL > 0
}

// EffectiveTTL returns the TTL to use, applying defaults and clamping.
// A result of zero means "never expires".
func (p Policy) EffectiveTTL(override time.Duration) time.Duration {
	// Use default if no override (or negative override)
	ttl := override
	if ttl <= 0 {
		ttl = p.DefaultTTL
	}

	// Clamp to MaxTTL if set
	if p.MaxTTL > 0 && (ttl <= 0 || ttl > p.MaxTTL) {
		ttl = p.MaxTTL
	}

	return ttl
}

// notFoundTTL returns the TTL for cached not-found defaults.
func (p Policy) notFoundTTL() time.Duration {
	return p.EffectiveTTL(p.NotFoundTTL)
}
