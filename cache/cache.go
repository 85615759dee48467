package cache

import (
	"context"
	"errors"
	"strings"
	"time"
)

// MaxKeyLength is the maximum allowed length for a cache key.
const MaxKeyLength = 512

// Sentinel errors for cache operations.
var (
	ErrInvalidArgument    = errors.New("cache: invalid argument")
	ErrNotFound           = errors.New("cache: not found")
	ErrInvariantViolation = errors.New("cache: invariant violation")
	ErrClosed             = errors.New("cache: cache is closed")
	ErrInvalidKey         = errors.New("cache: key is invalid")
	ErrKeyTooLong         = errors.New("cache: key exceeds max length")
)

// Kind distinguishes what a cache key points at.
type Kind string

const (
	// KindKey marks a plain configuration value.
	KindKey Kind = "key"
	// KindSection marks a configuration subtree.
	KindSection Kind = "section"
)

// Cache is the interface for the value store underlying the engine.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Payload: values are opaque and never validated.
// - Errors: Get never errors; it returns (nil, false) on miss or expiry.
type Cache interface {
	// Get retrieves a cached value. Returns (nil, false) on miss.
	Get(ctx context.Context, key string) (any, bool)

	// Set stores a value with the default TTL.
	Set(ctx context.Context, key string, value any) error

	// SetWithTTL stores a value with an explicit, positive TTL.
	SetWithTTL(ctx context.Context, key string, value any, ttl time.Duration) error

	// Delete removes a cached value and reports whether a live entry was removed.
	Delete(ctx context.Context, key string) bool
}

// ValidateKey checks if a key is valid for caching.
func ValidateKey(key string) error {
	if key == "" || strings.TrimSpace(key) == "" {
		return ErrInvalidKey
	}
	if len(key) > MaxKeyLength {
		return ErrKeyTooLong
	}
	// Reject keys with newlines or carriage returns
	if strings.ContainsAny(key, "\n\r") {
		return ErrInvalidKey
	}
	return nil
}

// ParseKey splits a cache key into its kind and dot path.
func ParseKey(key string) (Kind, string, bool) {
	kind, path, ok := strings.Cut(key, ":")
	if !ok || kind == "" || path == "" {
		return "", "", false
	}
	return Kind(kind), path, true
}
