package cache

import (
	"fmt"
	"strings"
	"sync"

	"github.com/jonwraymond/confcache/document"
)

// Location identifies a place in a configuration document, either as a dot
// path or as parent segments plus a key name. Exactly one form may be set.
type Location struct {
	// Dot is a dot-separated path such as "database.host".
	Dot string

	// Path holds the parent segments of Name, e.g. ["database"].
	Path []string

	// Name is the final segment, e.g. "host".
	Name string
}

// Dot returns a Location for a dot path.
func Dot(path string) Location {
	return Location{Dot: path}
}

// At returns a Location for name under the parent segments.
func At(path []string, name string) Location {
	return Location{Path: path, Name: name}
}

func (l Location) hasDot() bool      { return l.Dot != "" }
func (l Location) hasSegments() bool { return l.Name != "" || len(l.Path) > 0 }

// String renders the location for logs.
func (l Location) String() string {
	if l.hasDot() {
		return l.Dot
	}
	return document.JoinPath(l.Path, l.Name)
}

// Canonical returns the validated dot path loc denotes. Both location
// forms yield the same string for the same place.
func (l Location) Canonical() (string, error) {
	if err := l.check(); err != nil {
		return "", err
	}
	path, err := canonicalPath(l)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	return path, nil
}

func (l Location) check() error {
	switch {
	case l.hasDot() && l.hasSegments():
		return fmt.Errorf("%w: both dot path %q and path segments supplied", ErrInvalidArgument, l.Dot)
	case !l.hasDot() && !l.hasSegments():
		return fmt.Errorf("%w: no location supplied", ErrInvalidArgument)
	}
	return nil
}

// Keyer generates canonical cache keys for locations.
//
// Contract:
// - Determinism: equivalent locations must produce the same key.
// - Concurrency: implementations must be safe for concurrent use.
type Keyer interface {
	GenerateKey(kind Kind, loc Location) (string, error)
}

// KeyCache derives canonical "{kind}:{dot.path}" keys and memoizes them so
// hot lookups skip path validation.
type KeyCache struct {
	mu   sync.RWMutex
	memo map[string]string
}

// NewKeyCache creates an empty key memo.
func NewKeyCache() *KeyCache {
	return &KeyCache{memo: make(map[string]string)}
}

// GenerateKey returns the canonical key for loc. Supplying both location
// forms, or neither, fails with ErrInvalidArgument.
func (k *KeyCache) GenerateKey(kind Kind, loc Location) (string, error) {
	if kind == "" {
		return "", fmt.Errorf("%w: empty key kind", ErrInvalidArgument)
	}
	if err := loc.check(); err != nil {
		return "", err
	}

	id := memoID(kind, loc)

	k.mu.RLock()
	key, ok := k.memo[id]
	k.mu.RUnlock()
	if ok {
		return key, nil
	}

	path, err := loc.Canonical()
	if err != nil {
		return "", err
	}
	key = string(kind) + ":" + path
	if err := ValidateKey(key); err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	if existing, ok := k.memo[id]; ok {
		return existing, nil
	}
	k.memo[id] = key
	return key, nil
}

// Len returns the number of memoized keys.
func (k *KeyCache) Len() int {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return len(k.memo)
}

// Clear empties the memo. Cached values are unaffected.
func (k *KeyCache) Clear() {
	k.mu.Lock()
	k.memo = make(map[string]string)
	k.mu.Unlock()
}

func canonicalPath(loc Location) (string, error) {
	if loc.hasDot() {
		segments, err := document.SplitPath(loc.Dot)
		if err != nil {
			return "", err
		}
		return strings.Join(segments, document.Separator), nil
	}

	if loc.Name == "" {
		return "", fmt.Errorf("%w: key name is required with path segments", document.ErrInvalidPath)
	}
	segments := make([]string, 0, len(loc.Path)+1)
	segments = append(segments, loc.Path...)
	segments = append(segments, loc.Name)
	if err := document.ValidateSegments(segments); err != nil {
		return "", err
	}
	return document.JoinPath(loc.Path, loc.Name), nil
}

// memoID identifies the raw arguments of a GenerateKey call. Segments cannot
// contain NUL, so the encoding is unambiguous.
func memoID(kind Kind, loc Location) string {
	var b strings.Builder
	b.WriteString(string(kind))
	if loc.hasDot() {
		b.WriteString("\x00d\x00")
		b.WriteString(loc.Dot)
		return b.String()
	}
	b.WriteString("\x00p")
	for _, s := range loc.Path {
		b.WriteByte(0)
		b.WriteString(s)
	}
	b.WriteString("\x00n\x00")
	b.WriteString(loc.Name)
	return b.String()
}

// Ensure KeyCache implements Keyer
var _ Keyer = (*KeyCache)(nil)
