package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"
)

// SectionState records whether a section path has ever been asked for. It is
// history of intent, kept apart from whether the section is currently cached.
type SectionState int

const (
	// NotYetRequested is the state of a path no caller has asked for.
	NotYetRequested SectionState = iota
	// Requested is the state of a path passed to Get. Set and Delete never
	// record a request.
	Requested
)

func (s SectionState) String() string {
	switch s {
	case NotYetRequested:
		return "not_yet_requested"
	case Requested:
		return "requested"
	default:
		return fmt.Sprintf("SectionState(%d)", int(s))
	}
}

// Loader materializes the value at path. It returns an error wrapping
// ErrNotFound when nothing exists there.
type Loader func(ctx context.Context, path string) (any, error)

// Writer persists data at path.
type Writer func(ctx context.Context, path string, data any) error

// Deleter removes path and reports whether anything was removed.
type Deleter func(ctx context.Context, path string) (bool, error)

// GetOptions tunes a single SectionStore.Get call.
type GetOptions struct {
	// Eager skips the cache read and always invokes the loader.
	Eager bool

	// Default is returned and cached when the loader reports ErrNotFound.
	Default any
}

// SectionOption configures a SectionStore.
type SectionOption func(*SectionStore)

// WithKeyer derives section keys through k, so section locations share the
// key memo used for values.
func WithKeyer(k Keyer) SectionOption {
	return func(s *SectionStore) {
		if k != nil {
			s.keys = k
		}
	}
}

// WithCoalescedLoads collapses concurrent lazy loads of the same section into
// a single loader call.
func WithCoalescedLoads() SectionOption {
	return func(s *SectionStore) {
		s.coalesce = true
	}
}

// SectionStats summarizes lazy section bookkeeping.
type SectionStats struct {
	TotalSections  int    `json:"total_sections"`
	LoadedSections int    `json:"loaded_sections"`
	RedundantLoads uint64 `json:"redundant_loads"`
}

// LoadedRatio returns LoadedSections / TotalSections, or 0 with no sections.
func (s SectionStats) LoadedRatio() float64 {
	if s.TotalSections == 0 {
		return 0
	}
	return float64(s.LoadedSections) / float64(s.TotalSections)
}

// SectionStore lazily materializes configuration subtrees and keeps them in a
// UnifiedCache under "section:{path}" keys.
//
// Contract:
// - Concurrency: safe for concurrent use. Loaders, writers and deleters run
// without any store or cache lock held.
// - Errors: callback errors propagate unchanged and are never cached.
// - Counting: a lazy hit counts a hit, a lazy fill counts a miss, an eager
// call counts neither, and a failed call counts nothing.
type SectionStore struct {
	cache    *UnifiedCache
	keys     Keyer
	coalesce bool
	group    singleflight.Group

	mu        sync.Mutex
	states    map[string]SectionState
	redundant uint64
}

// NewSectionStore creates a SectionStore on top of c.
func NewSectionStore(c *UnifiedCache, opts ...SectionOption) (*SectionStore, error) {
	if c == nil {
		return nil, fmt.Errorf("%w: nil cache", ErrInvalidArgument)
	}
	s := &SectionStore{
		cache:  c,
		keys:   NewKeyCache(),
		states: make(map[string]SectionState),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// SectionKey returns the cache key for a section path.
func SectionKey(path string) string {
	return string(KindSection) + ":" + path
}

// Key returns the canonical "section:{path}" key for loc.
func (s *SectionStore) Key(loc Location) (string, error) {
	return s.keys.GenerateKey(KindSection, loc)
}

// Path returns the canonical dot path of loc, resolved through the keyer.
func (s *SectionStore) Path(loc Location) (string, error) {
	key, err := s.Key(loc)
	if err != nil {
		return "", err
	}
	_, path, _ := ParseKey(key)
	return path, nil
}

// State returns the recorded state of path.
func (s *SectionStore) State(path string) SectionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.states[path]
}

// Get returns the section at path, loading it on a miss or when opts.Eager
// is set. A loader error wrapping ErrNotFound caches and returns opts.Default.
func (s *SectionStore) Get(ctx context.Context, path string, loader Loader, opts GetOptions) (any, error) {
	key, err := sectionKeyFor(path)
	if err != nil {
		return nil, err
	}
	if loader == nil {
		return nil, fmt.Errorf("%w: nil loader for section %q", ErrInvalidArgument, path)
	}

	s.markRequested(path)

	if !opts.Eager {
		if v, ok := s.cache.lookup(key); ok {
			s.cache.recordHit()
			return v, nil
		}
	}

	var v any
	if s.coalesce && !opts.Eager {
		v, err, _ = s.group.Do(key, func() (any, error) {
			return s.fill(ctx, path, key, loader, opts)
		})
	} else {
		v, err = s.fill(ctx, path, key, loader, opts)
	}
	if err != nil {
		return nil, err
	}

	if !opts.Eager {
		s.cache.recordMiss()
	}
	return v, nil
}

// fill runs the loader and stores its result. No lock is held while the
// loader runs.
func (s *SectionStore) fill(ctx context.Context, path, key string, loader Loader, opts GetOptions) (any, error) {
	policy := s.cache.Policy()
	ttl := policy.EffectiveTTL(0)

	v, err := loader(ctx, path)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
		v = opts.Default
		ttl = policy.notFoundTTL()
	}

	replaced, err := s.cache.store(key, v, ttl)
	if err != nil {
		return nil, err
	}
	if replaced && !opts.Eager {
		// Another caller filled the entry while this loader ran.
		s.mu.Lock()
		s.redundant++
		s.mu.Unlock()
	}
	return v, nil
}

// Set persists data through writer. When updateCache is true the cached entry
// is overwritten with data; otherwise any cached copy is dropped.
func (s *SectionStore) Set(ctx context.Context, path string, data any, writer Writer, updateCache bool) error {
	key, err := sectionKeyFor(path)
	if err != nil {
		return err
	}
	if writer == nil {
		return fmt.Errorf("%w: nil writer for section %q", ErrInvalidArgument, path)
	}

	if err := writer(ctx, path, data); err != nil {
		return err
	}

	if !updateCache {
		s.cache.Delete(ctx, key)
		return nil
	}
	_, err = s.cache.store(key, data, s.cache.Policy().EffectiveTTL(0))
	return err
}

// Delete removes path through deleter. On success the cached entry and the
// recorded state are both dropped, whether or not deleter found anything.
func (s *SectionStore) Delete(ctx context.Context, path string, deleter Deleter) (bool, error) {
	key, err := sectionKeyFor(path)
	if err != nil {
		return false, err
	}
	if deleter == nil {
		return false, fmt.Errorf("%w: nil deleter for section %q", ErrInvalidArgument, path)
	}

	removed, err := deleter(ctx, path)
	if err != nil {
		return false, err
	}

	s.cache.Delete(ctx, key)
	s.mu.Lock()
	delete(s.states, path)
	s.mu.Unlock()
	return removed, nil
}

// Invalidate drops the cached copy of path. Its recorded state is kept.
func (s *SectionStore) Invalidate(path string) bool {
	return s.cache.Invalidate(SectionKey(path)) > 0
}

// InvalidateSubtree drops the cached copies of path and every section below it.
func (s *SectionStore) InvalidateSubtree(path string) int {
	return s.cache.InvalidateFunc(Subtree(KindSection, path))
}

// Clear drops every cached section and all recorded state.
func (s *SectionStore) Clear() int {
	n := s.cache.InvalidateFunc(func(key string) bool {
		kind, _, ok := ParseKey(key)
		return ok && kind == KindSection
	})
	s.mu.Lock()
	s.states = make(map[string]SectionState)
	s.mu.Unlock()
	return n
}

// Stats reports how many sections were requested and how many of those are
// currently cached.
func (s *SectionStore) Stats() SectionStats {
	s.mu.Lock()
	paths := make([]string, 0, len(s.states))
	for p, st := range s.states {
		if st == Requested {
			paths = append(paths, p)
		}
	}
	redundant := s.redundant
	s.mu.Unlock()

	loaded := 0
	for _, p := range paths {
		if s.cache.Contains(SectionKey(p)) {
			loaded++
		}
	}
	return SectionStats{
		TotalSections:  len(paths),
		LoadedSections: loaded,
		RedundantLoads: redundant,
	}
}

func (s *SectionStore) markRequested(path string) {
	s.mu.Lock()
	s.states[path] = Requested
	s.mu.Unlock()
}

func sectionKeyFor(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("%w: empty section path", ErrInvalidArgument)
	}
	key := SectionKey(path)
	if err := ValidateKey(key); err != nil {
		return "", fmt.Errorf("%w: section %q: %w", ErrInvalidArgument, path, err)
	}
	return key, nil
}
