package manager

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonwraymond/confcache/cache"
	"github.com/jonwraymond/confcache/document"
	"github.com/jonwraymond/confcache/health"
	"github.com/jonwraymond/confcache/observe"
	"github.com/jonwraymond/confcache/resilience"
	"github.com/jonwraymond/confcache/secret"
)

// SectionOptions controls GetSection.
type SectionOptions struct {
	// Eager reloads the section from the document even when it is cached.
	Eager bool

	// Default is returned (and cached) when the section does not exist.
	Default any
}

// Manager gives cached access to one configuration file.
//
// Contract:
//   - Concurrency: safe for concurrent use. Reads share the document lock;
//     a write holds it exclusively together with the invalidation it causes,
//     so no read caches a value older than the last completed write.
//   - Loading: the document is loaded on first access if Load was not called.
//   - Ownership: SetValue and SetSection store copies. Values returned by
//     GetValue and GetSection may be shared with the cache and must be
//     treated as read-only; Data returns a private copy.
//   - Errors: missing paths are not errors; reads return the default.
type Manager struct {
	path     string
	strategy document.Strategy
	config   Config
	meta     observe.DocumentMeta

	logger   observe.Logger
	exec     *resilience.Executor
	resolver *secret.Resolver
	metrics  *observe.CacheMetrics
	health   *health.Aggregator

	loadOp      observe.ExecuteFunc
	saveOp      observe.ExecuteFunc
	reloadOp    observe.ExecuteFunc
	valueLoad   observe.ExecuteFunc
	sectionLoad observe.ExecuteFunc

	// Nil when the cache is disabled.
	engine   *cache.UnifiedCache
	keys     *cache.KeyCache
	values   *cache.ValueCache
	sections *cache.SectionStore

	mu      sync.RWMutex
	doc     map[string]any
	loaded  bool
	dirty   bool
	closed  bool
	version uint64 // bumped on every mutation of doc
}

// New creates a Manager for the file at path. The file is not read until
// Load or the first access.
func New(path string, cfg Config, opts ...Option) (*Manager, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("%w: empty document path", ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	strategy := o.strategy
	if strategy == nil {
		reg := o.registry
		if reg == nil {
			reg = document.DefaultRegistry
		}
		s, err := reg.StrategyFor(path)
		if err != nil {
			return nil, err
		}
		strategy = s
	}

	m := &Manager{
		path:     path,
		strategy: strategy,
		config:   cfg,
		meta:     observe.DocumentMeta{Path: path, Format: strategy.Name()},
		resolver: o.resolver,
	}

	mw, logger, err := instrument(o)
	if err != nil {
		return nil, err
	}
	m.logger = logger.WithDocument(m.meta)
	m.loadOp = mw.Wrap(observe.OpLoad, m.runLoad)
	m.reloadOp = mw.Wrap(observe.OpReload, m.runReload)
	m.saveOp = mw.Wrap(observe.OpSave, m.runSave)
	m.valueLoad = mw.Wrap(observe.OpValueLoad, m.readValue)
	m.sectionLoad = mw.Wrap(observe.OpSectionLoad, m.readSection)

	m.exec = m.newExecutor(o.retry)

	if cfg.EnableCache {
		if err := m.initCache(o.observer); err != nil {
			return nil, err
		}
	}

	m.health = health.NewAggregator(health.AggregatorConfig{Timeout: 5 * time.Second})
	m.health.Register(health.NewDocumentChecker(health.DocumentCheckerConfig{
		Path:         path,
		AllowMissing: cfg.AutoCreate,
		Pending:      m.IsDirty,
		Registry:     o.registry,
		Strategy:     strategy,
	}))
	if m.engine != nil {
		m.health.Register(health.NewCacheChecker(m.engine, health.CacheCheckerConfig{}))
	}

	return m, nil
}

func instrument(o options) (*observe.Middleware, observe.Logger, error) {
	logger := o.logger
	if o.observer == nil {
		if logger == nil {
			logger = observe.NopLogger()
		}
		return observe.NewMiddleware(nil, nil, logger), logger, nil
	}

	if logger == nil {
		mw, err := observe.MiddlewareFromObserver(o.observer)
		if err != nil {
			return nil, nil, err
		}
		return mw, o.observer.Logger(), nil
	}

	metrics, err := observe.NewMetrics(o.observer.Meter())
	if err != nil {
		return nil, nil, err
	}
	return observe.NewMiddleware(observe.NewTracer(o.observer.Tracer()), metrics, logger), logger, nil
}

func (m *Manager) newExecutor(override *resilience.RetryConfig) *resilience.Executor {
	var rc resilience.RetryConfig
	if override != nil {
		rc = *override
	}
	if rc.MaxAttempts <= 0 {
		rc.MaxAttempts = max(m.config.IORetries, 1)
	}
	onRetry := rc.OnRetry
	rc.OnRetry = func(attempt int, err error, delay time.Duration) {
		m.logger.Warn(context.Background(), "retrying document I/O",
			observe.Field{Key: "attempt", Value: attempt},
			observe.Field{Key: "delay_ms", Value: delay.Milliseconds()},
			observe.Field{Key: "error", Value: err},
		)
		if onRetry != nil {
			onRetry(attempt, err, delay)
		}
	}
	return resilience.NewExecutor(
		resilience.WithRetry(resilience.NewRetry(rc)),
		resilience.WithTimeout(m.config.IOTimeout),
	)
}

func (m *Manager) initCache(obs observe.Observer) error {
	engine, err := cache.New(cache.Config{
		MaxSize: m.config.CacheSize,
		Policy: cache.Policy{
			DefaultTTL:  m.config.CacheTTL,
			NotFoundTTL: m.config.NotFoundTTL,
		},
		CleanupInterval: m.config.CleanupInterval,
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	keys := cache.NewKeyCache()
	values, err := cache.NewValueCache(engine, keys)
	if err != nil {
		_ = engine.Close()
		return err
	}
	var sectionOpts []cache.SectionOption
	if m.config.CoalesceLoads {
		sectionOpts = append(sectionOpts, cache.WithCoalescedLoads())
	}
	sectionOpts = append(sectionOpts, cache.WithKeyer(keys))
	sections, err := cache.NewSectionStore(engine, sectionOpts...)
	if err != nil {
		_ = engine.Close()
		return err
	}

	m.engine, m.keys, m.values, m.sections = engine, keys, values, sections

	if obs != nil {
		cm, err := observe.RegisterCacheMetrics(obs.Meter(), m.meta, m.CacheStats)
		if err != nil {
			_ = engine.Close()
			return err
		}
		m.metrics = cm
	}
	return nil
}

// Path returns the document path.
func (m *Manager) Path() string { return m.path }

// Format returns the name of the document strategy.
func (m *Manager) Format() string { return m.strategy.Name() }

// Load reads the document, replacing the in-memory copy and dropping every
// cached value and section. With AutoCreate a missing file yields an empty,
// dirty document.
func (m *Manager) Load(ctx context.Context) error {
	_, err := m.loadOp(ctx, m.meta, "")
	return err
}

// Reload is Load that also discards unsaved changes with a warning.
func (m *Manager) Reload(ctx context.Context) error {
	_, err := m.reloadOp(ctx, m.meta, "")
	return err
}

func (m *Manager) runLoad(ctx context.Context, _ observe.DocumentMeta, _ string) (any, error) {
	return nil, m.load(ctx, false)
}

func (m *Manager) runReload(ctx context.Context, _ observe.DocumentMeta, _ string) (any, error) {
	if m.IsDirty() {
		m.logger.Warn(ctx, "discarding unsaved changes")
	}
	return nil, m.load(ctx, false)
}

// load reads the file and installs it. With lazy set a document installed
// concurrently by another caller wins.
func (m *Manager) load(ctx context.Context, lazy bool) error {
	tree, err := m.read(ctx)
	created := false
	if errors.Is(err, fs.ErrNotExist) && m.config.AutoCreate {
		tree, created, err = map[string]any{}, true, nil
	}
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if lazy && m.loaded {
		return nil
	}
	m.install(tree, created)
	if created {
		m.logger.Info(ctx, "document missing, starting empty")
	}
	return nil
}

// install swaps in tree. Caller holds m.mu.
func (m *Manager) install(tree map[string]any, dirty bool) {
	m.doc = tree
	m.loaded = true
	m.dirty = dirty
	m.version++
	if m.engine != nil {
		m.engine.InvalidateAll()
	}
}

func (m *Manager) read(ctx context.Context) (map[string]any, error) {
	var result atomic.Pointer[map[string]any]
	err := m.exec.Execute(ctx, func(ctx context.Context) error {
		tree, err := document.Load(m.path, m.strategy)
		if err != nil {
			if permanent(err) {
				return resilience.Permanent(err)
			}
			return err
		}
		result.Store(&tree)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return *result.Load(), nil
}

func permanent(err error) bool {
	return errors.Is(err, fs.ErrNotExist) ||
		errors.Is(err, fs.ErrPermission) ||
		errors.Is(err, document.ErrIsDirectory) ||
		errors.Is(err, document.ErrDecode) ||
		errors.Is(err, document.ErrEncode)
}

func (m *Manager) ensureLoaded(ctx context.Context) error {
	m.mu.RLock()
	loaded, closed := m.loaded, m.closed
	m.mu.RUnlock()
	switch {
	case closed:
		return ErrClosed
	case loaded:
		return nil
	}
	return m.load(ctx, true)
}

// Save writes the document. Changes made while the write is in flight
// keep the document dirty.
func (m *Manager) Save(ctx context.Context) error {
	_, err := m.saveOp(ctx, m.meta, "")
	return err
}

func (m *Manager) runSave(ctx context.Context, _ observe.DocumentMeta, _ string) (any, error) {
	if err := m.ensureLoaded(ctx); err != nil {
		return nil, err
	}

	m.mu.RLock()
	snapshot, _ := document.Clone(m.doc).(map[string]any)
	version := m.version
	m.mu.RUnlock()

	err := m.exec.Execute(ctx, func(ctx context.Context) error {
		if err := document.Save(m.path, m.strategy, snapshot); err != nil {
			if permanent(err) {
				return resilience.Permanent(err)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	if m.version == version {
		m.dirty = false
	}
	m.mu.Unlock()
	return nil, nil
}

// IsLoaded reports whether a document is in memory.
func (m *Manager) IsLoaded() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loaded
}

// IsDirty reports whether the in-memory document has unsaved changes.
func (m *Manager) IsDirty() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.dirty
}

// Data returns a deep copy of the whole document.
func (m *Manager) Data(ctx context.Context) (map[string]any, error) {
	if err := m.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out, _ := document.Clone(m.doc).(map[string]any)
	return out, nil
}

// Replace swaps in a new document, marks it dirty and drops every cached
// entry.
func (m *Manager) Replace(ctx context.Context, tree map[string]any) error {
	if tree == nil {
		tree = map[string]any{}
	}
	cp, _ := document.Clone(tree).(map[string]any)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.install(cp, true)
	m.logger.Debug(ctx, "document replaced")
	return nil
}

// GetValue returns the value at loc, or def when nothing is there. Defaults
// are cached like found values.
func (m *Manager) GetValue(ctx context.Context, loc cache.Location, def any) (any, error) {
	if err := m.ensureLoaded(ctx); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}

	if m.values != nil {
		return m.values.Get(ctx, loc, m.loadValue, def)
	}

	path, err := loc.Canonical()
	if err != nil {
		return nil, err
	}
	v, err := m.loadValue(ctx, path)
	if errors.Is(err, cache.ErrNotFound) {
		return def, nil
	}
	return v, err
}

// HasValue reports whether loc exists in the document. The cache is not
// consulted.
func (m *Manager) HasValue(ctx context.Context, loc cache.Location) (bool, error) {
	segments, err := segmentsOf(loc)
	if err != nil {
		return false, err
	}
	if err := m.ensureLoaded(ctx); err != nil {
		return false, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := document.Navigate(m.doc, segments, false)
	return ok, nil
}

// SetValue writes a copy of value at loc, creating intermediate mappings.
// With overwrite false an existing value is kept and SetValue reports
// false. A write drops the cached value, everything cached below it and
// every cached section containing it.
func (m *Manager) SetValue(ctx context.Context, loc cache.Location, value any, overwrite bool) (bool, error) {
	segments, err := segmentsOf(loc)
	if err != nil {
		return false, err
	}
	if err := m.ensureLoaded(ctx); err != nil {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false, ErrClosed
	}

	written, err := document.SetAt(m.doc, segments, document.Clone(value), overwrite)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrNotMapping, err)
	}
	if !written {
		return false, nil
	}
	m.touch()
	m.invalidateValue(ctx, strings.Join(segments, document.Separator))
	return true, nil
}

// DeleteValue removes the value at loc and reports whether it existed.
func (m *Manager) DeleteValue(ctx context.Context, loc cache.Location) (bool, error) {
	segments, err := segmentsOf(loc)
	if err != nil {
		return false, err
	}
	if err := m.ensureLoaded(ctx); err != nil {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false, ErrClosed
	}

	if !document.DeleteAt(m.doc, segments) {
		return false, nil
	}
	m.touch()
	m.invalidateValue(ctx, strings.Join(segments, document.Separator))
	return true, nil
}

// GetSection returns the subtree at loc. It is materialized from the
// document on first request (or every request with Eager) and served from
// the cache afterwards.
func (m *Manager) GetSection(ctx context.Context, loc cache.Location, opts SectionOptions) (any, error) {
	path, err := m.sectionPath(loc)
	if err != nil {
		return nil, err
	}
	if err := m.ensureLoaded(ctx); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}

	if m.sections != nil {
		return m.sections.Get(ctx, path, m.loadSection, cache.GetOptions{Eager: opts.Eager, Default: opts.Default})
	}

	v, err := m.loadSection(ctx, path)
	if errors.Is(err, cache.ErrNotFound) {
		return opts.Default, nil
	}
	return v, err
}

// SetSection writes a copy of data at loc. With updateCache the cached
// section is replaced by data. Without it the cached section is dropped
// rather than kept as loaded, so the next GetSection reloads from the
// document. Cached values under loc and cached sections above or below it
// are dropped either way. SetSection does not count as a request for the
// section in CacheStats.
func (m *Manager) SetSection(ctx context.Context, loc cache.Location, data any, updateCache bool) error {
	path, segments, err := m.sectionSegments(loc)
	if err != nil {
		return err
	}
	if err := m.ensureLoaded(ctx); err != nil {
		return err
	}

	// The document and the cache each get their own copy.
	raw := document.Clone(data)
	cached := document.Clone(raw)
	if m.resolver != nil && updateCache && m.sections != nil {
		if cached, err = m.resolver.ResolveTree(ctx, raw); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}

	write := func(_ context.Context, _ string, _ any) error {
		if _, err := document.SetAt(m.doc, segments, raw, true); err != nil {
			return fmt.Errorf("%w: %w", ErrNotMapping, err)
		}
		m.touch()
		return nil
	}

	if m.sections == nil {
		return write(ctx, path, raw)
	}
	if err := m.sections.Set(ctx, path, cached, write, updateCache); err != nil {
		return err
	}
	m.invalidateSection(ctx, path)
	return nil
}

// DeleteSection removes the subtree at loc and reports whether it existed.
func (m *Manager) DeleteSection(ctx context.Context, loc cache.Location) (bool, error) {
	path, segments, err := m.sectionSegments(loc)
	if err != nil {
		return false, err
	}
	if err := m.ensureLoaded(ctx); err != nil {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false, ErrClosed
	}

	del := func(context.Context, string) (bool, error) {
		removed := document.DeleteAt(m.doc, segments)
		if removed {
			m.touch()
		}
		return removed, nil
	}

	if m.sections == nil {
		return del(ctx, path)
	}
	removed, err := m.sections.Delete(ctx, path, del)
	if err != nil {
		return false, err
	}
	m.invalidateSection(ctx, path)
	return removed, nil
}

// loadValue adapts the instrumented value read to cache.Loader.
func (m *Manager) loadValue(ctx context.Context, path string) (any, error) {
	return m.valueLoad(ctx, m.meta, path)
}

// loadSection adapts the instrumented section read to cache.Loader.
func (m *Manager) loadSection(ctx context.Context, path string) (any, error) {
	return m.sectionLoad(ctx, m.meta, path)
}

// readValue and readSection run with m.mu held for reading.
func (m *Manager) readValue(ctx context.Context, _ observe.DocumentMeta, path string) (any, error) {
	return m.materialize(ctx, path)
}

func (m *Manager) readSection(ctx context.Context, _ observe.DocumentMeta, path string) (any, error) {
	return m.materialize(ctx, path)
}

// materialize copies the subtree at path out of the document and expands
// references in it. A missing path reports cache.ErrNotFound.
func (m *Manager) materialize(ctx context.Context, path string) (any, error) {
	segments, err := document.SplitPath(path)
	if err != nil {
		return nil, err
	}
	v, ok := document.Navigate(m.doc, segments, false)
	if !ok {
		return nil, fmt.Errorf("%w: %s", cache.ErrNotFound, path)
	}
	v = document.Clone(v)
	if m.resolver != nil {
		return m.resolver.ResolveTree(ctx, v)
	}
	return v, nil
}

// touch records a mutation. Caller holds m.mu.
func (m *Manager) touch() {
	m.dirty = true
	m.version++
}

// invalidateValue drops cache entries made stale by a write at path: the
// value and its descendants, values above it, and every section above, at
// or below it. Caller holds m.mu.
func (m *Manager) invalidateValue(ctx context.Context, path string) {
	if m.engine == nil {
		return
	}
	n := m.engine.InvalidateFunc(cache.Any(
		cache.Subtree(cache.KindKey, path),
		cache.Ancestors(cache.KindKey, path),
		cache.Subtree(cache.KindSection, path),
		cache.Ancestors(cache.KindSection, path),
	))
	m.logger.Debug(ctx, "cache invalidated",
		observe.Field{Key: "config.path", Value: path},
		observe.Field{Key: "entries", Value: n},
	)
}

// invalidateSection drops cache entries made stale by a section write at
// path, leaving the section's own entry to the section store. Caller holds
// m.mu.
func (m *Manager) invalidateSection(ctx context.Context, path string) {
	below := string(cache.KindSection) + ":" + path + document.Separator
	n := m.engine.InvalidateFunc(cache.Any(
		cache.Subtree(cache.KindKey, path),
		cache.Ancestors(cache.KindKey, path),
		cache.Ancestors(cache.KindSection, path),
		func(key string) bool { return strings.HasPrefix(key, below) },
	))
	m.logger.Debug(ctx, "cache invalidated",
		observe.Field{Key: "config.path", Value: path},
		observe.Field{Key: "entries", Value: n},
	)
}

// CacheStats reports cache engine statistics. With the cache disabled every
// figure is zero.
func (m *Manager) CacheStats() cache.Report {
	return cache.Collect(m.engine, m.sections, m.keys)
}

// InvalidateCache drops cached entries whose key matches pattern ("*" and
// "?" wildcards, e.g. "key:database.*") and returns how many were dropped.
// An empty pattern drops everything.
func (m *Manager) InvalidateCache(pattern string) int {
	if m.engine == nil {
		return 0
	}
	if pattern == "" {
		return m.engine.InvalidateAll()
	}
	return m.engine.Invalidate(pattern)
}

// ClearCache drops every cached value and section.
func (m *Manager) ClearCache() int {
	return m.InvalidateCache("")
}

// ClearLazyCache drops every cached section and forgets which sections were
// requested.
func (m *Manager) ClearLazyCache() int {
	if m.sections == nil {
		return 0
	}
	return m.sections.Clear()
}

// ClearKeyCache empties the cache-key memo.
func (m *Manager) ClearKeyCache() {
	if m.keys != nil {
		m.keys.Clear()
	}
}

// Health runs the document and cache health checks.
func (m *Manager) Health(ctx context.Context) health.Report {
	return m.health.Run(ctx)
}

// Close stops the cache janitor and unregisters cache metrics. Further
// calls fail with ErrClosed. Close is idempotent.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	var errs []error
	if m.metrics != nil {
		errs = append(errs, m.metrics.Unregister())
	}
	if m.engine != nil {
		errs = append(errs, m.engine.Close())
	}
	return errors.Join(errs...)
}

// sectionPath resolves loc through the shared key memo when the cache is
// enabled.
func (m *Manager) sectionPath(loc cache.Location) (string, error) {
	if m.sections != nil {
		return m.sections.Path(loc)
	}
	return loc.Canonical()
}

func (m *Manager) sectionSegments(loc cache.Location) (string, []string, error) {
	path, err := m.sectionPath(loc)
	if err != nil {
		return "", nil, err
	}
	return path, strings.Split(path, document.Separator), nil
}

func segmentsOf(loc cache.Location) ([]string, error) {
	path, err := loc.Canonical()
	if err != nil {
		return nil, err
	}
	return document.SplitPath(path)
}
