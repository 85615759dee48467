package observe

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/jonwraymond/confcache/cache"
)

// StatsSource returns a fresh statistics report for one cache engine.
type StatsSource func() cache.Report

// CacheMetrics exports cache engine statistics as observable instruments.
// Values are read from the source on every collection, so they never drift
// from what the engine reports.
type CacheMetrics struct {
	reg metric.Registration
}

type cacheInstruments struct {
	hits          metric.Int64ObservableCounter
	misses        metric.Int64ObservableCounter
	evictions     metric.Int64ObservableCounter
	invalidations metric.Int64ObservableCounter
	expirations   metric.Int64ObservableCounter
	redundant     metric.Int64ObservableCounter

	size      metric.Int64ObservableGauge
	memory    metric.Int64ObservableGauge
	hitRatio  metric.Float64ObservableGauge
	requested metric.Int64ObservableGauge
	loaded    metric.Int64ObservableGauge
	keys      metric.Int64ObservableGauge
}

// RegisterCacheMetrics registers observable cache instruments on meter. Every
// observation carries the document's path.
func RegisterCacheMetrics(meter metric.Meter, meta DocumentMeta, source StatsSource) (*CacheMetrics, error) {
	if source == nil {
		return nil, ErrNilStatsSource
	}

	var (
		in   cacheInstruments
		errs []error
	)
	counter := func(name, desc string) metric.Int64ObservableCounter {
		c, err := meter.Int64ObservableCounter(name, metric.WithDescription(desc))
		errs = append(errs, err)
		return c
	}
	gauge := func(name, desc, unit string) metric.Int64ObservableGauge {
		g, err := meter.Int64ObservableGauge(name, metric.WithDescription(desc), metric.WithUnit(unit))
		errs = append(errs, err)
		return g
	}

	in.hits = counter("config.cache.hits", "Cache lookups served from the cache")
	in.misses = counter("config.cache.misses", "Cache lookups that required a load")
	in.evictions = counter("config.cache.evictions", "Entries evicted to respect the size bound")
	in.invalidations = counter("config.cache.invalidations", "Entries removed by invalidation")
	in.expirations = counter("config.cache.expirations", "Entries removed after their TTL elapsed")
	in.redundant = counter("config.sections.redundant_loads", "Section loads whose result replaced a concurrent fill")

	in.size = gauge("config.cache.size", "Entries currently stored", "{entry}")
	in.memory = gauge("config.cache.memory", "Estimated memory held by cached entries", "By")
	in.requested = gauge("config.sections.requested", "Section paths requested at least once", "{section}")
	in.loaded = gauge("config.sections.loaded", "Requested sections currently cached", "{section}")
	in.keys = gauge("config.keys.memoized", "Memoized cache keys", "{key}")

	hitRatio, err := meter.Float64ObservableGauge("config.cache.hit_ratio",
		metric.WithDescription("Hits divided by total lookups"),
		metric.WithUnit("1"),
	)
	errs = append(errs, err)
	in.hitRatio = hitRatio

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	opt := metric.WithAttributes(
		attribute.String("document.path", meta.Path),
		attribute.String("document.name", meta.Name()),
	)

	reg, err := meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		r := source()
		u, s := r.Unified, r.Sections

		o.ObserveInt64(in.hits, int64(u.Hits), opt)
		o.ObserveInt64(in.misses, int64(u.Misses), opt)
		o.ObserveInt64(in.evictions, int64(u.Evictions), opt)
		o.ObserveInt64(in.invalidations, int64(u.Invalidations), opt)
		o.ObserveInt64(in.expirations, int64(u.Expirations), opt)
		o.ObserveInt64(in.redundant, int64(s.RedundantLoads), opt)

		o.ObserveInt64(in.size, int64(u.Size), opt)
		o.ObserveInt64(in.memory, u.MemoryEstimate, opt)
		o.ObserveFloat64(in.hitRatio, u.HitRate, opt)
		o.ObserveInt64(in.requested, int64(s.TotalSections), opt)
		o.ObserveInt64(in.loaded, int64(s.LoadedSections), opt)
		o.ObserveInt64(in.keys, int64(r.Keys.Size), opt)
		return nil
	},
		in.hits, in.misses, in.evictions, in.invalidations, in.expirations, in.redundant,
		in.size, in.memory, in.hitRatio, in.requested, in.loaded, in.keys,
	)
	if err != nil {
		return nil, err
	}

	return &CacheMetrics{reg: reg}, nil
}

// Unregister stops observing the cache. It is safe to call on nil and more
// than once.
func (m *CacheMetrics) Unregister() error {
	if m == nil || m.reg == nil {
		return nil
	}
	err := m.reg.Unregister()
	m.reg = nil
	return err
}
