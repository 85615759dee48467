package manager

import (
	"github.com/jonwraymond/confcache/document"
	"github.com/jonwraymond/confcache/observe"
	"github.com/jonwraymond/confcache/resilience"
	"github.com/jonwraymond/confcache/secret"
)

// Option configures a Manager.
type Option func(*options)

type options struct {
	observer observe.Observer
	logger   observe.Logger
	registry *document.Registry
	strategy document.Strategy
	resolver *secret.Resolver
	retry    *resilience.RetryConfig
}

// WithObserver traces, measures and logs document operations through obs
// and exports cache statistics on its meter.
func WithObserver(obs observe.Observer) Option {
	return func(o *options) {
		o.observer = obs
	}
}

// WithLogger sets the logger. It overrides the observer's logger.
func WithLogger(l observe.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithRegistry resolves the document format from r instead of
// document.DefaultRegistry.
func WithRegistry(r *document.Registry) Option {
	return func(o *options) {
		o.registry = r
	}
}

// WithStrategy fixes the document format regardless of file extension.
func WithStrategy(s document.Strategy) Option {
	return func(o *options) {
		o.strategy = s
	}
}

// WithResolver expands ${VAR} and secretref: references in values and
// sections as they are read. The document itself keeps the references.
func WithResolver(r *secret.Resolver) Option {
	return func(o *options) {
		o.resolver = r
	}
}

// WithRetry overrides the retry settings for document reads and writes.
// MaxAttempts defaults to Config.IORetries.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(o *options) {
		o.retry = &cfg
	}
}
