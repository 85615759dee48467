package observe

import (
	"context"
	"errors"
	"time"

	"github.com/jonwraymond/confcache/cache"
)

// ExecuteFunc is the signature of an instrumented document operation. target
// is the dot path the operation concerns, or empty.
type ExecuteFunc func(ctx context.Context, doc DocumentMeta, target string) (any, error)

// Middleware wraps document operations with tracing, metrics and logging.
//
// Contract:
//   - Concurrency: Wrap() returns a thread-safe ExecuteFunc.
//   - Context: Propagates context through tracing spans.
//   - Errors: Errors from wrapped function are recorded and propagated unchanged.
//   - Ownership: Results are passed through without modification.
type Middleware struct {
	tracer  Tracer
	metrics Metrics
	logger  Logger
}

// NewMiddleware creates a Middleware. Nil components are replaced by no-ops.
func NewMiddleware(tracer Tracer, metrics Metrics, logger Logger) *Middleware {
	if tracer == nil {
		tracer = NewNoopTracer()
	}
	if metrics == nil {
		metrics = NopMetrics()
	}
	if logger == nil {
		logger = NopLogger()
	}
	return &Middleware{
		tracer:  tracer,
		metrics: metrics,
		logger:  logger,
	}
}

// Wrap instruments fn as a run of op. An error wrapping cache.ErrNotFound is
// returned unchanged but recorded as a successful lookup of a missing path.
func (m *Middleware) Wrap(op Operation, fn ExecuteFunc) ExecuteFunc {
	return func(ctx context.Context, doc DocumentMeta, target string) (any, error) {
		ctx, span := m.tracer.StartSpan(ctx, doc, op, target)
		start := time.Now()

		result, err := fn(ctx, doc, target)

		duration := time.Since(start)
		recorded := err
		if errors.Is(err, cache.ErrNotFound) {
			recorded = nil
		}
		m.tracer.EndSpan(span, recorded)
		m.metrics.RecordOperation(ctx, doc, op, duration, recorded)

		logger := m.logger.WithDocument(doc)
		fields := []Field{
			{Key: "operation", Value: string(op)},
			{Key: "duration_ms", Value: float64(duration.Microseconds()) / 1000},
		}
		if target != "" {
			fields = append(fields, Field{Key: "config.path", Value: target})
		}

		switch {
		case recorded != nil:
			fields = append(fields, Field{Key: "error", Value: err.Error()})
			logger.Error(ctx, "config operation failed", fields...)
		case err != nil:
			logger.Debug(ctx, "config path not found", fields...)
		case op.verbose():
			logger.Debug(ctx, "config operation completed", fields...)
		default:
			logger.Info(ctx, "config operation completed", fields...)
		}

		return result, err
	}
}

// MiddlewareFromObserver creates a Middleware from an Observer.
func MiddlewareFromObserver(obs Observer) (*Middleware, error) {
	if obs == nil {
		return nil, ErrNilObserver
	}

	metrics, err := NewMetrics(obs.Meter())
	if err != nil {
		return nil, err
	}

	return NewMiddleware(NewTracer(obs.Tracer()), metrics, obs.Logger()), nil
}
