// Package observe provides observability for configuration documents and the
// cache engine that serves them.
//
// It is a pure instrumentation library: structured logging, OpenTelemetry
// spans around document operations, operation metrics, and observable
// counters over cache statistics. The only I/O is exporter setup.
package observe
