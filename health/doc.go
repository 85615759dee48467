// Package health reports whether a configuration manager is in working order.
//
// A Checker reports a Status (Healthy, Degraded or Unhealthy) with details.
// CacheChecker verifies cache engine bookkeeping, memory use against a budget
// and hit rate. DocumentChecker verifies the backing file is present, has a
// supported format and optionally still parses. An Aggregator runs a set of
// checkers under one timeout and reports the worst status.
//
//	agg := health.NewAggregator(health.AggregatorConfig{Parallel: true})
//	agg.Register(health.NewCacheChecker(engine, health.CacheCheckerConfig{MinHitRate: 0.5}))
//	agg.Register(health.NewDocumentChecker(health.DocumentCheckerConfig{Path: "app.yaml"}))
//
//	report := agg.Run(ctx)
//	if report.Status == health.StatusUnhealthy {
//	    log.Printf("config unhealthy: %+v", report.Checks)
//	}
package health
