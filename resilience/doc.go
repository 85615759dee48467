// Package resilience retries and time-bounds configuration file I/O.
//
// Reads and writes of configuration documents can fail transiently: an
// editor holding a lock, a network filesystem hiccup, a slow disk. Retry
// re-runs an operation with exponential, linear or constant backoff;
// Timeout bounds a single attempt; Executor composes the two.
//
// Errors that retrying cannot fix (a syntax error, an unsupported format, a
// missing file) should be wrapped with Permanent so the retry loop returns
// them at once:
//
//	exec := resilience.NewExecutor(
//	    resilience.WithRetry(resilience.NewRetry(resilience.RetryConfig{MaxAttempts: 3})),
//	    resilience.WithTimeout(5*time.Second),
//	)
//
//	err := exec.Execute(ctx, func(ctx context.Context) error {
//	    tree, err := document.Load(path, strategy)
//	    if err != nil {
//	        return resilience.Permanent(err)
//	    }
//	    data = tree
//	    return nil
//	})
package resilience
