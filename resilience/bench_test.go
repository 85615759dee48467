package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func BenchmarkRetry_NoRetries(b *testing.B) {
	r := NewRetry(RetryConfig{MaxAttempts: 3})
	ctx := context.Background()
	op := func(context.Context) error { return nil }

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = r.Execute(ctx, op)
	}
}

func BenchmarkRetry_Permanent(b *testing.B) {
	r := NewRetry(RetryConfig{MaxAttempts: 3})
	ctx := context.Background()
	perm := Permanent(errors.New("syntax"))
	op := func(context.Context) error { return perm }

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = r.Execute(ctx, op)
	}
}

func BenchmarkTimeout_Execute_Fast(b *testing.B) {
	to := NewTimeout(TimeoutConfig{Timeout: time.Second})
	ctx := context.Background()
	op := func(context.Context) error { return nil }

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = to.Execute(ctx, op)
	}
}

func BenchmarkExecutor(b *testing.B) {
	e := NewExecutor(
		WithRetry(NewRetry(RetryConfig{MaxAttempts: 3})),
		WithTimeout(time.Second),
	)
	ctx := context.Background()
	op := func(context.Context) error { return nil }

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = e.Execute(ctx, op)
	}
}
