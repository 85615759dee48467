package health

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func fixed(name string, status Status) Checker {
	return NewCheckerFunc(name, func(context.Context) Result {
		return Result{Status: status, Message: name}
	})
}

func TestAggregator_RegisterOrder(t *testing.T) {
	agg := NewAggregator(AggregatorConfig{})
	agg.Register(fixed("document", StatusHealthy))
	agg.Register(fixed("cache", StatusHealthy))
	agg.Register(fixed("document", StatusDegraded))

	names := agg.CheckerNames()
	if len(names) != 2 || names[0] != "document" || names[1] != "cache" {
		t.Errorf("CheckerNames() = %v, want [document cache]", names)
	}

	r, err := agg.Check(context.Background(), "document")
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if r.Status != StatusDegraded {
		t.Errorf("Check().Status = %v, want replaced checker's StatusDegraded", r.Status)
	}
}

func TestAggregator_Unregister(t *testing.T) {
	agg := NewAggregator(AggregatorConfig{})
	agg.Register(fixed("a", StatusHealthy))
	agg.Register(fixed("b", StatusHealthy))
	agg.Unregister("a")
	agg.Unregister("missing")

	if names := agg.CheckerNames(); len(names) != 1 || names[0] != "b" {
		t.Errorf("CheckerNames() = %v, want [b]", names)
	}
	if _, err := agg.Check(context.Background(), "a"); !errors.Is(err, ErrCheckerNotFound) {
		t.Errorf("Check(a) error = %v, want ErrCheckerNotFound", err)
	}
}

func TestAggregator_Run(t *testing.T) {
	tests := []struct {
		name     string
		statuses []Status
		want     Status
	}{
		{"empty", nil, StatusHealthy},
		{"all healthy", []Status{StatusHealthy, StatusHealthy}, StatusHealthy},
		{"one degraded", []Status{StatusHealthy, StatusDegraded}, StatusDegraded},
		{"worst wins", []Status{StatusDegraded, StatusUnhealthy, StatusHealthy}, StatusUnhealthy},
	}

	for _, parallel := range []bool{false, true} {
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				agg := NewAggregator(AggregatorConfig{Parallel: parallel})
				for i, s := range tt.statuses {
					agg.Register(fixed(string(rune('a'+i)), s))
				}

				report := agg.Run(context.Background())
				if report.Status != tt.want {
					t.Errorf("Run().Status = %v, want %v", report.Status, tt.want)
				}
				if len(report.Checks) != len(tt.statuses) {
					t.Errorf("len(Checks) = %d, want %d", len(report.Checks), len(tt.statuses))
				}
				if report.Timestamp.IsZero() {
					t.Error("Timestamp should not be zero")
				}
			})
		}
	}
}

func TestAggregator_RunParallel(t *testing.T) {
	var running atomic.Int32
	var peak atomic.Int32
	slow := func(name string) Checker {
		return NewCheckerFunc(name, func(context.Context) Result {
			n := running.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			running.Add(-1)
			return Healthy(name)
		})
	}

	agg := NewAggregator(AggregatorConfig{Parallel: true})
	agg.Register(slow("a"))
	agg.Register(slow("b"))
	agg.Register(slow("c"))
	agg.Run(context.Background())

	if peak.Load() < 2 {
		t.Errorf("peak concurrency = %d, want at least 2", peak.Load())
	}
}

func TestAggregator_Timeout(t *testing.T) {
	agg := NewAggregator(AggregatorConfig{Timeout: 20 * time.Millisecond})
	agg.Register(NewCheckerFunc("stuck", func(ctx context.Context) Result {
		<-ctx.Done()
		time.Sleep(50 * time.Millisecond)
		return Healthy("too late")
	}))

	r, err := agg.Check(context.Background(), "stuck")
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if r.Status != StatusUnhealthy {
		t.Errorf("Status = %v, want StatusUnhealthy", r.Status)
	}
	if !errors.Is(r.Error, ErrCheckTimeout) {
		t.Errorf("Error = %v, want ErrCheckTimeout", r.Error)
	}
}

func TestAggregator_DurationRecorded(t *testing.T) {
	agg := NewAggregator(AggregatorConfig{})
	agg.Register(NewCheckerFunc("sleepy", func(context.Context) Result {
		time.Sleep(5 * time.Millisecond)
		return Healthy("ok")
	}))

	r, _ := agg.Check(context.Background(), "sleepy")
	if r.Duration < 5*time.Millisecond {
		t.Errorf("Duration = %v, want >= 5ms", r.Duration)
	}
}
