package health

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestStatus_String(t *testing.T) {
	tests := []struct {
		status Status
		want   string
	}{
		{StatusHealthy, "healthy"},
		{StatusDegraded, "degraded"},
		{StatusUnhealthy, "unhealthy"},
		{Status(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.status.String(); got != tt.want {
				t.Errorf("Status.String() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStatus_Worse(t *testing.T) {
	tests := []struct {
		a, b Status
		want Status
	}{
		{StatusHealthy, StatusHealthy, StatusHealthy},
		{StatusHealthy, StatusDegraded, StatusDegraded},
		{StatusUnhealthy, StatusDegraded, StatusUnhealthy},
		{StatusDegraded, StatusHealthy, StatusDegraded},
	}

	for _, tt := range tests {
		if got := tt.a.Worse(tt.b); got != tt.want {
			t.Errorf("%v.Worse(%v) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestResult_JSON(t *testing.T) {
	r := Degraded("slow").WithDetails(map[string]any{"hits": 3})
	r.Error = errors.New("hidden")

	data, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if decoded["status"] != "degraded" {
		t.Errorf("status = %v, want degraded", decoded["status"])
	}
	if _, ok := decoded["Error"]; ok {
		t.Error("Error should not be serialized")
	}
}

func TestHealthy(t *testing.T) {
	result := Healthy("test message")

	if result.Status != StatusHealthy {
		t.Errorf("Status = %v, want StatusHealthy", result.Status)
	}
	if result.Message != "test message" {
		t.Errorf("Message = %v, want 'test message'", result.Message)
	}
	if result.Timestamp.IsZero() {
		t.Error("Timestamp should not be zero")
	}
}

func TestUnhealthy(t *testing.T) {
	testErr := errors.New("test error")
	result := Unhealthy("unhealthy message", testErr)

	if result.Status != StatusUnhealthy {
		t.Errorf("Status = %v, want StatusUnhealthy", result.Status)
	}
	if result.Error != testErr {
		t.Errorf("Error = %v, want %v", result.Error, testErr)
	}
}

func TestResult_WithDuration(t *testing.T) {
	result := Healthy("test").WithDuration(100 * time.Millisecond)
	if result.Duration != 100*time.Millisecond {
		t.Errorf("Duration = %v, want %v", result.Duration, 100*time.Millisecond)
	}
}

func TestCheckerFunc(t *testing.T) {
	checker := NewCheckerFunc("custom", func(ctx context.Context) Result {
		return Degraded("custom degraded")
	})

	if checker.Name() != "custom" {
		t.Errorf("Name() = %v, want custom", checker.Name())
	}
	if got := checker.Check(context.Background()); got.Status != StatusDegraded {
		t.Errorf("Check().Status = %v, want StatusDegraded", got.Status)
	}
}

func TestCheckerInterface(t *testing.T) {
	var _ Checker = (*CheckerFunc)(nil)
	var _ Checker = (*CacheChecker)(nil)
	var _ Checker = (*DocumentChecker)(nil)
}
