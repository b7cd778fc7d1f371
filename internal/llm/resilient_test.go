package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"
)

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

func fastConfig() ResilientConfig {
	return ResilientConfig{
		EnableRetry:    true,
		EnableBulkhead: true,
		MaxAttempts:    3,
		InitialDelay:   time.Millisecond,
		MaxConcurrent:  2,
	}
}

func TestNewResilientProvider(t *testing.T) {
	rp := NewResilientProvider(&mockProvider{name: "test"}, DefaultResilientConfig())
	defer rp.Close()

	if rp.Name() != "test" {
		t.Errorf("Name() = %v, want test", rp.Name())
	}
	if rp.circuitBreaker == nil || rp.retrier == nil || rp.bulkhead == nil || rp.rateLimit == nil {
		t.Error("all patterns should be enabled by default")
	}
}

func TestNewResilientProvider_NoPatterns(t *testing.T) {
	p := &mockProvider{name: "test", response: &Response{Content: "direct"}}
	rp := NewResilientProvider(p, ResilientConfig{})

	if rp.circuitBreaker != nil || rp.retrier != nil || rp.bulkhead != nil || rp.rateLimit != nil {
		t.Error("patterns should be nil when disabled")
	}

	resp, err := rp.Generate(context.Background(), &Request{})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if resp.Content != "direct" {
		t.Errorf("Content = %q", resp.Content)
	}
	if err := rp.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestResilientProvider_RetriesTransientErrors(t *testing.T) {
	p := &mockProvider{
		name:     "test",
		response: &Response{Content: "ok"},
		errs:     []error{&APIError{StatusCode: http.StatusServiceUnavailable, Body: "busy"}},
	}
	rp := NewResilientProvider(p, fastConfig())

	resp, err := rp.Generate(context.Background(), &Request{})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if resp.Content != "ok" {
		t.Errorf("Content = %q", resp.Content)
	}
	if p.calls != 2 {
		t.Errorf("calls = %d, want 2", p.calls)
	}
}

func TestResilientProvider_DoesNotRetryClientErrors(t *testing.T) {
	p := &mockProvider{
		name: "test",
		errs: []error{&APIError{StatusCode: http.StatusUnauthorized, Body: "bad key"}},
	}
	rp := NewResilientProvider(p, fastConfig())

	_, err := rp.Generate(context.Background(), &Request{})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want APIError", err)
	}
	if p.calls != 1 {
		t.Errorf("calls = %d, want 1", p.calls)
	}
}

func TestResilientProvider_WithCircuitBreaker(t *testing.T) {
	cfg := fastConfig()
	cfg.EnableCircuitBreaker = true
	p := &mockProvider{name: "test", response: &Response{Content: "ok"}}
	rp := NewResilientProvider(p, cfg)

	resp, err := rp.Generate(context.Background(), &Request{})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if resp.Content != "ok" {
		t.Errorf("Content = %q", resp.Content)
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"429", &APIError{StatusCode: 429}, true},
		{"500", &APIError{StatusCode: 500}, true},
		{"503 wrapped", fmt.Errorf("call: %w", &APIError{StatusCode: 503}), true},
		{"400", &APIError{StatusCode: 400}, false},
		{"401", &APIError{StatusCode: 401}, false},
		{"network timeout", fmt.Errorf("do request: %w", timeoutError{}), true},
		{"plain error", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isRetryable(tt.err); got != tt.want {
				t.Errorf("isRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
