package services_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"marketpipe/internal/services"
)

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"context canceled", context.Canceled, false},
		{"validation", services.Wrap(services.ErrValidation, "serp", "validate", "bad query", nil), false},
		{"configuration", services.Wrap(services.ErrConfiguration, "", "client", "api key required", nil), false},
		{"external service", services.Wrap(services.ErrExternalService, "serp", "search", "", errors.New("http 503")), true},
		{"plain error", errors.New("connection reset"), true},
		{"timeout", services.Wrap(services.ErrTimeout, "perplexity", "complete", "", nil), true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := services.IsRetryable(tc.err); got != tc.want {
				t.Fatalf("IsRetryable(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestWrapComposesDetail(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := services.Wrap(services.ErrExternalService, "serp", "search", "after 3 attempts", cause)
	if !errors.Is(err, services.ErrExternalService) {
		t.Fatal("marker lost")
	}
	if !errors.Is(err, cause) {
		t.Fatal("cause lost")
	}
	msg := err.Error()
	for _, part := range []string{"serp", "search", "after 3 attempts", "connection refused"} {
		if !strings.Contains(msg, part) {
			t.Fatalf("message %q missing %q", msg, part)
		}
	}
}

func TestWrapDefaultsMarker(t *testing.T) {
	err := services.Wrap(nil, "serp", "search", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("err = %v, want ErrTransient marker", err)
	}
}
