package orclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"
)

func TestAPIError(t *testing.T) {
	tests := []struct {
		name             string
		err              *APIError
		expectedMsg      string
		isRateLimit      bool
		isAuthError      bool
		modelUnavailable bool
	}{
		{
			name: "basic error",
			err: &APIError{
				StatusCode: 400,
				Message:    "Bad request",
			},
			expectedMsg: "API error 400: Bad request",
		},
		{
			name: "error with code",
			err: &APIError{
				StatusCode: 403,
				Message:    "Forbidden",
				Code:       "insufficient_permissions",
			},
			expectedMsg: "API error 403 (insufficient_permissions): Forbidden",
		},
		{
			name: "server error",
			err: &APIError{
				StatusCode: 500,
				Message:    "Internal server error",
			},
			expectedMsg: "API error 500: Internal server error",
		},
		{
			name: "rate limit error",
			err: &APIError{
				StatusCode: 429,
				Message:    "Too many requests",
				Code:       "rate_limit_exceeded",
			},
			expectedMsg: "API error 429 (rate_limit_exceeded): Too many requests",
			isRateLimit: true,
		},
		{
			name: "auth error",
			err: &APIError{
				StatusCode: 401,
				Message:    "Invalid API key",
				Code:       "invalid_api_key",
			},
			expectedMsg: "API error 401 (invalid_api_key): Invalid API key",
			isAuthError: true,
		},
		{
			name: "model not found status",
			err: &APIError{
				StatusCode: 404,
				Message:    "Not found",
			},
			expectedMsg:      "API error 404: Not found",
			modelUnavailable: true,
		},
		{
			name: "model decommissioned body",
			err: &APIError{
				StatusCode: 400,
				Message:    "The model `gemma-7b-it` has been decommissioned and is no longer supported",
			},
			expectedMsg:      "API error 400: The model `gemma-7b-it` has been decommissioned and is no longer supported",
			modelUnavailable: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Error() != tt.expectedMsg {
				t.Errorf("Error() = %v, want %v", tt.err.Error(), tt.expectedMsg)
			}
			if tt.err.IsRateLimit() != tt.isRateLimit {
				t.Errorf("IsRateLimit() = %v, want %v", tt.err.IsRateLimit(), tt.isRateLimit)
			}
			if tt.err.IsAuthError() != tt.isAuthError {
				t.Errorf("IsAuthError() = %v, want %v", tt.err.IsAuthError(), tt.isAuthError)
			}
			if tt.err.IsModelUnavailable() != tt.modelUnavailable {
				t.Errorf("IsModelUnavailable() = %v, want %v", tt.err.IsModelUnavailable(), tt.modelUnavailable)
			}
		})
	}
}

func TestRetryExhaustedError(t *testing.T) {
	last := &APIError{StatusCode: 429, Message: "slow down"}
	err := &RetryExhaustedError{Attempts: 4, Last: last}

	if !strings.Contains(err.Error(), "4 attempts") {
		t.Errorf("Error() = %v, want message containing '4 attempts'", err.Error())
	}
	if !errors.Is(err, last) {
		t.Error("errors.Is(err, last) = false, want true")
	}
	if !IsRateLimited(fmt.Errorf("wrapped: %w", err)) {
		t.Error("IsRateLimited() = false, want true")
	}
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		contains []string
	}{
		{
			name:     "nil",
			err:      nil,
			contains: []string{""},
		},
		{
			name:     "retries exhausted",
			err:      &RetryExhaustedError{Attempts: 4, Last: &APIError{StatusCode: 429, Message: "slow down"}},
			contains: []string{"HTTP 429", "4 attempts", "slow down"},
		},
		{
			name:     "auth",
			err:      &APIError{StatusCode: 401, Message: "bad key"},
			contains: []string{"credentials", "HTTP 401", "bad key"},
		},
		{
			name:     "model unavailable",
			err:      &APIError{StatusCode: 404, Message: "no such model", Model: "balanced"},
			contains: []string{`"balanced"`, "HTTP 404"},
		},
		{
			name:     "other api error",
			err:      &APIError{StatusCode: 500, Message: "boom"},
			contains: []string{"HTTP 500", "boom"},
		},
		{
			name:     "request id",
			err:      &APIError{StatusCode: 502, Message: "bad gateway", RequestID: "req_123"},
			contains: []string{"HTTP 502", "(request id req_123)"},
		},
		{
			name:     "request id behind retries",
			err:      &RetryExhaustedError{Attempts: 2, Last: &APIError{StatusCode: 429, Message: "slow down", RequestID: "req_9"}},
			contains: []string{"2 attempts", "(request id req_9)"},
		},
		{
			name:     "cancelled",
			err:      fmt.Errorf("failed to make request: %w", context.Canceled),
			contains: []string{"cancelled"},
		},
		{
			name:     "transport",
			err:      errors.New("dial tcp: connection refused"),
			contains: []string{"connection refused"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Describe(tt.err)
			for _, want := range tt.contains {
				if !strings.Contains(got, want) {
					t.Errorf("Describe() = %q, want it to contain %q", got, want)
				}
			}
		})
	}
}

func TestDescribeOmitsMissingRequestID(t *testing.T) {
	got := Describe(&APIError{StatusCode: 500, Message: "boom"})
	if strings.Contains(got, "request id") {
		t.Errorf("Describe() = %q, want no request id", got)
	}
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		value string
		want  time.Duration
	}{
		{"", 0},
		{"3", 3 * time.Second},
		{"1.5", 1500 * time.Millisecond},
		{now.Add(7 * time.Second).Format(http.TimeFormat), 7 * time.Second},
		{"garbage", 0},
		{"5abc", 0},
		{"-3", 0},
		{"+3", 0},
		{"NaN", 0},
		{"1.2.3", 0},
		{" 4 ", 4 * time.Second},
	}

	for _, tt := range tests {
		if got := parseRetryAfter(tt.value, now); got != tt.want {
			t.Errorf("parseRetryAfter(%q) = %v, want %v", tt.value, got, tt.want)
		}
	}
}
