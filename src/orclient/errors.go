package orclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrNoAPIKey indicates the API key is missing
	ErrNoAPIKey = errors.New("API key is required")

	// ErrEmptyPrompt indicates there is nothing to send
	ErrEmptyPrompt = errors.New("prompt is empty")
)

// NoResponse is returned as the reply when the upstream answers without content.
const NoResponse = "No response"

// APIError represents an error response from the upstream API.
type APIError struct {
	StatusCode int
	Type       string
	Message    string
	Code       string
	Model      string
	RequestID  string
	RetryAfter time.Duration // parsed Retry-After header, zero when absent
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("API error %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("API error %d: %s", e.StatusCode, e.Message)
}

// IsRateLimit returns true if this is a rate limit error.
func (e *APIError) IsRateLimit() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.Code == "rate_limit_exceeded"
}

// IsAuthError returns true if this is an authentication error.
func (e *APIError) IsAuthError() bool {
	return e.StatusCode == http.StatusUnauthorized || e.Code == "invalid_api_key"
}

// IsModelUnavailable returns true when the requested model cannot serve the request.
func (e *APIError) IsModelUnavailable() bool {
	if e.StatusCode == http.StatusNotFound {
		return true
	}
	switch e.Code {
	case "model_not_found", "model_decommissioned", "model_not_active":
		return true
	}
	msg := strings.ToLower(e.Message)
	if !strings.Contains(msg, "model") {
		return false
	}
	for _, hint := range []string{"not found", "does not exist", "unavailable", "not available", "decommissioned", "not supported"} {
		if strings.Contains(msg, hint) {
			return true
		}
	}
	return false
}

// RetryExhaustedError is returned when every rate-limit retry failed.
type RetryExhaustedError struct {
	Attempts int
	Last     *APIError
}

// Error implements the error interface.
func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("request failed after %d attempts: %v", e.Attempts, e.Last)
}

// Unwrap returns the last upstream error.
func (e *RetryExhaustedError) Unwrap() error {
	return e.Last
}

// IsRateLimited reports whether err ends in an upstream rate limit.
func IsRateLimited(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.IsRateLimit()
}

// IsModelUnavailable reports whether err says the model cannot be used.
func IsModelUnavailable(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.IsModelUnavailable()
}

// Describe renders a completion failure as text suitable for a chat message.
// Upstream failures carry the request id when the API sent one.
func Describe(err error) string {
	if err == nil {
		return ""
	}
	text := describe(err)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.RequestID != "" {
		text += fmt.Sprintf(" (request id %s)", apiErr.RequestID)
	}
	return text
}

func describe(err error) string {
	var exhausted *RetryExhaustedError
	var apiErr *APIError
	switch {
	case errors.As(err, &exhausted):
		return fmt.Sprintf("Error: the model is receiving too many requests (HTTP %d) and %d attempts failed. Please wait a moment and try again. Details: %s",
			exhausted.Last.StatusCode, exhausted.Attempts, exhausted.Last.Message)
	case errors.As(err, &apiErr) && apiErr.IsAuthError():
		return fmt.Sprintf("Error: the API rejected our credentials (HTTP %d): %s", apiErr.StatusCode, apiErr.Message)
	case errors.As(err, &apiErr) && apiErr.IsModelUnavailable():
		return fmt.Sprintf("Error: model %q is not available right now (HTTP %d): %s", apiErr.Model, apiErr.StatusCode, apiErr.Message)
	case errors.As(err, &apiErr):
		return fmt.Sprintf("Error: the API request failed (HTTP %d): %s", apiErr.StatusCode, apiErr.Message)
	case errors.Is(err, context.Canceled):
		return "Error: the request was cancelled before a reply arrived."
	case errors.Is(err, context.DeadlineExceeded):
		return "Error: the request timed out before a reply arrived."
	case errors.Is(err, ErrNoAPIKey):
		return "Error: no API key is configured for the chat model."
	default:
		return fmt.Sprintf("Error: could not reach the chat model: %v", err)
	}
}

// parseRetryAfter accepts delay-seconds (digits with an optional fraction) or
// an HTTP date. Anything else yields zero.
func parseRetryAfter(value string, now time.Time) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if strings.Trim(value, "0123456789.") == "" {
		seconds, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return 0
		}
		return time.Duration(seconds * float64(time.Second))
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}
