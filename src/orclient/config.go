package orclient

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/beymax11/chatstudio/src/langdetect"
)

// Config holds configuration for the completion client
type Config struct {
	APIKey       string          // Bearer token for the upstream API
	BaseURL      string          // Base URL of the OpenAI-compatible API
	Logger       *slog.Logger    // Logger for debugging
	Timeout      time.Duration   // HTTP timeout per attempt
	MaxRetries   int             // Retries after a 429 response
	Backoff      []time.Duration // Wait per retry when no Retry-After header is sent
	MaxBackoff   time.Duration   // Wait for retries beyond the Backoff schedule
	SystemPrompt string          // Instruction sent before the history
	HTTPClient   *http.Client    // Overrides the default HTTP client
	Translator   Translator      // Optional, rewrites replies when a language is requested

	// Sleep waits between retries. Defaults to a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Translator rewrites text into a target language.
type Translator interface {
	Translate(ctx context.Context, text string, target langdetect.Code) (string, error)
}

// DefaultBackoff is the wait schedule for rate-limited attempts.
var DefaultBackoff = []time.Duration{2 * time.Second, 5 * time.Second, 10 * time.Second}

const (
	defaultBaseURL      = "https://api.groq.com/openai/v1"
	defaultTimeout      = 60 * time.Second
	defaultMaxRetries   = 3
	defaultMaxBackoff   = 10 * time.Second
	defaultSystemPrompt = "You are a helpful, friendly assistant. Answer clearly and concisely, " +
		"use Markdown for code and lists, and say so when you are not sure about something."
)

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
