package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/beymax11/chatstudio/src/app"
	"github.com/beymax11/chatstudio/src/auth"
	"github.com/beymax11/chatstudio/src/chat"
	"github.com/beymax11/chatstudio/src/config"
	"github.com/beymax11/chatstudio/src/orclient"
	"github.com/beymax11/chatstudio/src/project"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"generic", errors.New("boom"), ExitError},
		{"cancelled", fmt.Errorf("send: %w", context.Canceled), ExitInterrupted},
		{"deadline", context.DeadlineExceeded, ExitTimeout},
		{"config load", fmt.Errorf("%w: bad toml", errConfig), ExitConfig},
		{"config validation", config.ValidationError{Field: "Config.Chat.DefaultModel", Message: "unknown"}, ExitConfig},
		{"auth validation", &auth.ValidationError{Field: "email", Message: "is required"}, ExitUsage},
		{"unknown conversation", fmt.Errorf("x: %w", chat.ErrNotFound), ExitUsage},
		{"regenerate user message", chat.ErrInvalidState, ExitUsage},
		{"blank project", project.ErrInvalidInput, ExitUsage},
		{"unconfirmed", auth.ErrEmailNotConfirmed, ExitAuth},
		{"signed out", auth.ErrNoSession, ExitAuth},
		{"used token", auth.ErrTokenUsed, ExitAuth},
		{"auth disabled", app.ErrAuthDisabled, ExitAuth},
		{"remote disabled", app.ErrRemoteDisabled, ExitAuth},
		{"no api key", orclient.ErrNoAPIKey, ExitAuth},
		{"provider rejects", &auth.ProviderError{Status: 400, Message: "Invalid login credentials"}, ExitAuth},
		{"provider down", &auth.ProviderError{Status: 503, Message: "unavailable"}, ExitNetwork},
		{"api auth", &orclient.APIError{StatusCode: 401, Message: "bad key"}, ExitAuth},
		{"api server", &orclient.APIError{StatusCode: 500, Message: "oops"}, ExitError},
		{"network", &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, ExitNetwork},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, "DEBUG", parseLogLevel("debug").String())
	assert.Equal(t, "INFO", parseLogLevel("info").String())
	assert.Equal(t, "WARN", parseLogLevel("warning").String())
	assert.Equal(t, "ERROR", parseLogLevel("error").String())
	assert.Equal(t, "WARN", parseLogLevel("").String())
}
