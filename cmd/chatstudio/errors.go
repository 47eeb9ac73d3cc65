package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"

	"github.com/beymax11/chatstudio/src/app"
	"github.com/beymax11/chatstudio/src/auth"
	"github.com/beymax11/chatstudio/src/chat"
	"github.com/beymax11/chatstudio/src/config"
	"github.com/beymax11/chatstudio/src/orclient"
	"github.com/beymax11/chatstudio/src/project"
)

// Exit codes following standard conventions
const (
	ExitSuccess     = 0 // Success
	ExitError       = 1 // General error
	ExitUsage       = 2 // Usage error
	ExitConfig      = 3 // Configuration error
	ExitAuth        = 4 // Authentication error
	ExitNetwork     = 6 // Network error
	ExitTimeout     = 7 // Timeout error
	ExitInterrupted = 8 // Interrupted by user
)

// errConfig marks failures while loading configuration.
var errConfig = errors.New("configuration error")

// ErrorHandler handles different types of errors and exits with appropriate codes
type ErrorHandler struct {
	logger *slog.Logger
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(logger *slog.Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// HandleError handles an error and exits with the appropriate code
func (h *ErrorHandler) HandleError(err error) {
	if err == nil {
		return
	}

	h.logger.Debug("command failed", "error", err)
	fmt.Fprintf(os.Stderr, "Error: %s\n", err.Error())
	os.Exit(exitCode(err))
}

// exitCode determines the appropriate exit code for an error
func exitCode(err error) int {
	var cfgErr config.ValidationError
	var authValidation *auth.ValidationError
	var providerErr *auth.ProviderError
	var apiErr *orclient.APIError
	var netErr net.Error

	switch {
	case errors.Is(err, context.Canceled):
		return ExitInterrupted
	case errors.Is(err, context.DeadlineExceeded):
		return ExitTimeout
	case errors.Is(err, errConfig), errors.As(err, &cfgErr):
		return ExitConfig
	case errors.As(err, &authValidation),
		errors.Is(err, chat.ErrInvalidInput),
		errors.Is(err, chat.ErrInvalidState),
		errors.Is(err, chat.ErrNotFound),
		errors.Is(err, project.ErrInvalidInput),
		errors.Is(err, project.ErrNotFound):
		return ExitUsage
	case errors.Is(err, auth.ErrEmailNotConfirmed),
		errors.Is(err, auth.ErrNoSession),
		errors.Is(err, auth.ErrTokenNotFound),
		errors.Is(err, auth.ErrTokenUsed),
		errors.Is(err, auth.ErrTokenExpired),
		errors.Is(err, app.ErrAuthDisabled),
		errors.Is(err, app.ErrRemoteDisabled),
		errors.Is(err, orclient.ErrNoAPIKey):
		return ExitAuth
	case errors.As(err, &providerErr):
		if providerErr.Status >= http.StatusInternalServerError {
			return ExitNetwork
		}
		return ExitAuth
	case errors.As(err, &apiErr) && apiErr.IsAuthError():
		return ExitAuth
	case errors.As(err, &netErr):
		return ExitNetwork
	default:
		return ExitError
	}
}

// FatalError logs a fatal error and exits
func FatalError(logger *slog.Logger, err error) {
	NewErrorHandler(logger).HandleError(err)
}
