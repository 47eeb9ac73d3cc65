package auth

import (
	"errors"
	"fmt"
)

var (
	// ErrEmailNotConfirmed is returned by sign-in for an account whose email
	// address was never confirmed. The session is ended before returning.
	ErrEmailNotConfirmed = errors.New("email address is not confirmed")

	ErrNoSession     = errors.New("not signed in")
	ErrTokenNotFound = errors.New("confirmation token not found")
	ErrTokenUsed     = errors.New("confirmation token already used")
	ErrTokenExpired  = errors.New("confirmation token expired")
)

// ValidationError rejects input before any provider call.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// ProviderError is an error reported by the identity provider.
type ProviderError struct {
	Status  int
	Code    string
	Message string
}

func (e *ProviderError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("identity provider error %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("identity provider error %d: %s", e.Status, e.Message)
}
