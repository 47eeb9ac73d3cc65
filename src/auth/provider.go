// Package auth signs users in against an identity provider and issues
// single-use email confirmation tokens.
package auth

import (
	"context"
	"time"
)

type User struct {
	ID               string         `json:"id"`
	Email            string         `json:"email"`
	EmailConfirmedAt *time.Time     `json:"email_confirmed_at,omitempty"`
	Metadata         map[string]any `json:"user_metadata,omitempty"`
}

// Confirmed reports whether the provider has seen the email confirmed.
func (u *User) Confirmed() bool {
	return u.EmailConfirmedAt != nil && !u.EmailConfirmedAt.IsZero()
}

// Username returns the username stored at sign-up, if any.
func (u *User) Username() string {
	name, _ := u.Metadata["username"].(string)
	return name
}

type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         User      `json:"user"`
}

// Expired reports whether the access token is no longer valid at now.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Provider is the identity service. CurrentSession returns nil without an
// error when nobody is signed in.
type Provider interface {
	SignUp(ctx context.Context, email, password string, metadata map[string]any) (*User, error)
	SignIn(ctx context.Context, email, password string) (*Session, error)
	SignInWithOAuth(ctx context.Context, provider, redirectTo string) (string, error)
	SignOut(ctx context.Context) error
	CurrentSession(ctx context.Context) (*Session, error)
	SendPasswordUpdate(ctx context.Context, email, redirectTo string) error
}
