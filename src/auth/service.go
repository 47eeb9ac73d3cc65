package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]{3,30}$`)

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 6

type SignUpInput struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=6"`
	Username string `validate:"required,username"`
}

type SignInInput struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required"`
}

type resetInput struct {
	Email string `validate:"required,email"`
}

var fieldMessages = map[string]string{
	"required": "is required",
	"email":    "must be a valid email address",
	"min":      fmt.Sprintf("must be at least %d characters", MinPasswordLength),
	"username": "must be 3-30 letters, digits or underscores",
}

// Service validates input, talks to the provider and enforces confirmed email
// addresses on sign-in.
type Service struct {
	provider      Provider
	confirmations *Confirmations
	validate      *validator.Validate
	logger        *slog.Logger
}

// NewService wires a provider with optional local confirmation tokens.
func NewService(provider Provider, confirmations *Confirmations, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	v := validator.New()
	v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernamePattern.MatchString(fl.Field().String())
	})
	return &Service{
		provider:      provider,
		confirmations: confirmations,
		validate:      v,
		logger:        logger.With("component", "auth"),
	}
}

func (s *Service) check(input any) error {
	err := s.validate.Struct(input)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		e := verrs[0]
		msg, ok := fieldMessages[e.Tag()]
		if !ok {
			msg = fmt.Sprintf("failed %s check", e.Tag())
		}
		return &ValidationError{Field: strings.ToLower(e.Field()), Message: msg}
	}
	return err
}

// SignUp registers a user and, when the provider has not confirmed the
// address yet, issues a confirmation token.
func (s *Service) SignUp(ctx context.Context, in SignUpInput) (*User, error) {
	in.Email = strings.TrimSpace(strings.ToLower(in.Email))
	in.Username = strings.TrimSpace(in.Username)
	if err := s.check(in); err != nil {
		return nil, err
	}

	user, err := s.provider.SignUp(ctx, in.Email, in.Password, map[string]any{"username": in.Username})
	if err != nil {
		return nil, err
	}

	if s.confirmations != nil && !user.Confirmed() && user.ID != "" {
		if _, err := s.confirmations.Issue(ctx, user.ID, user.Email); err != nil {
			s.logger.Warn("failed to issue confirmation", "user", user.ID, "error", err)
		}
	}
	return user, nil
}

// SignIn starts a session. An account whose email is confirmed neither by the
// provider nor by a local token is signed out again.
func (s *Service) SignIn(ctx context.Context, in SignInInput) (*Session, error) {
	in.Email = strings.TrimSpace(strings.ToLower(in.Email))
	if err := s.check(in); err != nil {
		return nil, err
	}

	session, err := s.provider.SignIn(ctx, in.Email, in.Password)
	if err != nil {
		return nil, err
	}

	confirmed, err := s.isConfirmed(ctx, &session.User)
	if err != nil {
		s.forceSignOut(ctx, session.User.ID)
		return nil, err
	}
	if !confirmed {
		s.forceSignOut(ctx, session.User.ID)
		return nil, ErrEmailNotConfirmed
	}
	return session, nil
}

func (s *Service) isConfirmed(ctx context.Context, user *User) (bool, error) {
	if user.Confirmed() {
		return true, nil
	}
	if s.confirmations == nil {
		return false, nil
	}
	ok, err := s.confirmations.IsConfirmed(ctx, user.ID)
	if err != nil {
		return false, fmt.Errorf("failed to check email confirmation: %w", err)
	}
	return ok, nil
}

func (s *Service) forceSignOut(ctx context.Context, userID string) {
	s.logger.Warn("signing out unconfirmed account", "user", userID)
	if err := s.provider.SignOut(ctx); err != nil {
		s.logger.Error("forced sign out failed", "user", userID, "error", err)
	}
}

func (s *Service) SignInWithOAuth(ctx context.Context, provider, redirectTo string) (string, error) {
	return s.provider.SignInWithOAuth(ctx, strings.TrimSpace(provider), redirectTo)
}

func (s *Service) SignOut(ctx context.Context) error {
	return s.provider.SignOut(ctx)
}

// Session returns the current session or ErrNoSession.
func (s *Service) Session(ctx context.Context) (*Session, error) {
	session, err := s.provider.CurrentSession(ctx)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrNoSession
	}
	return session, nil
}

// CurrentUserID reports the signed-in user for remote sync.
func (s *Service) CurrentUserID(ctx context.Context) (string, bool) {
	session, err := s.provider.CurrentSession(ctx)
	if err != nil {
		s.logger.Warn("failed to read session", "error", err)
		return "", false
	}
	if session == nil || session.User.ID == "" {
		return "", false
	}
	return session.User.ID, true
}

func (s *Service) ResetPassword(ctx context.Context, email, redirectTo string) error {
	in := resetInput{Email: strings.TrimSpace(strings.ToLower(email))}
	if err := s.check(in); err != nil {
		return err
	}
	return s.provider.SendPasswordUpdate(ctx, in.Email, redirectTo)
}

// Confirm consumes an emailed confirmation token.
func (s *Service) Confirm(ctx context.Context, token string) error {
	if s.confirmations == nil {
		return errors.New("email confirmation is not configured")
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return &ValidationError{Field: "token", Message: "is required"}
	}
	_, err := s.confirmations.Confirm(ctx, token)
	return err
}
