package auth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lithammer/shortuuid/v4"

	"github.com/beymax11/chatstudio/src/storage"
)

// ConfirmationTTL is how long a confirmation token stays valid.
const ConfirmationTTL = 24 * time.Hour

// Notifier delivers a confirmation token to its address. Delivery is
// fire-and-forget; errors are only logged.
type Notifier interface {
	SendConfirmation(ctx context.Context, email, token string) error
}

// LogNotifier writes the token to the log instead of sending mail.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) SendConfirmation(_ context.Context, email, token string) error {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("email confirmation issued", "email", email, "token", token)
	return nil
}

// Confirmations issues and consumes single-use confirmation tokens.
type Confirmations struct {
	db       storage.ExecQuerier
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time
	newToken func() string
}

type ConfirmationsOptions struct {
	DB       storage.ExecQuerier // required
	Notifier Notifier
	Logger   *slog.Logger
	Clock    func() time.Time
	Tokens   func() string
}

func NewConfirmations(opts ConfirmationsOptions) *Confirmations {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Tokens == nil {
		opts.Tokens = shortuuid.New
	}
	if opts.Notifier == nil {
		opts.Notifier = LogNotifier{Logger: opts.Logger}
	}
	return &Confirmations{
		db:       opts.DB,
		notifier: opts.Notifier,
		logger:   opts.Logger.With("component", "email_confirmation"),
		now:      opts.Clock,
		newToken: opts.Tokens,
	}
}

// Issue stores a new token for userID and hands it to the notifier.
func (c *Confirmations) Issue(ctx context.Context, userID, email string) (string, error) {
	now := c.now().UTC()
	if n, err := storage.DeleteExpiredConfirmations(ctx, c.db, now); err != nil {
		c.logger.Warn("failed to prune expired confirmations", "error", err)
	} else if n > 0 {
		c.logger.Debug("pruned expired confirmations", "count", n)
	}

	confirmation := &storage.EmailConfirmation{
		Token:     c.newToken(),
		UserID:    userID,
		Email:     email,
		ExpiresAt: now.Add(ConfirmationTTL),
		CreatedAt: now,
	}
	if err := storage.CreateConfirmation(ctx, c.db, confirmation); err != nil {
		return "", fmt.Errorf("failed to store confirmation: %w", err)
	}

	go func(ctx context.Context) {
		if err := c.notifier.SendConfirmation(ctx, email, confirmation.Token); err != nil {
			c.logger.Warn("failed to deliver confirmation", "email", email, "error", err)
		}
	}(context.WithoutCancel(ctx))

	return confirmation.Token, nil
}

// Confirm consumes token. A token confirms exactly once and never after expiry.
func (c *Confirmations) Confirm(ctx context.Context, token string) (*storage.EmailConfirmation, error) {
	confirmation, err := storage.GetConfirmation(ctx, c.db, token)
	if err != nil {
		return nil, fmt.Errorf("failed to read confirmation: %w", err)
	}
	if confirmation == nil {
		return nil, ErrTokenNotFound
	}
	if confirmation.Used {
		return nil, ErrTokenUsed
	}
	if confirmation.Expired(c.now()) {
		return nil, ErrTokenExpired
	}

	ok, err := storage.MarkConfirmationUsed(ctx, c.db, token)
	if err != nil {
		return nil, fmt.Errorf("failed to consume confirmation: %w", err)
	}
	if !ok {
		return nil, ErrTokenUsed
	}
	confirmation.Used = true
	c.logger.Info("email confirmed", "user", confirmation.UserID)
	return confirmation, nil
}

// IsConfirmed reports whether userID has consumed a token.
func (c *Confirmations) IsConfirmed(ctx context.Context, userID string) (bool, error) {
	return storage.HasUsedConfirmation(ctx, c.db, userID)
}
