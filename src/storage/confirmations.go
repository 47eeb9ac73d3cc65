package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/georgysavva/scany/v2/sqlscan"
)

// CreateConfirmation stores a new unused confirmation token
func CreateConfirmation(ctx context.Context, db Execer, c *EmailConfirmation) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}

	query := `INSERT INTO email_confirmations (token, user_id, email, expires_at, used, created_at) VALUES (?, ?, ?, ?, ?, ?)`
	_, err := db.ExecContext(ctx, query, c.Token, c.UserID, c.Email, c.ExpiresAt, c.Used, c.CreatedAt)
	return err
}

// GetConfirmation retrieves a confirmation by token
func GetConfirmation(ctx context.Context, db sqlscan.Querier, token string) (*EmailConfirmation, error) {
	query := `SELECT token, user_id, email, expires_at, used, created_at FROM email_confirmations WHERE token = ?`
	var c EmailConfirmation
	err := sqlscan.Get(ctx, db, &c, query, token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, err
	}
	return &c, nil
}

// MarkConfirmationUsed flips used for an unused token and reports whether it did.
// The used = 0 guard makes concurrent consumers race to a single winner.
func MarkConfirmationUsed(ctx context.Context, db Execer, token string) (bool, error) {
	res, err := db.ExecContext(ctx, `UPDATE email_confirmations SET used = 1 WHERE token = ? AND used = 0`, token)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// DeleteExpiredConfirmations removes unused tokens whose expiry is before now
func DeleteExpiredConfirmations(ctx context.Context, db Execer, now time.Time) (int64, error) {
	res, err := db.ExecContext(ctx, `DELETE FROM email_confirmations WHERE expires_at < ? AND used = 0`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// HasUsedConfirmation reports whether userID has consumed any confirmation token
func HasUsedConfirmation(ctx context.Context, db sqlscan.Querier, userID string) (bool, error) {
	var n int
	err := sqlscan.Get(ctx, db, &n, `SELECT COUNT(*) FROM email_confirmations WHERE user_id = ? AND used = 1`, userID)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
