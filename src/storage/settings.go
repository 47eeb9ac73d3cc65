package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/georgysavva/scany/v2/sqlscan"
)

// GetSetting retrieves a setting by key
func GetSetting(ctx context.Context, db sqlscan.Querier, key string) (*Setting, error) {
	query := `SELECT key, value, updated_at FROM settings WHERE key = ?`
	var s Setting
	err := sqlscan.Get(ctx, db, &s, query, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, err
	}
	return &s, nil
}

// ListSettings returns every stored setting ordered by key
func ListSettings(ctx context.Context, db sqlscan.Querier) ([]Setting, error) {
	var settings []Setting
	err := sqlscan.Select(ctx, db, &settings, `SELECT key, value, updated_at FROM settings ORDER BY key`)
	if err != nil {
		return nil, err
	}
	return settings, nil
}

// UpsertSetting writes a setting, replacing any previous value
func UpsertSetting(ctx context.Context, db Execer, setting *Setting) error {
	if setting.UpdatedAt.IsZero() {
		setting.UpdatedAt = time.Now()
	}

	query := `INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`
	_, err := db.ExecContext(ctx, query, setting.Key, setting.Value, setting.UpdatedAt)
	return err
}

// DeleteSetting removes a setting
func DeleteSetting(ctx context.Context, db Execer, key string) error {
	_, err := db.ExecContext(ctx, `DELETE FROM settings WHERE key = ?`, key)
	return err
}

// SettingsCache is a Cache backed by the settings table.
type SettingsCache struct {
	db ExecQuerier
}

var _ Cache = (*SettingsCache)(nil)

// NewSettingsCache returns a cache over the settings table of db.
func NewSettingsCache(db *DB) *SettingsCache {
	return &SettingsCache{db: db.DB()}
}

func (c *SettingsCache) Get(ctx context.Context, key string) (string, bool, error) {
	s, err := GetSetting(ctx, c.db, key)
	if err != nil {
		return "", false, err
	}
	if s == nil {
		return "", false, nil
	}
	return s.Value, true, nil
}

func (c *SettingsCache) Set(ctx context.Context, key, value string) error {
	return UpsertSetting(ctx, c.db, &Setting{Key: key, Value: value})
}

func (c *SettingsCache) Delete(ctx context.Context, key string) error {
	return DeleteSetting(ctx, c.db, key)
}
