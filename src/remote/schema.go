package remote

import (
	"context"
	"fmt"
)

func (d Dialect) schema() []string {
	ts := d.timestampType()
	return []string{
		`CREATE TABLE IF NOT EXISTS conversations (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			title TEXT NOT NULL,
			model TEXT NOT NULL DEFAULT '',
			created_at ` + ts + ` NOT NULL,
			updated_at ` + ts + ` NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_user_id ON conversations(user_id)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL REFERENCES conversations(id),
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			model TEXT NOT NULL DEFAULT '',
			timestamp ` + ts + ` NOT NULL,
			attachments TEXT NOT NULL DEFAULT '[]',
			created_at ` + ts + ` NOT NULL,
			seq BIGINT NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_conversation_id ON messages(conversation_id)`,
		`CREATE TABLE IF NOT EXISTS projects (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			name TEXT NOT NULL,
			created_at ` + ts + ` NOT NULL,
			updated_at ` + ts + ` NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_projects_user_id ON projects(user_id)`,
		`CREATE TABLE IF NOT EXISTS project_conversations (
			id TEXT PRIMARY KEY,
			project_id TEXT NOT NULL REFERENCES projects(id),
			conversation_id TEXT NOT NULL,
			created_at ` + ts + ` NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_project_conversations_project_id ON project_conversations(project_id)`,
	}
}

// upgrades alters tables created before a column existed.
func (d Dialect) upgrades() []string {
	if d != Postgres {
		return nil
	}
	return []string{
		`ALTER TABLE messages ADD COLUMN IF NOT EXISTS seq BIGINT NOT NULL DEFAULT 0`,
	}
}

// Migrate creates the remote tables when they are missing.
func (a *Adapter) Migrate(ctx context.Context) error {
	for _, stmt := range append(a.dialect.schema(), a.dialect.upgrades()...) {
		if _, err := a.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply remote schema: %w", err)
		}
	}
	return nil
}
