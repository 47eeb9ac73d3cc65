// Package remote mirrors conversations and projects into a relational store
// keyed by the signed-in user's id.
//
// Every write is best-effort: failures are logged and reported as false, and
// nothing is written without a session.
package remote

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/georgysavva/scany/v2/sqlscan"
	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/beymax11/chatstudio/src/chat"
	"github.com/beymax11/chatstudio/src/project"
)

// SessionSource reports the signed-in user.
type SessionSource interface {
	CurrentUserID(ctx context.Context) (string, bool)
}

type Adapter struct {
	db       *sql.DB
	dialect  Dialect
	sessions SessionSource
	logger   *slog.Logger
}

var (
	_ chat.Mirror    = (*Adapter)(nil)
	_ project.Mirror = (*Adapter)(nil)
)

// pingTimeout bounds the reachability check made when opening.
const pingTimeout = 5 * time.Second

// Open prepares a postgres connection pool. An unreachable server is logged
// and tolerated: the pool reconnects on demand, so mirror writes fail one by
// one while loads and migrations return the connection error.
func Open(ctx context.Context, dsn string, sessions SessionSource, logger *slog.Logger) (*Adapter, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open remote database: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(2 * time.Hour)
	db.SetConnMaxIdleTime(15 * time.Minute)

	a := New(db, Postgres, sessions, logger)
	if err := a.Ping(ctx); err != nil {
		a.logger.Warn("remote database unreachable; sync will retry per write", "error", err)
	}
	return a, nil
}

// Ping checks that the remote database answers.
func (a *Adapter) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := a.db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping remote database: %w", err)
	}
	return nil
}

// New wraps an open database.
func New(db *sql.DB, dialect Dialect, sessions SessionSource, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{
		db:       db,
		dialect:  dialect,
		sessions: sessions,
		logger:   logger.With("component", "remote_sync"),
	}
}

func (a *Adapter) Close() error {
	return a.db.Close()
}

// user returns the signed-in user id, logging when there is none.
func (a *Adapter) user(ctx context.Context, op string) (string, bool) {
	if a.sessions == nil {
		return "", false
	}
	userID, ok := a.sessions.CurrentUserID(ctx)
	if !ok || userID == "" {
		a.logger.Debug("skipping remote sync without a session", "op", op)
		return "", false
	}
	return userID, true
}

func (a *Adapter) exec(ctx context.Context, query string, args ...any) error {
	_, err := a.db.ExecContext(ctx, a.dialect.rebind(query), args...)
	return err
}

func (a *Adapter) failed(op string, err error, attrs ...any) bool {
	a.logger.Warn("remote sync failed", append([]any{"op", op, "error", err}, attrs...)...)
	return false
}

// SaveConversation upserts the conversation row.
func (a *Adapter) SaveConversation(ctx context.Context, conv *chat.Conversation) bool {
	userID, ok := a.user(ctx, "save_conversation")
	if !ok {
		return false
	}

	err := a.exec(ctx, `INSERT INTO conversations (id, user_id, title, model, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET title = excluded.title, model = excluded.model, updated_at = excluded.updated_at
		WHERE conversations.user_id = excluded.user_id`,
		conv.ID, userID, conv.Title, conv.Model, conv.CreatedAt.UTC(), conv.UpdatedAt.UTC())
	if err != nil {
		return a.failed("save_conversation", err, "conversation", conv.ID)
	}
	return true
}

// SaveMessage upserts a message row scoped to its conversation.
func (a *Adapter) SaveMessage(ctx context.Context, conversationID string, msg *chat.Message) bool {
	if _, ok := a.user(ctx, "save_message"); !ok {
		return false
	}

	attachments := msg.Attachments
	if attachments == nil {
		attachments = []chat.FileAttachment{}
	}
	payload, err := json.Marshal(attachments)
	if err != nil {
		return a.failed("save_message", err, "message", msg.ID)
	}

	ts := msg.Timestamp.UTC()
	// seq fixes the position on first insert; updates keep it.
	err = a.exec(ctx, `INSERT INTO messages (id, conversation_id, role, content, model, timestamp, attachments, created_at, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM messages WHERE conversation_id = ?))
		ON CONFLICT (id) DO UPDATE SET content = excluded.content, model = excluded.model,
			timestamp = excluded.timestamp, attachments = excluded.attachments
		WHERE messages.conversation_id = excluded.conversation_id`,
		msg.ID, conversationID, string(msg.Role), msg.Content, msg.Model, ts, string(payload), ts, conversationID)
	if err != nil {
		return a.failed("save_message", err, "message", msg.ID)
	}
	return true
}

// DeleteMessages removes message rows of one of the user's conversations.
func (a *Adapter) DeleteMessages(ctx context.Context, conversationID string, messageIDs []string) bool {
	userID, ok := a.user(ctx, "delete_messages")
	if !ok {
		return false
	}
	if len(messageIDs) == 0 {
		return true
	}

	args := []any{conversationID, userID}
	for _, id := range messageIDs {
		args = append(args, id)
	}
	query := `DELETE FROM messages WHERE conversation_id = ?
		AND conversation_id IN (SELECT id FROM conversations WHERE user_id = ?)
		AND id IN (` + strings.TrimSuffix(strings.Repeat("?, ", len(messageIDs)), ", ") + `)`
	if err := a.exec(ctx, query, args...); err != nil {
		return a.failed("delete_messages", err, "conversation", conversationID)
	}
	return true
}

// DeleteConversation removes the message rows, then the conversation row.
func (a *Adapter) DeleteConversation(ctx context.Context, conversationID string) bool {
	userID, ok := a.user(ctx, "delete_conversation")
	if !ok {
		return false
	}

	err := a.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, a.dialect.rebind(`DELETE FROM messages WHERE conversation_id = ?
			AND conversation_id IN (SELECT id FROM conversations WHERE user_id = ?)`), conversationID, userID); err != nil {
			return fmt.Errorf("delete messages: %w", err)
		}
		if _, err := tx.ExecContext(ctx, a.dialect.rebind(`DELETE FROM conversations WHERE id = ? AND user_id = ?`), conversationID, userID); err != nil {
			return fmt.Errorf("delete conversation: %w", err)
		}
		return nil
	})
	if err != nil {
		return a.failed("delete_conversation", err, "conversation", conversationID)
	}
	return true
}

// SaveProject upserts the project row and replaces its membership rows.
// Concurrent writers race; the last full replace wins.
func (a *Adapter) SaveProject(ctx context.Context, p *project.Project) bool {
	userID, ok := a.user(ctx, "save_project")
	if !ok {
		return false
	}

	err := a.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, a.dialect.rebind(`INSERT INTO projects (id, user_id, name, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (id) DO UPDATE SET name = excluded.name, updated_at = excluded.updated_at
			WHERE projects.user_id = excluded.user_id`),
			p.ID, userID, p.Name, p.CreatedAt.UTC(), p.UpdatedAt.UTC()); err != nil {
			return fmt.Errorf("upsert project: %w", err)
		}
		if _, err := tx.ExecContext(ctx, a.dialect.rebind(`DELETE FROM project_conversations WHERE project_id = ?
			AND project_id IN (SELECT id FROM projects WHERE user_id = ?)`), p.ID, userID); err != nil {
			return fmt.Errorf("clear membership: %w", err)
		}

		insert := a.dialect.rebind(`INSERT INTO project_conversations (id, project_id, conversation_id, created_at) VALUES (?, ?, ?, ?)`)
		base := time.Now().UTC()
		for i, convID := range p.ConversationIDs {
			// Offsets keep membership order readable from created_at.
			at := base.Add(time.Duration(i) * time.Microsecond)
			if _, err := tx.ExecContext(ctx, insert, uuid.NewString(), p.ID, convID, at); err != nil {
				return fmt.Errorf("insert membership: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return a.failed("save_project", err, "project", p.ID)
	}
	return true
}

// DeleteProject removes the membership rows, then the project row.
func (a *Adapter) DeleteProject(ctx context.Context, projectID string) bool {
	userID, ok := a.user(ctx, "delete_project")
	if !ok {
		return false
	}

	err := a.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, a.dialect.rebind(`DELETE FROM project_conversations WHERE project_id = ?
			AND project_id IN (SELECT id FROM projects WHERE user_id = ?)`), projectID, userID); err != nil {
			return fmt.Errorf("delete membership: %w", err)
		}
		if _, err := tx.ExecContext(ctx, a.dialect.rebind(`DELETE FROM projects WHERE id = ? AND user_id = ?`), projectID, userID); err != nil {
			return fmt.Errorf("delete project: %w", err)
		}
		return nil
	})
	if err != nil {
		return a.failed("delete_project", err, "project", projectID)
	}
	return true
}

func (a *Adapter) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

type conversationRow struct {
	ID        string    `db:"id"`
	Title     string    `db:"title"`
	Model     string    `db:"model"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

type messageRow struct {
	ID             string    `db:"id"`
	ConversationID string    `db:"conversation_id"`
	Role           string    `db:"role"`
	Content        string    `db:"content"`
	Model          string    `db:"model"`
	Timestamp      time.Time `db:"timestamp"`
	Attachments    string    `db:"attachments"`
}

type projectRow struct {
	ID        string    `db:"id"`
	Name      string    `db:"name"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

type membershipRow struct {
	ProjectID      string `db:"project_id"`
	ConversationID string `db:"conversation_id"`
}

// LoadConversations reads back every conversation of the signed-in user,
// most recently updated first.
func (a *Adapter) LoadConversations(ctx context.Context) ([]*chat.Conversation, error) {
	userID, ok := a.user(ctx, "load_conversations")
	if !ok {
		return nil, nil
	}

	var convRows []conversationRow
	if err := sqlscan.Select(ctx, a.db, &convRows, a.dialect.rebind(`SELECT id, title, model, created_at, updated_at
		FROM conversations WHERE user_id = ? ORDER BY updated_at DESC`), userID); err != nil {
		return nil, fmt.Errorf("failed to load conversations: %w", err)
	}

	var msgRows []messageRow
	if err := sqlscan.Select(ctx, a.db, &msgRows, a.dialect.rebind(`SELECT m.id, m.conversation_id, m.role, m.content, m.model, m.timestamp, m.attachments
		FROM messages m JOIN conversations c ON c.id = m.conversation_id
		WHERE c.user_id = ? ORDER BY m.conversation_id, m.seq, m.created_at, m.id`), userID); err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}

	byID := make(map[string]*chat.Conversation, len(convRows))
	out := make([]*chat.Conversation, 0, len(convRows))
	for _, r := range convRows {
		conv := &chat.Conversation{
			ID:        r.ID,
			Title:     r.Title,
			Model:     r.Model,
			Messages:  []*chat.Message{},
			CreatedAt: r.CreatedAt,
			UpdatedAt: r.UpdatedAt,
		}
		byID[r.ID] = conv
		out = append(out, conv)
	}

	for _, r := range msgRows {
		conv := byID[r.ConversationID]
		if conv == nil {
			continue
		}
		msg := &chat.Message{
			ID:        r.ID,
			Role:      chat.Role(r.Role),
			Content:   r.Content,
			Model:     r.Model,
			Timestamp: r.Timestamp,
		}
		if r.Attachments != "" && r.Attachments != "[]" {
			if err := json.Unmarshal([]byte(r.Attachments), &msg.Attachments); err != nil {
				a.logger.Warn("dropping unreadable attachments", "message", r.ID, "error", err)
			}
		}
		conv.Messages = append(conv.Messages, msg)
	}
	return out, nil
}

// LoadProjects reads back every project of the signed-in user.
func (a *Adapter) LoadProjects(ctx context.Context) ([]*project.Project, error) {
	userID, ok := a.user(ctx, "load_projects")
	if !ok {
		return nil, nil
	}

	var projRows []projectRow
	if err := sqlscan.Select(ctx, a.db, &projRows, a.dialect.rebind(`SELECT id, name, created_at, updated_at
		FROM projects WHERE user_id = ? ORDER BY created_at DESC`), userID); err != nil {
		return nil, fmt.Errorf("failed to load projects: %w", err)
	}

	var members []membershipRow
	if err := sqlscan.Select(ctx, a.db, &members, a.dialect.rebind(`SELECT pc.project_id, pc.conversation_id
		FROM project_conversations pc JOIN projects p ON p.id = pc.project_id
		WHERE p.user_id = ? ORDER BY pc.created_at`), userID); err != nil {
		return nil, fmt.Errorf("failed to load project membership: %w", err)
	}

	byID := make(map[string]*project.Project, len(projRows))
	out := make([]*project.Project, 0, len(projRows))
	for _, r := range projRows {
		p := &project.Project{
			ID:              r.ID,
			Name:            r.Name,
			ConversationIDs: []string{},
			CreatedAt:       r.CreatedAt,
			UpdatedAt:       r.UpdatedAt,
		}
		byID[r.ID] = p
		out = append(out, p)
	}
	for _, m := range members {
		if p := byID[m.ProjectID]; p != nil && !p.Contains(m.ConversationID) {
			p.ConversationIDs = append(p.ConversationIDs, m.ConversationID)
		}
	}
	return out, nil
}
