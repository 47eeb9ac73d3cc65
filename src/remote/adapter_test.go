package remote

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/beymax11/chatstudio/src/chat"
	"github.com/beymax11/chatstudio/src/project"
)

type fakeSessions struct {
	mu     sync.Mutex
	userID string
}

func (f *fakeSessions) CurrentUserID(context.Context) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.userID, f.userID != ""
}

func (f *fakeSessions) set(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.userID = id
}

func newTestAdapter(t *testing.T) (*Adapter, *fakeSessions) {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "remote.db"))
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	sessions := &fakeSessions{userID: "user-1"}
	a := New(db, SQLite, sessions, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, a.Migrate(t.Context()))
	require.NoError(t, a.Migrate(t.Context()))
	return a, sessions
}

func count(t *testing.T, a *Adapter, query string, args ...any) int {
	t.Helper()
	var n int
	require.NoError(t, a.db.QueryRowContext(t.Context(), query, args...).Scan(&n))
	return n
}

var t0 = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func sampleConversation() *chat.Conversation {
	return &chat.Conversation{
		ID:        "c1",
		Title:     "Go generics",
		Model:     "fast",
		CreatedAt: t0,
		UpdatedAt: t0.Add(time.Minute),
	}
}

func TestRebind(t *testing.T) {
	q := `SELECT * FROM t WHERE a = ? AND b IN (?, ?)`
	assert.Equal(t, q, SQLite.rebind(q))
	assert.Equal(t, `SELECT * FROM t WHERE a = $1 AND b IN ($2, $3)`, Postgres.rebind(q))
}

func TestNoSessionSkipsWrites(t *testing.T) {
	a, sessions := newTestAdapter(t)
	sessions.set("")
	ctx := t.Context()

	assert.False(t, a.SaveConversation(ctx, sampleConversation()))
	assert.False(t, a.SaveMessage(ctx, "c1", &chat.Message{ID: "m1", Role: chat.RoleUser, Content: "hi"}))
	assert.False(t, a.SaveProject(ctx, &project.Project{ID: "p1", Name: "P"}))
	assert.False(t, a.DeleteConversation(ctx, "c1"))
	assert.Zero(t, count(t, a, `SELECT COUNT(*) FROM conversations`))

	convs, err := a.LoadConversations(ctx)
	require.NoError(t, err)
	assert.Empty(t, convs)
}

func TestConversationRoundTrip(t *testing.T) {
	a, _ := newTestAdapter(t)
	ctx := t.Context()

	conv := sampleConversation()
	require.True(t, a.SaveConversation(ctx, conv))

	att := chat.FileAttachment{ID: "f1", Name: "notes.txt", MimeType: "text/plain", Size: 5, Data: "aGVsbG8="}
	user := &chat.Message{ID: "m1", Role: chat.RoleUser, Content: "question", Timestamp: t0, Model: "fast", Attachments: []chat.FileAttachment{att}}
	reply := &chat.Message{ID: "m2", Role: chat.RoleAssistant, Content: "answer", Timestamp: t0.Add(time.Second), Model: "fast"}
	require.True(t, a.SaveMessage(ctx, conv.ID, user))
	require.True(t, a.SaveMessage(ctx, conv.ID, reply))

	conv.Title = "Renamed by rule"
	conv.UpdatedAt = t0.Add(time.Hour)
	require.True(t, a.SaveConversation(ctx, conv))

	edited := *user
	edited.Content = "question, edited"
	edited.Timestamp = t0.Add(time.Hour)
	require.True(t, a.SaveMessage(ctx, conv.ID, &edited))

	convs, err := a.LoadConversations(ctx)
	require.NoError(t, err)
	require.Len(t, convs, 1)
	got := convs[0]
	assert.Equal(t, "Renamed by rule", got.Title)
	assert.True(t, got.UpdatedAt.Equal(conv.UpdatedAt))
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "m1", got.Messages[0].ID)
	assert.Equal(t, "question, edited", got.Messages[0].Content)
	assert.Equal(t, []chat.FileAttachment{att}, got.Messages[0].Attachments)
	assert.Equal(t, chat.RoleAssistant, got.Messages[1].Role)
	assert.Empty(t, got.Messages[1].Attachments)
}

func TestConversationsAreScopedToUser(t *testing.T) {
	a, sessions := newTestAdapter(t)
	ctx := t.Context()

	require.True(t, a.SaveConversation(ctx, sampleConversation()))

	sessions.set("user-2")
	convs, err := a.LoadConversations(ctx)
	require.NoError(t, err)
	assert.Empty(t, convs)

	hijack := sampleConversation()
	hijack.Title = "not yours"
	a.SaveConversation(ctx, hijack)
	assert.True(t, a.DeleteConversation(ctx, "c1"))

	sessions.set("user-1")
	convs, err = a.LoadConversations(ctx)
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, "Go generics", convs[0].Title)
}

func TestDeleteMessagesAndConversation(t *testing.T) {
	a, _ := newTestAdapter(t)
	ctx := t.Context()

	require.True(t, a.SaveConversation(ctx, sampleConversation()))
	for i, id := range []string{"m1", "m2", "m3", "m4"} {
		require.True(t, a.SaveMessage(ctx, "c1", &chat.Message{
			ID: id, Role: chat.RoleUser, Content: id, Timestamp: t0.Add(time.Duration(i) * time.Second),
		}))
	}

	assert.True(t, a.DeleteMessages(ctx, "c1", []string{"m3", "m4"}))
	assert.True(t, a.DeleteMessages(ctx, "c1", nil))
	assert.Equal(t, 2, count(t, a, `SELECT COUNT(*) FROM messages WHERE conversation_id = ?`, "c1"))

	assert.True(t, a.DeleteConversation(ctx, "c1"))
	assert.Zero(t, count(t, a, `SELECT COUNT(*) FROM messages`))
	assert.Zero(t, count(t, a, `SELECT COUNT(*) FROM conversations`))
}

func TestSaveProjectReplacesMembership(t *testing.T) {
	a, _ := newTestAdapter(t)
	ctx := t.Context()

	p := &project.Project{ID: "p1", Name: "Work", ConversationIDs: []string{"c1", "c2", "c3"}, CreatedAt: t0, UpdatedAt: t0}
	require.True(t, a.SaveProject(ctx, p))

	p.Name = "Work stuff"
	p.ConversationIDs = []string{"c3", "c1"}
	require.True(t, a.SaveProject(ctx, p))

	assert.Equal(t, 2, count(t, a, `SELECT COUNT(*) FROM project_conversations WHERE project_id = ?`, "p1"))

	projects, err := a.LoadProjects(ctx)
	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.Equal(t, "Work stuff", projects[0].Name)
	assert.Equal(t, []string{"c3", "c1"}, projects[0].ConversationIDs)

	require.True(t, a.DeleteProject(ctx, "p1"))
	assert.Zero(t, count(t, a, `SELECT COUNT(*) FROM project_conversations`))
	assert.Zero(t, count(t, a, `SELECT COUNT(*) FROM projects`))
}

func TestFailuresReportFalse(t *testing.T) {
	a, _ := newTestAdapter(t)
	require.NoError(t, a.db.Close())

	assert.False(t, a.SaveConversation(t.Context(), sampleConversation()))
	assert.False(t, a.DeleteProject(t.Context(), "p1"))
}

func TestOpenToleratesUnreachableServer(t *testing.T) {
	sessions := &fakeSessions{userID: "user-1"}
	a, err := Open(t.Context(), "postgres://u:p@127.0.0.1:1/db?sslmode=disable", sessions, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })

	assert.Error(t, a.Ping(t.Context()))
	assert.False(t, a.SaveConversation(t.Context(), sampleConversation()))

	_, err = a.LoadConversations(t.Context())
	assert.Error(t, err)
	assert.Error(t, a.Migrate(t.Context()))
}

func TestMessagesSharingATimestampKeepInsertOrder(t *testing.T) {
	a, _ := newTestAdapter(t)
	ctx := t.Context()

	conv := sampleConversation()
	require.True(t, a.SaveConversation(ctx, conv))

	// ids sort opposite to insertion order
	ids := []string{"m-z", "m-m", "m-a"}
	for i, id := range ids {
		role := chat.RoleUser
		if i%2 == 1 {
			role = chat.RoleAssistant
		}
		require.True(t, a.SaveMessage(ctx, conv.ID, &chat.Message{ID: id, Role: role, Content: id, Timestamp: t0}))
	}
	// an update keeps its position
	require.True(t, a.SaveMessage(ctx, conv.ID, &chat.Message{ID: "m-z", Role: chat.RoleUser, Content: "edited", Timestamp: t0}))

	convs, err := a.LoadConversations(ctx)
	require.NoError(t, err)
	require.Len(t, convs, 1)
	var got []string
	for _, m := range convs[0].Messages {
		got = append(got, m.ID)
	}
	assert.Equal(t, ids, got)
	assert.Equal(t, "edited", convs[0].Messages[0].Content)
}
