package app

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beymax11/chatstudio/src/config"
	"github.com/beymax11/chatstudio/src/storage"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Storage.DatabasePath = filepath.Join(t.TempDir(), "state", "chatstudio.db")
	cfg.Translation.Enabled = false
	cfg.API.APIKey = "test-key"
	return cfg
}

func newTestApp(t *testing.T, cfg *config.Config, opts Options) *App {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	a, err := New(t.Context(), cfg, opts)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

func TestNewBootstrapsStores(t *testing.T) {
	a := newTestApp(t, testConfig(t), Options{})

	assert.IsType(t, &storage.SettingsCache{}, a.Cache)
	assert.Nil(t, a.Translator)
	assert.Nil(t, a.Auth)
	assert.Nil(t, a.Remote)

	convs := a.Chats.Conversations()
	require.Len(t, convs, 1)
	current, ok := a.Chats.Current()
	require.True(t, ok)
	assert.Equal(t, convs[0].ID, current.ID)
	assert.Equal(t, "fast", a.Chats.SelectedModel())
	assert.Empty(t, a.Projects.List())
}

func TestStateSurvivesRestart(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	a, err := New(ctx, cfg, Options{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	require.NoError(t, err)
	p, err := a.Projects.Create(ctx, "Research")
	require.NoError(t, err)
	require.NoError(t, a.Chats.SelectModel(ctx, "balanced"))
	conv := a.Chats.CreateConversation(ctx)
	_, err = a.Projects.AddConversation(ctx, p.ID, conv.ID)
	require.NoError(t, err)
	require.NoError(t, a.Close())

	b := newTestApp(t, cfg, Options{})
	assert.Len(t, b.Chats.Conversations(), 2)
	assert.Equal(t, "balanced", b.Chats.SelectedModel())
	got, ok := b.Projects.Get(p.ID)
	require.True(t, ok)
	assert.Equal(t, []string{conv.ID}, got.ConversationIDs)
}

func TestFileBackend(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.Backend = config.BackendFile
	cfg.Storage.CacheDir = "/cache"
	fsys := afero.NewMemMapFs()

	a := newTestApp(t, cfg, Options{Fs: fsys})
	assert.IsType(t, &storage.FileCache{}, a.Cache)

	exists, err := afero.Exists(fsys, "/cache/conversations.json")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestAuthWiring(t *testing.T) {
	cfg := testConfig(t)
	a := newTestApp(t, cfg, Options{})
	_, err := a.RequireAuth()
	assert.ErrorIs(t, err, ErrAuthDisabled)

	cfg = testConfig(t)
	cfg.Auth.BaseURL = "http://127.0.0.1:1"
	cfg.Auth.SessionPath = "/state/session.json"
	a = newTestApp(t, cfg, Options{Fs: afero.NewMemMapFs()})
	svc, err := a.RequireAuth()
	require.NoError(t, err)

	_, ok := svc.CurrentUserID(t.Context())
	assert.False(t, ok)
}

func TestPullRequiresRemote(t *testing.T) {
	a := newTestApp(t, testConfig(t), Options{Cache: storage.NewMemoryCache()})
	_, err := a.Pull(t.Context())
	assert.ErrorIs(t, err, ErrRemoteDisabled)
}

func TestNewWithUnreachableRemote(t *testing.T) {
	cfg := testConfig(t)
	cfg.Remote.Enabled = true
	cfg.Remote.DSN = "postgres://u:p@127.0.0.1:1/db?sslmode=disable"
	a := newTestApp(t, cfg, Options{})
	require.NotNil(t, a.Remote)

	ctx := t.Context()
	conv := a.Chats.CreateConversation(ctx)
	msg, err := a.Chats.AppendUserMessage(ctx, conv.ID, "still works offline", nil)
	require.NoError(t, err)
	got, ok := a.Chats.Conversation(conv.ID)
	require.True(t, ok)
	assert.Equal(t, msg.ID, got.Messages[len(got.Messages)-1].ID)

	_, err = a.Pull(ctx)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrRemoteDisabled)
}
