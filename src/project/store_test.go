package project

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beymax11/chatstudio/src/storage"
)

type fakeMirror struct {
	mu      sync.Mutex
	saved   map[string][]string
	deleted []string
}

func (f *fakeMirror) SaveProject(_ context.Context, p *Project) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saved == nil {
		f.saved = make(map[string][]string)
	}
	f.saved[p.ID] = append([]string(nil), p.ConversationIDs...)
	return true
}

func (f *fakeMirror) DeleteProject(_ context.Context, id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	return true
}

func newTestStore(t *testing.T, cache storage.Cache, mirror Mirror) *Store {
	t.Helper()
	ids := 0
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	s, err := New(t.Context(), Options{
		Cache:  cache,
		Mirror: mirror,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Clock: func() time.Time {
			now = now.Add(time.Minute)
			return now
		},
		IDs: func() string {
			ids++
			return fmt.Sprintf("p-%d", ids)
		},
	})
	require.NoError(t, err)
	return s
}

func TestCreateAndRename(t *testing.T) {
	mirror := &fakeMirror{}
	s := newTestStore(t, storage.NewMemoryCache(), mirror)
	ctx := t.Context()

	_, err := s.Create(ctx, "   ")
	assert.ErrorIs(t, err, ErrInvalidInput)

	p, err := s.Create(ctx, "  Research  ")
	require.NoError(t, err)
	assert.Equal(t, "Research", p.Name)
	assert.Empty(t, p.ConversationIDs)
	assert.Contains(t, mirror.saved, p.ID)

	renamed, err := s.Rename(ctx, p.ID, "Deep research")
	require.NoError(t, err)
	assert.Equal(t, "Deep research", renamed.Name)
	assert.True(t, renamed.UpdatedAt.After(p.UpdatedAt))

	_, err = s.Rename(ctx, "missing", "x")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Rename(ctx, p.ID, "")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestAddConversationDedupes(t *testing.T) {
	mirror := &fakeMirror{}
	s := newTestStore(t, storage.NewMemoryCache(), mirror)
	ctx := t.Context()

	p, err := s.Create(ctx, "Work")
	require.NoError(t, err)

	_, err = s.AddConversation(ctx, p.ID, "c1")
	require.NoError(t, err)
	_, err = s.AddConversation(ctx, p.ID, "c2")
	require.NoError(t, err)
	got, err := s.AddConversation(ctx, p.ID, "c1")
	require.NoError(t, err)

	assert.Equal(t, []string{"c1", "c2"}, got.ConversationIDs)
	assert.Equal(t, []string{"c1", "c2"}, mirror.saved[p.ID])

	_, err = s.AddConversation(ctx, "missing", "c1")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.AddConversation(ctx, p.ID, "")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestRemoveConversation(t *testing.T) {
	s := newTestStore(t, storage.NewMemoryCache(), nil)
	ctx := t.Context()

	p, err := s.Create(ctx, "Work")
	require.NoError(t, err)
	for _, id := range []string{"c1", "c2", "c3"} {
		_, err = s.AddConversation(ctx, p.ID, id)
		require.NoError(t, err)
	}

	got, err := s.RemoveConversation(ctx, p.ID, "c2")
	require.NoError(t, err)
	assert.Equal(t, []string{"c1", "c3"}, got.ConversationIDs)

	unchanged, err := s.RemoveConversation(ctx, p.ID, "c9")
	require.NoError(t, err)
	assert.Equal(t, got.UpdatedAt, unchanged.UpdatedAt)
}

func TestDetachConversationFromEveryProject(t *testing.T) {
	mirror := &fakeMirror{}
	s := newTestStore(t, storage.NewMemoryCache(), mirror)
	ctx := t.Context()

	a, err := s.Create(ctx, "A")
	require.NoError(t, err)
	b, err := s.Create(ctx, "B")
	require.NoError(t, err)
	c, err := s.Create(ctx, "C")
	require.NoError(t, err)

	for _, p := range []*Project{a, b} {
		_, err = s.AddConversation(ctx, p.ID, "shared")
		require.NoError(t, err)
	}
	_, err = s.AddConversation(ctx, c.ID, "other")
	require.NoError(t, err)

	require.NoError(t, s.DetachConversation(ctx, "shared"))

	assert.Empty(t, s.ProjectsFor("shared"))
	for _, p := range s.List() {
		assert.NotContains(t, p.ConversationIDs, "shared")
	}
	got, _ := s.Get(c.ID)
	assert.Equal(t, []string{"other"}, got.ConversationIDs)
	assert.Empty(t, mirror.saved[a.ID])
	assert.Empty(t, mirror.saved[b.ID])
}

func TestDeleteKeepsConversations(t *testing.T) {
	mirror := &fakeMirror{}
	s := newTestStore(t, storage.NewMemoryCache(), mirror)
	ctx := t.Context()

	p, err := s.Create(ctx, "Temp")
	require.NoError(t, err)
	_, err = s.AddConversation(ctx, p.ID, "c1")
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, p.ID))
	assert.Empty(t, s.List())
	assert.Equal(t, []string{p.ID}, mirror.deleted)
	assert.ErrorIs(t, s.Delete(ctx, p.ID), ErrNotFound)
}

func TestPersistence(t *testing.T) {
	cache := storage.NewMemoryCache()
	s := newTestStore(t, cache, nil)
	ctx := t.Context()

	older, err := s.Create(ctx, "Older")
	require.NoError(t, err)
	newer, err := s.Create(ctx, "Newer")
	require.NoError(t, err)
	_, err = s.AddConversation(ctx, older.ID, "c1")
	require.NoError(t, err)

	reopened := newTestStore(t, cache, nil)
	list := reopened.List()
	require.Len(t, list, 2)
	assert.Equal(t, newer.ID, list[0].ID)
	assert.Equal(t, []string{"c1"}, list[1].ConversationIDs)
	assert.True(t, list[1].CreatedAt.Equal(older.CreatedAt))
}

func TestHydrateDedupesCachedMembership(t *testing.T) {
	cache := storage.NewMemoryCache()
	require.NoError(t, cache.Set(t.Context(), storage.KeyProjects,
		`[{"id":"p","name":"P","conversationIds":["a","b","a"],"createdAt":"2025-01-01T00:00:00Z","updatedAt":"2025-01-01T00:00:00Z"}]`))

	s := newTestStore(t, cache, nil)
	p, ok := s.Get("p")
	require.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, p.ConversationIDs)
}

func TestClearAllAndImport(t *testing.T) {
	mirror := &fakeMirror{}
	s := newTestStore(t, storage.NewMemoryCache(), mirror)
	ctx := t.Context()

	p, err := s.Create(ctx, "Gone soon")
	require.NoError(t, err)
	s.ClearAll(ctx)
	assert.Empty(t, s.List())
	assert.Equal(t, []string{p.ID}, mirror.deleted)

	added := s.Import(ctx, []*Project{
		{ID: "r1", Name: "Remote", ConversationIDs: []string{"x", "x"}},
		nil,
	})
	assert.Equal(t, 1, added)
	got, ok := s.Get("r1")
	require.True(t, ok)
	assert.Equal(t, []string{"x"}, got.ConversationIDs)
	assert.Zero(t, s.Import(ctx, []*Project{{ID: "r1", Name: "dup"}}))
}
