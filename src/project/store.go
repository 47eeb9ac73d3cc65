// Package project groups conversation ids into named collections.
package project

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/beymax11/chatstudio/src/storage"
)

var (
	// ErrInvalidInput is returned for a blank project name.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound is returned for an unknown project id.
	ErrNotFound = errors.New("project not found")
)

// Project holds conversation ids by value; the conversations may no longer exist.
type Project struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	ConversationIDs []string  `json:"conversationIds"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

func (p *Project) clone() *Project {
	c := *p
	c.ConversationIDs = slices.Clone(p.ConversationIDs)
	if c.ConversationIDs == nil {
		c.ConversationIDs = []string{}
	}
	return &c
}

// Contains reports whether the project references conversationID.
func (p *Project) Contains(conversationID string) bool {
	return slices.Contains(p.ConversationIDs, conversationID)
}

// Mirror receives project changes for best-effort remote sync.
type Mirror interface {
	SaveProject(ctx context.Context, p *Project) bool
	DeleteProject(ctx context.Context, projectID string) bool
}

type Options struct {
	Cache  storage.Cache // required
	Mirror Mirror
	Logger *slog.Logger
	Clock  func() time.Time
	IDs    func() string
}

type Store struct {
	cache  storage.Cache
	mirror Mirror
	logger *slog.Logger
	now    func() time.Time
	newID  func() string

	mu       sync.Mutex
	projects []*Project
}

// New hydrates the project list from the cache.
func New(ctx context.Context, opts Options) (*Store, error) {
	if opts.Cache == nil {
		return nil, errors.New("project: cache is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.IDs == nil {
		opts.IDs = uuid.NewString
	}

	s := &Store{
		cache:  opts.Cache,
		mirror: opts.Mirror,
		logger: opts.Logger.With("component", "project_store"),
		now:    opts.Clock,
		newID:  opts.IDs,
	}

	raw, found, err := s.cache.Get(ctx, storage.KeyProjects)
	if err != nil {
		return nil, fmt.Errorf("failed to read projects: %w", err)
	}
	if found && raw != "" {
		var projects []*Project
		if err := json.Unmarshal([]byte(raw), &projects); err != nil {
			s.logger.Warn("discarding unreadable project cache", "error", err)
		} else {
			for _, p := range projects {
				if p == nil {
					continue
				}
				p.ConversationIDs = dedupe(p.ConversationIDs)
				s.projects = append(s.projects, p)
			}
		}
	}
	return s, nil
}

func dedupe(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}

func (s *Store) find(id string) *Project {
	for _, p := range s.projects {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (s *Store) persistLocked(ctx context.Context) {
	data, err := json.Marshal(s.projects)
	if err != nil {
		s.logger.Error("failed to encode projects", "error", err)
		return
	}
	if err := s.cache.Set(ctx, storage.KeyProjects, string(data)); err != nil {
		s.logger.Warn("failed to persist projects", "error", err)
	}
}

func (s *Store) save(ctx context.Context, p *Project) {
	if s.mirror != nil {
		s.mirror.SaveProject(ctx, p)
	}
}

func validName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: project name is empty", ErrInvalidInput)
	}
	return name, nil
}

// Create adds an empty project at the front of the list.
func (s *Store) Create(ctx context.Context, name string) (*Project, error) {
	name, err := validName(name)
	if err != nil {
		return nil, err
	}

	now := s.now()
	s.mu.Lock()
	p := &Project{
		ID:              s.newID(),
		Name:            name,
		ConversationIDs: []string{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	s.projects = slices.Insert(s.projects, 0, p)
	s.persistLocked(ctx)
	snapshot := p.clone()
	s.mu.Unlock()

	s.save(ctx, snapshot)
	return snapshot, nil
}

// Rename changes a project's name.
func (s *Store) Rename(ctx context.Context, id, name string) (*Project, error) {
	name, err := validName(name)
	if err != nil {
		return nil, err
	}
	return s.update(ctx, id, func(p *Project) bool {
		if p.Name == name {
			return false
		}
		p.Name = name
		return true
	})
}

// Delete removes a project. Its conversations are left alone.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	i := slices.IndexFunc(s.projects, func(p *Project) bool { return p.ID == id })
	if i < 0 {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	s.projects = slices.Delete(s.projects, i, i+1)
	s.persistLocked(ctx)
	s.mu.Unlock()

	if s.mirror != nil {
		s.mirror.DeleteProject(ctx, id)
	}
	return nil
}

// AddConversation appends conversationID unless the project already has it.
func (s *Store) AddConversation(ctx context.Context, projectID, conversationID string) (*Project, error) {
	if strings.TrimSpace(conversationID) == "" {
		return nil, fmt.Errorf("%w: conversation id is empty", ErrInvalidInput)
	}
	return s.update(ctx, projectID, func(p *Project) bool {
		if p.Contains(conversationID) {
			return false
		}
		p.ConversationIDs = append(p.ConversationIDs, conversationID)
		return true
	})
}

// RemoveConversation drops conversationID from one project.
func (s *Store) RemoveConversation(ctx context.Context, projectID, conversationID string) (*Project, error) {
	return s.update(ctx, projectID, func(p *Project) bool {
		before := len(p.ConversationIDs)
		p.ConversationIDs = slices.DeleteFunc(p.ConversationIDs, func(id string) bool { return id == conversationID })
		return len(p.ConversationIDs) != before
	})
}

// update applies fn to the project and persists when fn reports a change.
func (s *Store) update(ctx context.Context, id string, fn func(*Project) bool) (*Project, error) {
	s.mu.Lock()
	p := s.find(id)
	if p == nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	changed := fn(p)
	if changed {
		p.UpdatedAt = s.now()
		s.persistLocked(ctx)
	}
	snapshot := p.clone()
	s.mu.Unlock()

	if changed {
		s.save(ctx, snapshot)
	}
	return snapshot, nil
}

// DetachConversation removes conversationID from every project that has it.
func (s *Store) DetachConversation(ctx context.Context, conversationID string) error {
	s.mu.Lock()
	var changed []*Project
	now := s.now()
	for _, p := range s.projects {
		if !p.Contains(conversationID) {
			continue
		}
		p.ConversationIDs = slices.DeleteFunc(p.ConversationIDs, func(id string) bool { return id == conversationID })
		p.UpdatedAt = now
		changed = append(changed, p.clone())
	}
	if len(changed) > 0 {
		s.persistLocked(ctx)
	}
	s.mu.Unlock()

	for _, p := range changed {
		s.save(ctx, p)
	}
	return nil
}

// Import adds projects not known locally. Local copies win on id collisions.
func (s *Store) Import(ctx context.Context, projects []*Project) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	added := 0
	for _, p := range projects {
		if p == nil || s.find(p.ID) != nil {
			continue
		}
		imported := p.clone()
		imported.ConversationIDs = dedupe(imported.ConversationIDs)
		s.projects = append(s.projects, imported)
		added++
	}
	if added > 0 {
		s.persistLocked(ctx)
	}
	return added
}

// ClearAll removes every project.
func (s *Store) ClearAll(ctx context.Context) {
	s.mu.Lock()
	ids := make([]string, 0, len(s.projects))
	for _, p := range s.projects {
		ids = append(ids, p.ID)
	}
	s.projects = nil
	if err := s.cache.Delete(ctx, storage.KeyProjects); err != nil {
		s.logger.Warn("failed to clear project cache", "error", err)
	}
	s.mu.Unlock()

	if s.mirror != nil {
		for _, id := range ids {
			s.mirror.DeleteProject(ctx, id)
		}
	}
}

// List returns copies of every project, newest first.
func (s *Store) List() []*Project {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*Project, len(s.projects))
	for i, p := range s.projects {
		out[i] = p.clone()
	}
	return out
}

func (s *Store) Get(id string) (*Project, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.find(id)
	if p == nil {
		return nil, false
	}
	return p.clone(), true
}

// ProjectsFor returns the projects that reference conversationID.
func (s *Store) ProjectsFor(conversationID string) []*Project {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*Project
	for _, p := range s.projects {
		if p.Contains(conversationID) {
			out = append(out, p.clone())
		}
	}
	return out
}
