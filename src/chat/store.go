package chat

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

	"github.com/beymax11/chatstudio/src/aisdk"
	"github.com/beymax11/chatstudio/src/models"
	"github.com/beymax11/chatstudio/src/orclient"
	"github.com/beymax11/chatstudio/src/storage"
)

// Completer produces the assistant reply for a history and prompt.
type Completer interface {
	Complete(ctx context.Context, req orclient.Request) (string, error)
}

// ProjectDetacher drops a conversation id from every project.
type ProjectDetacher interface {
	DetachConversation(ctx context.Context, conversationID string) error
}

// Mirror receives every persisted change for best-effort remote sync.
// Implementations report success as a bool and never fail the local operation.
type Mirror interface {
	SaveConversation(ctx context.Context, conv *Conversation) bool
	SaveMessage(ctx context.Context, conversationID string, msg *Message) bool
	DeleteMessages(ctx context.Context, conversationID string, messageIDs []string) bool
	DeleteConversation(ctx context.Context, conversationID string) bool
}

type Options struct {
	Cache     storage.Cache // required
	Completer Completer     // required
	Projects  ProjectDetacher
	Mirror    Mirror
	Logger    *slog.Logger
	Clock     func() time.Time
	IDs       func() string

	// DefaultModel is used when no model was selected before.
	DefaultModel string

	// RejectConcurrentSends makes a second completion on a conversation that is
	// still awaiting one fail with ErrBusy instead of running alongside it.
	RejectConcurrentSends bool
}

// Store holds every conversation in memory and writes through to the cache.
// The mutex is never held across a completion or a mirror call.
type Store struct {
	cache     storage.Cache
	completer Completer
	projects  ProjectDetacher
	mirror    Mirror
	logger    *slog.Logger
	now       func() time.Time
	newID     func() string
	reject    bool

	mu            sync.Mutex
	conversations []*Conversation
	currentID     string
	selectedModel string
	busy          map[string]int
	inFlight      int
}

// New hydrates a store from the cache. When nothing was stored a fresh
// conversation is created and made current.
func New(ctx context.Context, opts Options) (*Store, error) {
	if opts.Cache == nil {
		return nil, errors.New("chat: cache is required")
	}
	if opts.Completer == nil {
		return nil, errors.New("chat: completer is required")
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
	if opts.DefaultModel == "" {
		opts.DefaultModel = models.DefaultID
	}

	s := &Store{
		cache:         opts.Cache,
		completer:     opts.Completer,
		projects:      opts.Projects,
		mirror:        opts.Mirror,
		logger:        opts.Logger.With("component", "conversation_store"),
		now:           opts.Clock,
		newID:         opts.IDs,
		reject:        opts.RejectConcurrentSends,
		selectedModel: models.Resolve(opts.DefaultModel).ID,
		busy:          make(map[string]int),
	}

	if err := s.hydrate(ctx); err != nil {
		return nil, err
	}

	s.mu.Lock()
	empty := len(s.conversations) == 0
	s.mu.Unlock()
	if empty {
		s.CreateConversation(ctx)
	}
	return s, nil
}

func (s *Store) hydrate(ctx context.Context) error {
	model, found, err := s.cache.Get(ctx, storage.KeySelectedModel)
	if err != nil {
		return fmt.Errorf("failed to read selected model: %w", err)
	}
	if found && models.IsKnown(model) {
		s.selectedModel = model
	}

	raw, found, err := s.cache.Get(ctx, storage.KeyConversations)
	if err != nil {
		return fmt.Errorf("failed to read conversations: %w", err)
	}
	if found && raw != "" {
		var convs []*Conversation
		if err := json.Unmarshal([]byte(raw), &convs); err != nil {
			s.logger.Warn("discarding unreadable conversation cache", "error", err)
		} else {
			s.conversations = slices.DeleteFunc(convs, func(c *Conversation) bool { return c == nil })
		}
	}

	current, found, err := s.cache.Get(ctx, storage.KeyCurrentConversationID)
	if err != nil {
		return fmt.Errorf("failed to read current conversation: %w", err)
	}
	if found && s.find(current) != nil {
		s.currentID = current
	} else if len(s.conversations) > 0 {
		s.currentID = s.conversations[0].ID
	}

	s.logger.Debug("hydrated conversations", "count", len(s.conversations), "current", s.currentID)
	return nil
}

// find returns the live conversation; callers hold mu.
func (s *Store) find(id string) *Conversation {
	for _, c := range s.conversations {
		if c.ID == id {
			return c
		}
	}
	return nil
}

// persistLocked writes the conversation list and current id to the cache.
// Cache failures are logged; in-memory state stays authoritative.
func (s *Store) persistLocked(ctx context.Context) {
	data, err := json.Marshal(s.conversations)
	if err != nil {
		s.logger.Error("failed to encode conversations", "error", err)
		return
	}
	if err := s.cache.Set(ctx, storage.KeyConversations, string(data)); err != nil {
		s.logger.Warn("failed to persist conversations", "error", err)
	}
	s.persistCurrentLocked(ctx)
}

func (s *Store) persistCurrentLocked(ctx context.Context) {
	if err := s.cache.Set(ctx, storage.KeyCurrentConversationID, s.currentID); err != nil {
		s.logger.Warn("failed to persist current conversation", "error", err)
	}
}

// CreateConversation inserts an empty conversation at the front and makes it current.
func (s *Store) CreateConversation(ctx context.Context) *Conversation {
	now := s.now()

	s.mu.Lock()
	conv := &Conversation{
		ID:        s.newID(),
		Title:     DefaultTitle,
		Messages:  []*Message{},
		Model:     s.selectedModel,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.conversations = slices.Insert(s.conversations, 0, conv)
	s.currentID = conv.ID
	s.persistLocked(ctx)
	snapshot := conv.clone()
	s.mu.Unlock()

	if s.mirror != nil {
		s.mirror.SaveConversation(ctx, snapshot)
	}
	return snapshot
}

// SwitchCurrent makes id current. Unknown ids are ignored.
func (s *Store) SwitchCurrent(ctx context.Context, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id == s.currentID || s.find(id) == nil {
		return
	}
	s.currentID = id
	s.persistCurrentLocked(ctx)
}

// AppendUserMessage adds a user message. The first message of a conversation
// also sets its title.
func (s *Store) AppendUserMessage(ctx context.Context, conversationID, content string, attachments []FileAttachment) (*Message, error) {
	s.mu.Lock()
	msg, conv, err := s.appendLocked(ctx, conversationID, content, attachments)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	s.mirrorMessage(ctx, conv, msg)
	return msg, nil
}

func (s *Store) appendLocked(ctx context.Context, conversationID, content string, attachments []FileAttachment) (*Message, *Conversation, error) {
	if strings.TrimSpace(content) == "" && len(attachments) == 0 {
		return nil, nil, fmt.Errorf("%w: message needs content or an attachment", ErrInvalidInput)
	}
	conv := s.find(conversationID)
	if conv == nil {
		return nil, nil, fmt.Errorf("%w: conversation %s", ErrNotFound, conversationID)
	}

	now := s.now()
	msg := &Message{
		ID:          s.newID(),
		Role:        RoleUser,
		Content:     content,
		Timestamp:   now,
		Model:       conv.Model,
		Attachments: slices.Clone(attachments),
	}
	if len(conv.Messages) == 0 {
		title := content
		if strings.TrimSpace(title) == "" {
			title = attachments[0].Name
		}
		conv.Title = DeriveTitle(title)
	}
	conv.Messages = append(conv.Messages, msg)
	conv.UpdatedAt = now
	s.persistLocked(ctx)

	return msg.clone(), conv.clone(), nil
}

// pending is a completion captured under the lock and run without it.
type pending struct {
	conversationID string
	model          string
	request        orclient.Request
}

// RequestCompletion answers the trailing user message of a conversation and
// appends the reply. Upstream failures become the reply text; the returned
// error is only ever a state error.
func (s *Store) RequestCompletion(ctx context.Context, conversationID, modelOverride string) (*Message, error) {
	s.mu.Lock()
	conv := s.find(conversationID)
	if conv == nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: conversation %s", ErrNotFound, conversationID)
	}
	if s.reject && s.busy[conversationID] > 0 {
		s.mu.Unlock()
		return nil, ErrBusy
	}
	last := len(conv.Messages) - 1
	if last < 0 || conv.Messages[last].Role != RoleUser {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: conversation %s does not end with a user message", ErrInvalidState, conversationID)
	}
	p := s.prepareLocked(conv, last, modelOverride)
	s.mu.Unlock()

	return s.complete(ctx, p)
}

// Send appends a user message and requests its completion.
func (s *Store) Send(ctx context.Context, conversationID, content string, attachments []FileAttachment, modelOverride string) (*Message, *Message, error) {
	s.mu.Lock()
	if s.reject && s.busy[conversationID] > 0 {
		s.mu.Unlock()
		return nil, nil, ErrBusy
	}
	userMsg, conv, err := s.appendLocked(ctx, conversationID, content, attachments)
	if err != nil {
		s.mu.Unlock()
		return nil, nil, err
	}
	live := s.find(conversationID)
	p := s.prepareLocked(live, len(live.Messages)-1, modelOverride)
	s.mu.Unlock()

	s.mirrorMessage(ctx, conv, userMsg)

	reply, err := s.complete(ctx, p)
	if err != nil {
		return userMsg, nil, err
	}
	return userMsg, reply, nil
}

// prepareLocked builds the request for the user message at index and marks
// the conversation busy. Every message before index is sent as history.
func (s *Store) prepareLocked(conv *Conversation, index int, modelOverride string) pending {
	modelID := modelOverride
	if modelID == "" {
		modelID = conv.Model
	}
	if modelID == "" {
		modelID = s.selectedModel
	}
	modelID = models.Resolve(modelID).ID

	history := make([]aisdk.Message, 0, index)
	for _, m := range conv.Messages[:index] {
		history = append(history, aisdk.Message{Role: string(m.Role), Content: m.prompt()})
	}

	s.busy[conv.ID]++
	s.inFlight++
	return pending{
		conversationID: conv.ID,
		model:          modelID,
		request: orclient.Request{
			History: history,
			Prompt:  conv.Messages[index].prompt(),
			ModelID: modelID,
		},
	}
}

func (s *Store) doneLocked(conversationID string) {
	if s.busy[conversationID] <= 1 {
		delete(s.busy, conversationID)
	} else {
		s.busy[conversationID]--
	}
	s.inFlight--
}

// reply runs the completion and renders any failure as text.
func (s *Store) reply(ctx context.Context, p pending) string {
	text, err := s.completer.Complete(ctx, p.request)
	if err != nil {
		return orclient.Describe(err)
	}
	return text
}

func (s *Store) complete(ctx context.Context, p pending) (*Message, error) {
	text := s.reply(ctx, p)

	// Cancellation stops the upstream call only; the reply is still recorded.
	ctx = context.WithoutCancel(ctx)

	s.mu.Lock()
	s.doneLocked(p.conversationID)
	conv := s.find(p.conversationID)
	if conv == nil {
		s.mu.Unlock()
		s.logger.Info("dropping completion for deleted conversation", "conversation", p.conversationID)
		return nil, fmt.Errorf("%w: conversation %s was deleted", ErrNotFound, p.conversationID)
	}

	now := s.now()
	msg := &Message{
		ID:        s.newID(),
		Role:      RoleAssistant,
		Content:   text,
		Timestamp: now,
		Model:     p.model,
	}
	conv.Messages = append(conv.Messages, msg)
	conv.Model = p.model
	conv.UpdatedAt = now
	s.persistLocked(ctx)
	msgCopy, convCopy := msg.clone(), conv.clone()
	s.mu.Unlock()

	s.mirrorMessage(ctx, convCopy, msgCopy)
	return msgCopy, nil
}

// EditMessage replaces a message's content and discards every later message.
// Editing a user message then requests a fresh completion.
func (s *Store) EditMessage(ctx context.Context, conversationID, messageID, newContent string) error {
	if strings.TrimSpace(newContent) == "" {
		return fmt.Errorf("%w: edited content is empty", ErrInvalidInput)
	}

	s.mu.Lock()
	conv := s.find(conversationID)
	if conv == nil {
		s.mu.Unlock()
		return fmt.Errorf("%w: conversation %s", ErrNotFound, conversationID)
	}
	i := conv.indexOf(messageID)
	if i < 0 {
		s.mu.Unlock()
		return fmt.Errorf("%w: message %s", ErrNotFound, messageID)
	}
	msg := conv.Messages[i]
	if s.reject && msg.Role == RoleUser && s.busy[conversationID] > 0 {
		s.mu.Unlock()
		return ErrBusy
	}

	now := s.now()
	msg.Content = newContent
	msg.Timestamp = now

	removed := make([]string, 0, len(conv.Messages)-i-1)
	for _, m := range conv.Messages[i+1:] {
		removed = append(removed, m.ID)
	}
	conv.Messages = conv.Messages[:i+1:i+1]
	conv.UpdatedAt = now
	s.persistLocked(ctx)

	edited, convCopy := msg.clone(), conv.clone()
	var p pending
	regenerate := msg.Role == RoleUser
	if regenerate {
		p = s.prepareLocked(conv, i, "")
	}
	s.mu.Unlock()

	if s.mirror != nil {
		s.mirror.SaveConversation(ctx, convCopy)
		s.mirror.SaveMessage(ctx, conversationID, edited)
		if len(removed) > 0 {
			s.mirror.DeleteMessages(ctx, conversationID, removed)
		}
	}

	if !regenerate {
		return nil
	}
	_, err := s.complete(ctx, p)
	return err
}

// Regenerate re-answers the user message preceding an assistant message and
// overwrites that assistant message in place.
func (s *Store) Regenerate(ctx context.Context, conversationID, assistantMessageID string) error {
	s.mu.Lock()
	conv := s.find(conversationID)
	if conv == nil {
		s.mu.Unlock()
		return fmt.Errorf("%w: conversation %s", ErrNotFound, conversationID)
	}
	j := conv.indexOf(assistantMessageID)
	if j < 0 {
		s.mu.Unlock()
		return fmt.Errorf("%w: message %s", ErrNotFound, assistantMessageID)
	}
	if conv.Messages[j].Role != RoleAssistant {
		s.mu.Unlock()
		return fmt.Errorf("%w: message %s is not an assistant message", ErrInvalidState, assistantMessageID)
	}
	k := j - 1
	for k >= 0 && conv.Messages[k].Role != RoleUser {
		k--
	}
	if k < 0 {
		s.mu.Unlock()
		return fmt.Errorf("%w: message %s has no preceding user message", ErrInvalidState, assistantMessageID)
	}
	if s.reject && s.busy[conversationID] > 0 {
		s.mu.Unlock()
		return ErrBusy
	}
	p := s.prepareLocked(conv, k, "")
	s.mu.Unlock()

	text := s.reply(ctx, p)
	ctx = context.WithoutCancel(ctx)

	s.mu.Lock()
	s.doneLocked(conversationID)
	conv = s.find(conversationID)
	if conv == nil {
		s.mu.Unlock()
		s.logger.Info("dropping regeneration for deleted conversation", "conversation", conversationID)
		return fmt.Errorf("%w: conversation %s was deleted", ErrNotFound, conversationID)
	}
	j = conv.indexOf(assistantMessageID)
	if j < 0 {
		s.mu.Unlock()
		s.logger.Info("dropping regeneration for discarded message", "conversation", conversationID, "message", assistantMessageID)
		return fmt.Errorf("%w: message %s was discarded", ErrNotFound, assistantMessageID)
	}

	now := s.now()
	msg := conv.Messages[j]
	msg.Content = text
	msg.Timestamp = now
	msg.Model = p.model
	conv.Model = p.model
	conv.UpdatedAt = now
	s.persistLocked(ctx)
	msgCopy, convCopy := msg.clone(), conv.clone()
	s.mu.Unlock()

	s.mirrorMessage(ctx, convCopy, msgCopy)
	return nil
}

// DeleteConversation removes a conversation and detaches it from every project.
// If it was current, the first remaining conversation becomes current.
func (s *Store) DeleteConversation(ctx context.Context, id string) {
	s.mu.Lock()
	i := slices.IndexFunc(s.conversations, func(c *Conversation) bool { return c.ID == id })
	if i < 0 {
		s.mu.Unlock()
		return
	}
	s.conversations = slices.Delete(s.conversations, i, i+1)
	if s.currentID == id {
		s.currentID = ""
		if len(s.conversations) > 0 {
			s.currentID = s.conversations[0].ID
		}
	}
	s.persistLocked(ctx)
	s.mu.Unlock()

	s.detach(ctx, id)
	if s.mirror != nil {
		s.mirror.DeleteConversation(ctx, id)
	}
}

// ClearAll discards every conversation and the cached copy, then starts a
// fresh conversation.
func (s *Store) ClearAll(ctx context.Context) {
	s.mu.Lock()
	ids := make([]string, 0, len(s.conversations))
	for _, c := range s.conversations {
		ids = append(ids, c.ID)
	}
	s.conversations = nil
	s.currentID = ""
	for _, key := range []string{storage.KeyConversations, storage.KeyCurrentConversationID} {
		if err := s.cache.Delete(ctx, key); err != nil {
			s.logger.Warn("failed to clear cache key", "key", key, "error", err)
		}
	}
	s.mu.Unlock()

	for _, id := range ids {
		s.detach(ctx, id)
		if s.mirror != nil {
			s.mirror.DeleteConversation(ctx, id)
		}
	}
	s.CreateConversation(ctx)
}

// Import adds conversations that are not known locally, typically read back
// from the remote store. Local copies win on id collisions.
func (s *Store) Import(ctx context.Context, convs []*Conversation) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	added := 0
	for _, c := range convs {
		if c == nil || s.find(c.ID) != nil {
			continue
		}
		imported := c.clone()
		if imported.Messages == nil {
			imported.Messages = []*Message{}
		}
		s.conversations = append(s.conversations, imported)
		added++
	}
	if added == 0 {
		return 0
	}

	slices.SortStableFunc(s.conversations, func(a, b *Conversation) int {
		return b.UpdatedAt.Compare(a.UpdatedAt)
	})
	if s.currentID == "" {
		s.currentID = s.conversations[0].ID
	}
	s.persistLocked(ctx)
	return added
}

func (s *Store) detach(ctx context.Context, id string) {
	if s.projects == nil {
		return
	}
	if err := s.projects.DetachConversation(ctx, id); err != nil {
		s.logger.Warn("failed to detach conversation from projects", "conversation", id, "error", err)
	}
}

func (s *Store) mirrorMessage(ctx context.Context, conv *Conversation, msg *Message) {
	if s.mirror == nil {
		return
	}
	s.mirror.SaveConversation(ctx, conv)
	s.mirror.SaveMessage(ctx, conv.ID, msg)
}

// Conversations returns copies of every conversation, most recent first.
func (s *Store) Conversations() []*Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*Conversation, len(s.conversations))
	for i, c := range s.conversations {
		out[i] = c.clone()
	}
	return out
}

// Conversation returns a copy of the conversation with id.
func (s *Store) Conversation(id string) (*Conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.find(id)
	if c == nil {
		return nil, false
	}
	return c.clone(), true
}

// Current returns a copy of the current conversation, if any.
func (s *Store) Current() (*Conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.find(s.currentID)
	if c == nil {
		return nil, false
	}
	return c.clone(), true
}

func (s *Store) SelectedModel() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectedModel
}

// SelectModel sets the model new conversations start with.
func (s *Store) SelectModel(ctx context.Context, id string) error {
	if !models.IsKnown(id) {
		return fmt.Errorf("%w: unknown model %q", ErrInvalidInput, id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.selectedModel = id
	if err := s.cache.Set(ctx, storage.KeySelectedModel, id); err != nil {
		s.logger.Warn("failed to persist selected model", "error", err)
	}
	return nil
}

// IsTyping reports whether any completion is in flight.
func (s *Store) IsTyping() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight > 0
}

// IsBusy reports whether the conversation awaits a completion.
func (s *Store) IsBusy(conversationID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy[conversationID] > 0
}
