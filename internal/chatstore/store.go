// Package chatstore owns the client-side chat state: the conversation list,
// the active conversation and the per-conversation message threads.
//
// All mutations go through a *Store. Network calls are issued without the
// store lock held; results that arrive after the target conversation was
// deleted or already populated are discarded.
package chatstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wuwenbin0122/docchat/internal/models"
)

const (
	defaultTitle  = "New Chat"
	maxTitleRunes = 40
	defaultUserID = "anonymous"
	titleEllipsis = "…"
	slugSeparator = '-'
	maxSlugSuffix = 10000
	maxIDAttempts = 8
)

var (
	ErrUnknownConversation = errors.New("chatstore: unknown conversation")
	ErrInvalidName         = errors.New("chatstore: conversation name is not usable as an identifier")
	ErrIDExhausted         = errors.New("chatstore: could not allocate a unique identifier")
)

// Backend is the remote chat API the store talks to.
type Backend interface {
	ListChats(ctx context.Context, userID string) ([]models.ChatSummary, error)
	ListMessages(ctx context.Context, chatID string) ([]models.Message, error)
	SendMessage(ctx context.Context, req models.SendRequest) (*models.SendReply, error)
	DeleteChat(ctx context.Context, chatID string) error
}

// Conversation is a snapshot of one conversation.
type Conversation struct {
	ID           string
	Title        string
	Messages     []models.Message
	MessageCount int
	LastActivity time.Time

	name          string
	persisted     bool
	historyLoaded bool
}

func (c Conversation) clone() Conversation {
	c.Messages = append([]models.Message(nil), c.Messages...)
	return c
}

// Snapshot is a deep copy of the store state handed to views.
type Snapshot struct {
	Conversations []Conversation
	ActiveID      string
	Loading       bool
}

// Active returns the active conversation of the snapshot.
func (s Snapshot) Active() (Conversation, bool) {
	for _, conv := range s.Conversations {
		if conv.ID == s.ActiveID {
			return conv, true
		}
	}
	return Conversation{}, false
}

type Option func(*Store)

func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithUserID(userID string) Option {
	return func(s *Store) {
		if id := strings.TrimSpace(userID); id != "" {
			s.userID = id
		}
	}
}

func WithIDGenerator(gen func() string) Option {
	return func(s *Store) {
		if gen != nil {
			s.newID = gen
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithConversations seeds the store. Seeded conversations are treated as
// already known to the backend with their history loaded; the first one
// becomes active.
func WithConversations(convs ...Conversation) Option {
	return func(s *Store) {
		for _, conv := range convs {
			conv = conv.clone()
			conv.persisted = true
			conv.historyLoaded = true
			if conv.MessageCount < len(conv.Messages) {
				conv.MessageCount = len(conv.Messages)
			}
			s.conversations = append(s.conversations, &conv)
		}
		if len(s.conversations) > 0 {
			s.activeID = s.conversations[0].ID
		}
	}
}

type Store struct {
	backend Backend
	logger  *zap.Logger
	userID  string
	newID   func() string
	now     func() time.Time

	mu            sync.Mutex
	conversations []*Conversation
	activeID      string
	loading       bool
	// identifiers the backend reported as owned by another user
	taken map[string]struct{}

	listenerMu sync.Mutex
	listeners  map[int]func(Snapshot)
	nextListen int
}

func New(backend Backend, opts ...Option) *Store {
	s := &Store{
		backend:   backend,
		logger:    zap.NewNop(),
		userID:    defaultUserID,
		newID:     uuid.NewString,
		now:       func() time.Time { return time.Now().UTC() },
		taken:     make(map[string]struct{}),
		listeners: make(map[int]func(Snapshot)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load replaces the conversation list with the backend listing, preserving
// backend order. On failure the current state is kept.
func (s *Store) Load(ctx context.Context) error {
	chats, err := s.backend.ListChats(ctx, s.userID)
	if err != nil {
		s.logger.Warn("list conversations failed", zap.Error(err))
		return fmt.Errorf("chatstore: load conversations: %w", err)
	}

	s.mu.Lock()
	existing := make(map[string]*Conversation, len(s.conversations))
	for _, conv := range s.conversations {
		existing[conv.ID] = conv
	}

	loaded := make([]*Conversation, 0, len(chats)+len(s.conversations))
	seen := make(map[string]struct{}, len(chats))
	// local conversations the backend has not seen yet stay on top
	for _, conv := range s.conversations {
		if !conv.persisted {
			loaded = append(loaded, conv)
			seen[conv.ID] = struct{}{}
		}
	}
	for _, chat := range chats {
		if chat.ChatID == "" {
			continue
		}
		if _, dup := seen[chat.ChatID]; dup {
			continue
		}
		seen[chat.ChatID] = struct{}{}

		conv := &Conversation{
			ID:           chat.ChatID,
			Title:        titleFrom(chat.FirstMessage),
			MessageCount: chat.MessageCount,
			LastActivity: chat.LastActivity,
			persisted:    true,
		}
		if prev, ok := existing[chat.ChatID]; ok && prev.historyLoaded {
			conv.Messages = prev.Messages
			conv.historyLoaded = true
		}
		loaded = append(loaded, conv)
	}

	s.conversations = loaded
	if s.indexLocked(s.activeID) < 0 {
		s.activeID = ""
		if len(loaded) > 0 {
			s.activeID = loaded[0].ID
		}
	}
	activeID := s.activeID
	needHistory := false
	if idx := s.indexLocked(activeID); idx >= 0 {
		needHistory = !s.conversations[idx].historyLoaded
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.logger.Debug("conversations loaded", zap.Int("count", len(loaded)))
	s.notify(snap)

	if needHistory {
		s.loadHistory(ctx, activeID)
	}
	return nil
}

// Select makes id the active conversation and lazily loads its history when
// the thread is empty and has not been fetched yet.
func (s *Store) Select(ctx context.Context, id string) error {
	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrUnknownConversation, id)
	}

	conv := s.conversations[idx]
	s.activeID = id
	needHistory := !conv.historyLoaded
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)

	if needHistory {
		s.loadHistory(ctx, id)
	}
	return nil
}

func (s *Store) loadHistory(ctx context.Context, id string) {
	if err := s.fetchHistory(ctx, id); err != nil {
		s.logger.Warn("load conversation history failed", zap.String("chat_id", id), zap.Error(err))
	}
}

// fetchHistory loads the backend thread of id. The result is applied only if
// the conversation still exists and its history is still missing; messages
// are only ever appended locally once the history is loaded.
func (s *Store) fetchHistory(ctx context.Context, id string) error {
	messages, err := s.backend.ListMessages(ctx, id)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("chatstore: load history of %q: %w", id, err)
	}

	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx < 0 || len(s.conversations[idx].Messages) > 0 || s.conversations[idx].historyLoaded {
		s.mu.Unlock()
		s.logger.Debug("discarding stale history", zap.String("chat_id", id))
		return nil
	}

	conv := s.conversations[idx]
	conv.Messages = append([]models.Message(nil), messages...)
	conv.historyLoaded = true
	if conv.MessageCount < len(messages) {
		conv.MessageCount = len(messages)
	}
	if n := len(messages); n > 0 && messages[n-1].Timestamp.After(conv.LastActivity) {
		conv.LastActivity = messages[n-1].Timestamp
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
	return nil
}

// Create inserts a new empty conversation at the front of the list and makes
// it active. An empty name yields a random identifier titled "New Chat";
// otherwise the name is normalised to a slug and suffixed until unique.
func (s *Store) Create(name string) (string, error) {
	name = strings.TrimSpace(name)

	s.mu.Lock()
	var (
		id    string
		title string
		err   error
	)
	if name == "" {
		id, err = s.randomIDLocked()
		title = defaultTitle
	} else {
		id, err = s.slugIDLocked(name)
		title = name
	}
	if err != nil {
		s.mu.Unlock()
		return "", err
	}

	conv := &Conversation{
		ID:            id,
		Title:         title,
		LastActivity:  s.now(),
		name:          name,
		historyLoaded: true,
	}
	s.conversations = append([]*Conversation{conv}, s.conversations...)
	s.activeID = id
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
	return id, nil
}

func (s *Store) randomIDLocked() (string, error) {
	for i := 0; i < maxIDAttempts; i++ {
		id := s.newID()
		if id != "" && s.freeLocked(id) {
			return id, nil
		}
	}
	return "", ErrIDExhausted
}

func (s *Store) slugIDLocked(name string) (string, error) {
	base := Slugify(name)
	if base == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if s.freeLocked(base) {
		return base, nil
	}
	for n := 2; n < maxSlugSuffix; n++ {
		candidate := fmt.Sprintf("%s-%d", base, n)
		if s.freeLocked(candidate) {
			return candidate, nil
		}
	}
	return "", ErrIDExhausted
}

func (s *Store) freeLocked(id string) bool {
	if _, taken := s.taken[id]; taken {
		return false
	}
	return s.indexLocked(id) < 0
}

// Delete removes a conversation. Persisted conversations are deleted on the
// backend first; removal and re-activation happen under one lock so the
// active identifier never dangles.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrUnknownConversation, id)
	}
	persisted := s.conversations[idx].persisted
	s.mu.Unlock()

	if persisted {
		if err := s.backend.DeleteChat(ctx, id); err != nil && !errors.Is(err, models.ErrNotFound) {
			s.logger.Warn("delete conversation failed", zap.String("chat_id", id), zap.Error(err))
			return fmt.Errorf("chatstore: delete %q: %w", id, err)
		}
	}

	s.mu.Lock()
	if idx = s.indexLocked(id); idx < 0 {
		s.mu.Unlock()
		return nil
	}
	s.conversations = append(s.conversations[:idx], s.conversations[idx+1:]...)
	if s.activeID == id {
		s.activeID = ""
		if len(s.conversations) > 0 {
			s.activeID = s.conversations[0].ID
		}
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
	return nil
}

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) ActiveID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeID
}

func (s *Store) Active() (Conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx := s.indexLocked(s.activeID); idx >= 0 {
		return s.conversations[idx].clone(), true
	}
	return Conversation{}, false
}

func (s *Store) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Subscribe registers fn to receive a snapshot after every state change.
// The returned function removes the subscription.
func (s *Store) Subscribe(fn func(Snapshot)) func() {
	s.listenerMu.Lock()
	id := s.nextListen
	s.nextListen++
	s.listeners[id] = fn
	s.listenerMu.Unlock()

	return func() {
		s.listenerMu.Lock()
		delete(s.listeners, id)
		s.listenerMu.Unlock()
	}
}

func (s *Store) notify(snap Snapshot) {
	s.listenerMu.Lock()
	fns := make([]func(Snapshot), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.listenerMu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}

func (s *Store) snapshotLocked() Snapshot {
	convs := make([]Conversation, len(s.conversations))
	for i, conv := range s.conversations {
		convs[i] = conv.clone()
	}
	return Snapshot{Conversations: convs, ActiveID: s.activeID, Loading: s.loading}
}

func (s *Store) indexLocked(id string) int {
	if id == "" {
		return -1
	}
	for i, conv := range s.conversations {
		if conv.ID == id {
			return i
		}
	}
	return -1
}

// Slugify lowercases name and collapses every run of characters outside
// [a-z0-9_] into a single '-'.
func Slugify(name string) string {
	var b strings.Builder
	pendingSep := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			if pendingSep && b.Len() > 0 {
				b.WriteRune(slugSeparator)
			}
			pendingSep = false
			b.WriteRune(r)
		default:
			pendingSep = true
		}
	}
	return b.String()
}

func titleFrom(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return defaultTitle
	}
	if utf8.RuneCountInString(text) <= maxTitleRunes {
		return text
	}
	runes := []rune(text)
	return strings.TrimSpace(string(runes[:maxTitleRunes])) + titleEllipsis
}
