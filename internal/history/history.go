// Package history persists conversations and their messages on the server.
package history

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/wuwenbin0122/docchat/internal/models"
)

// DefaultOwner owns chats created without a user id, including the seeded ones.
const DefaultOwner = "anonymous"

// ErrEmptyExchange is returned when AppendExchange is called without messages.
var ErrEmptyExchange = errors.New("history: empty exchange")

// Store is the server-side history contract. Unknown chats yield
// models.ErrNotFound from Owner, ListMessages and DeleteChat. AppendExchange
// on a chat owned by someone else yields models.ErrConflict.
type Store interface {
	ListChats(ctx context.Context, userID string) ([]models.ChatSummary, error)
	ListMessages(ctx context.Context, chatID string) ([]models.Message, error)
	Owner(ctx context.Context, chatID string) (string, error)
	AppendExchange(ctx context.Context, chatID, userID string, msgs ...models.Message) error
	DeleteChat(ctx context.Context, chatID string) error
}

// OwnerOf normalises a user id the way stores record chat owners.
func OwnerOf(userID string) string {
	if id := strings.TrimSpace(userID); id != "" {
		return id
	}
	return DefaultOwner
}

type chat struct {
	id       string
	owner    string
	messages []models.Message
}

func (c *chat) summary() models.ChatSummary {
	s := models.ChatSummary{ChatID: c.id, MessageCount: len(c.messages)}
	if len(c.messages) > 0 {
		s.FirstMessage = FirstMessage(c.messages)
		s.LastActivity = c.messages[len(c.messages)-1].Timestamp
	}
	return s
}

// Memory is a mutex-guarded Store kept in process memory.
type Memory struct {
	mu    sync.RWMutex
	chats map[string]*chat
}

var _ Store = (*Memory)(nil)

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{chats: make(map[string]*chat)}
}

// NewSeededMemory returns a store holding the welcome chats, owned by DefaultOwner.
func NewSeededMemory(now time.Time) *Memory {
	m := NewMemory()
	for _, seed := range models.WelcomeChats(now) {
		m.chats[seed.ID] = &chat{
			id:       seed.ID,
			owner:    DefaultOwner,
			messages: append([]models.Message(nil), seed.Messages...),
		}
	}
	return m
}

func (m *Memory) ListChats(ctx context.Context, userID string) ([]models.ChatSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	userID = strings.TrimSpace(userID)
	out := make([]models.ChatSummary, 0, len(m.chats))
	for _, c := range m.chats {
		if userID != "" && c.owner != userID {
			continue
		}
		out = append(out, c.summary())
	}

	SortSummaries(out)
	return out, nil
}

func (m *Memory) ListMessages(ctx context.Context, chatID string) ([]models.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.chats[chatID]
	if !ok {
		return nil, fmt.Errorf("history: chat %q: %w", chatID, models.ErrNotFound)
	}
	return append([]models.Message(nil), c.messages...), nil
}

func (m *Memory) Owner(ctx context.Context, chatID string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.chats[chatID]
	if !ok {
		return "", fmt.Errorf("history: chat %q: %w", chatID, models.ErrNotFound)
	}
	return c.owner, nil
}

func (m *Memory) AppendExchange(ctx context.Context, chatID, userID string, msgs ...models.Message) error {
	if len(msgs) == 0 {
		return ErrEmptyExchange
	}
	userID = OwnerOf(userID)

	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.chats[chatID]
	if !ok {
		c = &chat{id: chatID, owner: userID}
		m.chats[chatID] = c
	} else if c.owner != userID {
		return fmt.Errorf("history: chat %q belongs to another user: %w", chatID, models.ErrConflict)
	}
	for _, msg := range msgs {
		msg.ChatID = chatID
		c.messages = append(c.messages, msg)
	}
	return nil
}

func (m *Memory) DeleteChat(ctx context.Context, chatID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.chats[chatID]; !ok {
		return fmt.Errorf("history: chat %q: %w", chatID, models.ErrNotFound)
	}
	delete(m.chats, chatID)
	return nil
}

// FirstMessage picks the listing preview of a chat: the first user message,
// or the first message when the user has not spoken yet.
func FirstMessage(msgs []models.Message) string {
	for _, msg := range msgs {
		if msg.Role == models.RoleUser {
			return msg.Content
		}
	}
	if len(msgs) > 0 {
		return msgs[0].Content
	}
	return ""
}

// SortSummaries orders chats newest activity first, breaking ties by id.
func SortSummaries(list []models.ChatSummary) {
	sort.SliceStable(list, func(i, j int) bool {
		if !list[i].LastActivity.Equal(list[j].LastActivity) {
			return list[i].LastActivity.After(list[j].LastActivity)
		}
		return list[i].ChatID < list[j].ChatID
	})
}
