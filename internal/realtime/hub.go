// Package realtime fans chat events out to per-conversation subscribers.
package realtime

import (
	"sync"

	"github.com/google/uuid"

	"github.com/wuwenbin0122/docchat/internal/models"
)

const defaultBuffer = 32

const (
	EventMessage = "message"
	EventDeleted = "deleted"
)

// Event is the payload delivered to subscribers of a conversation.
type Event struct {
	Type    string          `json:"type"`
	ChatID  string          `json:"chatId"`
	Message *models.Message `json:"message,omitempty"`
}

// MessageEvent wraps msg as an EventMessage for chatID.
func MessageEvent(chatID string, msg models.Message) Event {
	return Event{Type: EventMessage, ChatID: chatID, Message: &msg}
}

// Subscription receives the events of one conversation on C until closed.
type Subscription struct {
	ID     string
	ChatID string
	C      <-chan Event

	hub  *Hub
	ch   chan Event
	once sync.Once
}

// Close detaches the subscription and closes C. It is safe to call twice.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.remove(s)
	})
}

// Hub tracks subscriptions per conversation. A subscriber whose buffer is
// full misses the event instead of stalling the publisher.
type Hub struct {
	mu     sync.RWMutex
	rooms  map[string]map[string]*Subscription
	buffer int
	closed bool
}

func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &Hub{rooms: make(map[string]map[string]*Subscription), buffer: buffer}
}

// Subscribe registers a listener for chatID. On a closed hub the returned
// subscription's channel is already closed.
func (h *Hub) Subscribe(chatID string) *Subscription {
	ch := make(chan Event, h.buffer)
	sub := &Subscription{ID: uuid.NewString(), ChatID: chatID, C: ch, hub: h, ch: ch}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		close(ch)
		return sub
	}

	room := h.rooms[chatID]
	if room == nil {
		room = make(map[string]*Subscription)
		h.rooms[chatID] = room
	}
	room[sub.ID] = sub
	return sub
}

// Publish delivers ev to every subscriber of chatID and reports how many
// received it.
func (h *Hub) Publish(chatID string, ev Event) int {
	if ev.ChatID == "" {
		ev.ChatID = chatID
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for _, sub := range h.rooms[chatID] {
		select {
		case sub.ch <- ev:
			delivered++
		default:
		}
	}
	return delivered
}

// Subscribers returns the number of live subscriptions for chatID.
func (h *Hub) Subscribers(chatID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[chatID])
}

// Close ends every subscription.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for chatID, room := range h.rooms {
		for _, sub := range room {
			close(sub.ch)
		}
		delete(h.rooms, chatID)
	}
}

func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.rooms[sub.ChatID]
	if !ok {
		return
	}
	if _, ok := room[sub.ID]; !ok {
		return
	}
	delete(room, sub.ID)
	if len(room) == 0 {
		delete(h.rooms, sub.ChatID)
	}
	close(sub.ch)
}
