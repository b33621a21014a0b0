package chatstore

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/wuwenbin0122/docchat/internal/models"
)

// SendStatus is the outcome of a Send call.
type SendStatus int

const (
	// SendSkipped means nothing was sent: no active conversation or blank text.
	SendSkipped SendStatus = iota
	// SendBusy means another send was still in flight.
	SendBusy
	// SendDelivered means both the user and the assistant message were appended.
	SendDelivered
	// SendFailed means the backend call failed and the user message was rolled back.
	SendFailed
	// SendDiscarded means the conversation was deleted before the reply arrived.
	SendDiscarded
)

func (s SendStatus) String() string {
	switch s {
	case SendSkipped:
		return "skipped"
	case SendBusy:
		return "busy"
	case SendDelivered:
		return "delivered"
	case SendFailed:
		return "failed"
	case SendDiscarded:
		return "discarded"
	default:
		return "unknown"
	}
}

// SendResult reports what Send did. RestoredInput carries the caller's text
// back whenever it was not consumed.
type SendResult struct {
	Status         SendStatus
	ConversationID string
	User           *models.Message
	Reply          *models.Message
	RestoredInput  string
	Err            error
}

// OK reports whether the exchange was delivered.
func (r SendResult) OK() bool {
	return r.Status == SendDelivered
}

// Send appends text as a user message to the active conversation, asks the
// backend for the assistant reply and appends it. The user message is visible
// to subscribers before the backend answers and is removed again if the
// backend call fails. Only one send may be in flight per store.
//
// A conversation whose history has not been fetched yet is loaded first so
// local messages never hide the backend thread.
func (s *Store) Send(ctx context.Context, text string) SendResult {
	trimmed := strings.TrimSpace(text)

	s.mu.Lock()
	idx := s.indexLocked(s.activeID)
	if idx < 0 || trimmed == "" {
		s.mu.Unlock()
		return SendResult{Status: SendSkipped, RestoredInput: text}
	}
	if s.loading {
		s.mu.Unlock()
		return SendResult{Status: SendBusy, ConversationID: s.activeID, RestoredInput: text}
	}
	chatID := s.conversations[idx].ID
	needHistory := !s.conversations[idx].historyLoaded
	s.loading = true
	s.mu.Unlock()

	if needHistory {
		if err := s.fetchHistory(ctx, chatID); err != nil {
			s.logger.Warn("send needs conversation history", zap.String("chat_id", chatID), zap.Error(err))
			snap := s.finishLoading()
			s.notify(snap)
			return SendResult{Status: SendFailed, ConversationID: chatID, RestoredInput: text, Err: err}
		}
	}

	s.mu.Lock()
	idx = s.indexLocked(chatID)
	if idx < 0 {
		s.loading = false
		snap := s.snapshotLocked()
		s.mu.Unlock()

		s.notify(snap)
		return SendResult{Status: SendDiscarded, ConversationID: chatID, RestoredInput: text}
	}
	conv := s.conversations[idx]
	firstMessage := len(conv.Messages) == 0 && conv.MessageCount == 0
	userMsg := models.Message{
		ID:        s.newID(),
		ChatID:    chatID,
		Role:      models.RoleUser,
		Content:   trimmed,
		Timestamp: s.now(),
	}
	conv.Messages = append(conv.Messages, userMsg)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)

	var (
		reply *models.SendReply
		err   error
	)
	for attempt := 0; ; attempt++ {
		reply, err = s.backend.SendMessage(ctx, models.SendRequest{
			ChatID:  chatID,
			Message: trimmed,
			UserID:  s.userID,
		})
		if err == nil || !errors.Is(err, models.ErrConflict) || attempt >= maxIDAttempts {
			break
		}
		renamed, ok := s.reassignID(chatID)
		if !ok {
			break
		}
		chatID = renamed
		userMsg.ChatID = renamed
	}

	s.mu.Lock()
	s.loading = false
	idx = s.indexLocked(chatID)

	if err != nil {
		if idx >= 0 {
			s.conversations[idx].removeMessage(userMsg.ID)
		}
		snap = s.snapshotLocked()
		s.mu.Unlock()

		s.logger.Warn("send message failed", zap.String("chat_id", chatID), zap.Error(err))
		s.notify(snap)
		return SendResult{Status: SendFailed, ConversationID: chatID, RestoredInput: text, Err: err}
	}

	if idx < 0 {
		snap = s.snapshotLocked()
		s.mu.Unlock()

		s.logger.Debug("discarding reply for deleted conversation", zap.String("chat_id", chatID))
		s.notify(snap)
		// the backend stored the exchange after the local delete went through
		if derr := s.backend.DeleteChat(ctx, chatID); derr != nil && !errors.Is(derr, models.ErrNotFound) {
			s.logger.Warn("delete of discarded conversation failed", zap.String("chat_id", chatID), zap.Error(derr))
		}
		return SendResult{Status: SendDiscarded, ConversationID: chatID, User: &userMsg}
	}

	replyMsg := models.Message{
		ID:        reply.MessageID,
		ChatID:    chatID,
		Role:      models.RoleAssistant,
		Content:   reply.Response,
		Timestamp: reply.Timestamp,
	}
	if replyMsg.ID == "" {
		replyMsg.ID = s.newID()
	}
	if replyMsg.Timestamp.IsZero() {
		replyMsg.Timestamp = s.now()
	}

	conv = s.conversations[idx]
	conv.Messages = append(conv.Messages, replyMsg)
	conv.MessageCount += 2
	conv.LastActivity = replyMsg.Timestamp
	conv.persisted = true
	if firstMessage && conv.name == "" {
		conv.Title = titleFrom(trimmed)
	}
	snap = s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
	return SendResult{Status: SendDelivered, ConversationID: chatID, User: &userMsg, Reply: &replyMsg}
}

func (s *Store) finishLoading() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	return s.snapshotLocked()
}

// reassignID gives a conversation the backend has never stored a fresh
// identifier after the backend reported oldID as taken by another user.
func (s *Store) reassignID(oldID string) (string, bool) {
	s.mu.Lock()
	idx := s.indexLocked(oldID)
	if idx < 0 || s.conversations[idx].persisted {
		s.mu.Unlock()
		return "", false
	}
	s.taken[oldID] = struct{}{}

	conv := s.conversations[idx]
	var (
		id  string
		err error
	)
	if conv.name != "" {
		id, err = s.slugIDLocked(conv.name)
	} else {
		id, err = s.randomIDLocked()
	}
	if err != nil {
		s.mu.Unlock()
		return "", false
	}

	conv.ID = id
	for i := range conv.Messages {
		conv.Messages[i].ChatID = id
	}
	if s.activeID == oldID {
		s.activeID = id
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.logger.Info("conversation identifier taken remotely, renamed",
		zap.String("from", oldID), zap.String("to", id))
	s.notify(snap)
	return id, true
}

func (c *Conversation) removeMessage(id string) {
	for i := len(c.Messages) - 1; i >= 0; i-- {
		if c.Messages[i].ID == id {
			c.Messages = append(c.Messages[:i], c.Messages[i+1:]...)
			return
		}
	}
}
