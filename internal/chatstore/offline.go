package chatstore

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/wuwenbin0122/docchat/internal/models"
)

// MockedReply is the canned assistant answer used when no backend is reachable.
const MockedReply = "This is a mocked assistant response."

// OfflineBackend answers every message with MockedReply after Delay. It keeps
// nothing remotely, so listings are empty and deletes always succeed.
type OfflineBackend struct {
	Reply string
	Delay time.Duration
}

var _ Backend = (*OfflineBackend)(nil)

func (b *OfflineBackend) ListChats(ctx context.Context, userID string) ([]models.ChatSummary, error) {
	return []models.ChatSummary{}, nil
}

func (b *OfflineBackend) ListMessages(ctx context.Context, chatID string) ([]models.Message, error) {
	return []models.Message{}, nil
}

func (b *OfflineBackend) SendMessage(ctx context.Context, req models.SendRequest) (*models.SendReply, error) {
	if b.Delay > 0 {
		timer := time.NewTimer(b.Delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	reply := b.Reply
	if reply == "" {
		reply = MockedReply
	}
	return &models.SendReply{
		MessageID: uuid.NewString(),
		Response:  reply,
		Timestamp: time.Now().UTC(),
	}, nil
}

func (b *OfflineBackend) DeleteChat(ctx context.Context, chatID string) error {
	return nil
}

// WelcomeConversations returns the demo conversations shown on first start.
func WelcomeConversations() []Conversation {
	seeds := models.WelcomeChats(time.Now().UTC())
	convs := make([]Conversation, 0, len(seeds))
	for _, seed := range seeds {
		convs = append(convs, Conversation{ID: seed.ID, Title: seed.Title, Messages: seed.Messages})
	}
	return convs
}
