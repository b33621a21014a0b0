// Package assistant produces the assistant side of a chat exchange.
package assistant

import (
	"context"
	"strings"

	"github.com/wuwenbin0122/docchat/internal/models"
)

// DefaultMockReply is what MockReplier answers when no text is configured.
const DefaultMockReply = "This is a mocked assistant response."

// Request is one user turn plus the conversation so far.
type Request struct {
	ChatID  string
	UserID  string
	History []models.Message
	Message string
}

// Replier turns a Request into the assistant's reply text.
type Replier interface {
	Reply(ctx context.Context, req Request) (string, error)
}

// MockReplier answers every request with the same text.
type MockReplier struct {
	Text string
}

var _ Replier = MockReplier{}

func (m MockReplier) Reply(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if text := strings.TrimSpace(m.Text); text != "" {
		return text, nil
	}
	return DefaultMockReply, nil
}
