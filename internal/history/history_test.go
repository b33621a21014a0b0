package history

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/wuwenbin0122/docchat/internal/models"
)

func TestSeededMemoryListsWelcomeChats(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store := NewSeededMemory(now)

	chats, err := store.ListChats(context.Background(), "")
	if err != nil {
		t.Fatalf("list chats: %v", err)
	}
	if len(chats) != 2 {
		t.Fatalf("expected 2 seeded chats, got %d", len(chats))
	}

	counts := map[string]int{}
	for _, c := range chats {
		counts[c.ChatID] = c.MessageCount
	}
	if counts["chat-1"] != 3 || counts["chat-2"] != 1 {
		t.Fatalf("unexpected message counts %v", counts)
	}
}

func TestListChatsFiltersByOwner(t *testing.T) {
	store := NewSeededMemory(time.Now())
	ctx := context.Background()

	msg := models.Message{ID: "m1", Role: models.RoleUser, Content: "hi", Timestamp: time.Now()}
	if err := store.AppendExchange(ctx, "alice-chat", "alice", msg); err != nil {
		t.Fatalf("append: %v", err)
	}

	chats, err := store.ListChats(ctx, "alice")
	if err != nil {
		t.Fatalf("list chats: %v", err)
	}
	if len(chats) != 1 || chats[0].ChatID != "alice-chat" {
		t.Fatalf("expected only alice-chat, got %+v", chats)
	}

	chats, _ = store.ListChats(ctx, DefaultOwner)
	if len(chats) != 2 {
		t.Fatalf("expected seeded chats for %s, got %d", DefaultOwner, len(chats))
	}
}

func TestAppendExchangeCreatesAndOrders(t *testing.T) {
	store := NewSeededMemory(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	ctx := context.Background()
	later := time.Date(2024, 5, 2, 9, 0, 0, 0, time.UTC)

	err := store.AppendExchange(ctx, "fresh", "",
		models.Message{ID: "u1", Role: models.RoleUser, Content: "plan a trip", Timestamp: later},
		models.Message{ID: "a1", Role: models.RoleAssistant, Content: "sure", Timestamp: later.Add(time.Second)},
	)
	if err != nil {
		t.Fatalf("append: %v", err)
	}

	chats, _ := store.ListChats(ctx, "")
	if chats[0].ChatID != "fresh" {
		t.Fatalf("expected newest chat first, got %s", chats[0].ChatID)
	}
	if chats[0].FirstMessage != "plan a trip" || chats[0].MessageCount != 2 {
		t.Fatalf("unexpected summary %+v", chats[0])
	}

	msgs, err := store.ListMessages(ctx, "fresh")
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	if len(msgs) != 2 || msgs[0].ChatID != "fresh" || msgs[1].Role != models.RoleAssistant {
		t.Fatalf("unexpected messages %+v", msgs)
	}
}

func TestAppendExchangeRejectsForeignOwner(t *testing.T) {
	store := NewSeededMemory(time.Now())
	ctx := context.Background()

	owner, err := store.Owner(ctx, "chat-1")
	if err != nil || owner != DefaultOwner {
		t.Fatalf("expected chat-1 owned by %s, got %q (%v)", DefaultOwner, owner, err)
	}

	msg := models.Message{ID: "b1", Role: models.RoleUser, Content: "bob writes here", Timestamp: time.Now()}
	if err := store.AppendExchange(ctx, "chat-1", "bob", msg); !errors.Is(err, models.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}

	msgs, _ := store.ListMessages(ctx, "chat-1")
	if len(msgs) != 3 {
		t.Fatalf("expected chat-1 untouched, got %d messages", len(msgs))
	}

	// an empty user id maps to the default owner
	if err := store.AppendExchange(ctx, "chat-1", " ", msg); err != nil {
		t.Fatalf("append as default owner: %v", err)
	}
	if _, err := store.Owner(ctx, "ghost"); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected not found owner, got %v", err)
	}
}

func TestAppendExchangeRejectsEmpty(t *testing.T) {
	if err := NewMemory().AppendExchange(context.Background(), "x", ""); !errors.Is(err, ErrEmptyExchange) {
		t.Fatalf("expected ErrEmptyExchange, got %v", err)
	}
}

func TestUnknownChatIsNotFound(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	if _, err := store.ListMessages(ctx, "ghost"); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected not found from ListMessages, got %v", err)
	}
	if err := store.DeleteChat(ctx, "ghost"); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected not found from DeleteChat, got %v", err)
	}
}

func TestDeleteChatRemovesMessages(t *testing.T) {
	store := NewSeededMemory(time.Now())
	ctx := context.Background()

	if err := store.DeleteChat(ctx, "chat-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.ListMessages(ctx, "chat-1"); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected chat-1 gone, got %v", err)
	}
	chats, _ := store.ListChats(ctx, "")
	if len(chats) != 1 {
		t.Fatalf("expected 1 chat left, got %d", len(chats))
	}
}

func TestListMessagesReturnsCopy(t *testing.T) {
	store := NewSeededMemory(time.Now())
	ctx := context.Background()

	msgs, _ := store.ListMessages(ctx, "chat-2")
	msgs[0].Content = "changed"

	again, _ := store.ListMessages(ctx, "chat-2")
	if again[0].Content == "changed" {
		t.Fatalf("ListMessages leaked internal slice")
	}
}

func TestFirstMessageFallsBackToOpening(t *testing.T) {
	msgs := []models.Message{{Role: models.RoleAssistant, Content: "Let's brainstorm"}}
	if got := FirstMessage(msgs); got != "Let's brainstorm" {
		t.Fatalf("unexpected preview %q", got)
	}
	if got := FirstMessage(nil); got != "" {
		t.Fatalf("expected empty preview, got %q", got)
	}
}
