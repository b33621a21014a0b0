package views

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wuwenbin0122/docchat/internal/chatstore"
	"github.com/wuwenbin0122/docchat/internal/docs"
	"github.com/wuwenbin0122/docchat/internal/models"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

type failingBackend struct {
	chatstore.OfflineBackend
}

func (failingBackend) SendMessage(ctx context.Context, req models.SendRequest) (*models.SendReply, error) {
	return nil, errors.New("network down")
}

func welcomeStore(backend chatstore.Backend) *chatstore.Store {
	return chatstore.New(backend, chatstore.WithConversations(chatstore.WelcomeConversations()...))
}

func render(t *testing.T, fn func(io.Writer) error) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, fn(&buf))
	return buf.String()
}

func TestConversationListMarksActive(t *testing.T) {
	store := welcomeStore(&chatstore.OfflineBackend{})
	list := ConversationList{Palette: NewPalette(false)}

	out := render(t, func(b io.Writer) error { return list.Render(b, store.Snapshot()) })
	assert.Equal(t, "Chats\n* Welcome  [chat-1]\n  Project Ideas  [chat-2]\n", out)

	require.NoError(t, store.Select(context.Background(), "chat-2"))
	out = render(t, func(b io.Writer) error { return list.Render(b, store.Snapshot()) })
	assert.Contains(t, out, "* Project Ideas  [chat-2]")
	assert.Contains(t, out, "  Welcome  [chat-1]")
}

func TestConversationListEmptyState(t *testing.T) {
	store := chatstore.New(&chatstore.OfflineBackend{})
	out := render(t, func(b io.Writer) error { return ConversationList{}.Render(b, store.Snapshot()) })
	assert.Equal(t, "Chats\n"+emptyListText+"\n", out)
}

func TestThreadGreetingWithoutActiveConversation(t *testing.T) {
	store := chatstore.New(&chatstore.OfflineBackend{})
	out := render(t, func(b io.Writer) error { return Thread{}.Render(b, store.Snapshot()) })
	assert.Equal(t, "Hello there!\nHow can I help you today?\n", out)
}

func TestThreadRendersMessagesInOrder(t *testing.T) {
	store := welcomeStore(&chatstore.OfflineBackend{})
	out := render(t, func(b io.Writer) error { return Thread{}.Render(b, store.Snapshot()) })

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "Welcome", lines[0])
	assert.Equal(t, "Assistant: Hello! How can I help you today?", lines[1])
	assert.Equal(t, "You: Show me how this UI works.", lines[2])
	assert.True(t, strings.HasPrefix(lines[3], "Assistant: Use the sidebar"))
}

func TestThreadIndentsMultilineMessages(t *testing.T) {
	snap := chatstore.Snapshot{
		ActiveID: "c",
		Conversations: []chatstore.Conversation{{
			ID:       "c",
			Title:    "Multi",
			Messages: []models.Message{{ID: "m", Role: models.RoleUser, Content: "one\ntwo"}},
		}},
		Loading: true,
	}
	out := render(t, func(b io.Writer) error { return Thread{}.Render(b, snap) })
	assert.Equal(t, "Multi\nYou: one\n     two\n"+typingText+"\n", out)
}

func TestInputSubmitDelivers(t *testing.T) {
	backend := &chatstore.OfflineBackend{}
	store := welcomeStore(backend)
	input := NewInput(store)

	assert.False(t, input.CanSubmit())
	input.SetText("  hello  ")
	assert.True(t, input.CanSubmit())

	result := input.Submit(context.Background())
	require.True(t, result.OK())
	assert.Equal(t, "", input.Text())

	active, ok := store.Active()
	require.True(t, ok)
	require.Len(t, active.Messages, 5)
	assert.Equal(t, "hello", active.Messages[3].Content)
	assert.Equal(t, chatstore.MockedReply, active.Messages[4].Content)
}

func TestThreadFollowShowsSendInFlight(t *testing.T) {
	store := welcomeStore(&chatstore.OfflineBackend{})
	var buf bytes.Buffer
	unfollow := Thread{Palette: NewPalette(false)}.Follow(store, &buf)

	require.True(t, store.Send(context.Background(), "hello").OK())
	assert.Equal(t, "You: hello\n"+typingText+"\nAssistant: "+chatstore.MockedReply+"\n", buf.String())

	// selecting another conversation is not a send
	require.NoError(t, store.Select(context.Background(), "chat-2"))
	assert.NotContains(t, buf.String(), "brainstorm")

	unfollow()
	require.True(t, store.Send(context.Background(), "quiet").OK())
	assert.NotContains(t, buf.String(), "quiet")
}

func TestThreadFollowSkipsReplyAfterFailure(t *testing.T) {
	store := welcomeStore(&failingBackend{})
	var buf bytes.Buffer
	defer Thread{Palette: NewPalette(false)}.Follow(store, &buf)()

	assert.Equal(t, chatstore.SendFailed, store.Send(context.Background(), "lost").Status)
	assert.Equal(t, "You: lost\n"+typingText+"\n", buf.String())
}

func TestInputRestoresTextOnFailure(t *testing.T) {
	store := welcomeStore(&failingBackend{})
	input := NewInput(store)
	input.SetText("will fail")

	result := input.Submit(context.Background())
	assert.Equal(t, chatstore.SendFailed, result.Status)
	assert.Equal(t, "will fail", input.Text())

	active, _ := store.Active()
	assert.Len(t, active.Messages, 3)
}

func TestInputRendersPlaceholder(t *testing.T) {
	input := NewInput(welcomeStore(&chatstore.OfflineBackend{}))
	input.Palette = NewPalette(false)

	assert.Equal(t, "> "+placeholder+"\n", render(t, input.Render))

	input.SetText("draft")
	assert.Equal(t, "> draft\n", render(t, input.Render))
}

type gatedLookup struct {
	docs.Lookup
	mu    sync.Mutex
	gates map[string]chan struct{}
}

func (g *gatedLookup) ListDocuments(ctx context.Context, chatID string) ([]models.Document, error) {
	g.mu.Lock()
	gate := g.gates[chatID]
	g.mu.Unlock()
	if gate != nil {
		<-gate
	}
	return g.Lookup.ListDocuments(ctx, chatID)
}

func TestDocumentsPanelShowsDocuments(t *testing.T) {
	panel := NewDocumentsPanel(docs.NewStaticLookup(nil), nil)
	panel.Show(context.Background(), "chat-1")

	out := render(t, panel.Render)
	assert.Equal(t, "Documents Ingested\nchat: chat-1\n- Getting Started.pdf (pdf)\n- User Guide.md (markdown)\n", out)

	panel.Show(context.Background(), "unknown")
	out = render(t, panel.Render)
	assert.Contains(t, out, noDocumentsText)
}

func TestDocumentsPanelDropsStaleResults(t *testing.T) {
	gate := make(chan struct{})
	lookup := &gatedLookup{Lookup: docs.NewStaticLookup(nil), gates: map[string]chan struct{}{"chat-1": gate}}
	panel := NewDocumentsPanel(lookup, nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		panel.Show(context.Background(), "chat-1")
	}()

	require.Eventually(t, func() bool { return panel.ChatID() == "chat-1" }, time.Second, time.Millisecond)
	assert.Contains(t, render(t, panel.Render), loadingText)

	panel.Show(context.Background(), "chat-2")
	close(gate)
	<-done

	assert.Equal(t, "chat-2", panel.ChatID())
	got := panel.Documents()
	require.Len(t, got, 1)
	assert.Equal(t, "Ideas.txt", got[0].Name)
}

type brokenLookup struct{}

func (brokenLookup) ListDocuments(ctx context.Context, chatID string) ([]models.Document, error) {
	return nil, errors.New("boom")
}

func TestDocumentsPanelDegradesOnError(t *testing.T) {
	panel := NewDocumentsPanel(brokenLookup{}, nil)
	panel.Show(context.Background(), "chat-1")

	assert.Empty(t, panel.Documents())
	assert.Contains(t, render(t, panel.Render), noDocumentsText)
}
