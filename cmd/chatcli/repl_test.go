package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wuwenbin0122/docchat/internal/chatstore"
	"github.com/wuwenbin0122/docchat/internal/docs"
)

func newTestRepl(t *testing.T) (*repl, *bytes.Buffer) {
	t.Helper()
	color.NoColor = true

	store := chatstore.New(&chatstore.OfflineBackend{},
		chatstore.WithConversations(chatstore.WelcomeConversations()...))
	var out bytes.Buffer
	return newRepl(store, docs.NewStaticLookup(nil), zap.NewNop(), &out), &out
}

func TestReplSession(t *testing.T) {
	r, out := newTestRepl(t)

	script := strings.Join([]string{
		"/docs",
		"hello there",
		"/new Research Notes",
		"/list",
		"/select chat-2",
		"/delete chat-2",
		"/quit",
		"never read",
	}, "\n")

	require.NoError(t, r.run(context.Background(), strings.NewReader(script)))

	text := out.String()
	assert.Contains(t, text, "Getting Started.pdf")
	assert.Contains(t, text, "You: hello there")
	assert.Contains(t, text, "Assistant: "+chatstore.MockedReply)
	assert.Contains(t, text, "Started research-notes")
	assert.Contains(t, text, "* Research Notes  [research-notes]")
	assert.Contains(t, text, "Assistant: Let's brainstorm some project ideas.")
	assert.Contains(t, text, "Deleted chat-2")
	assert.NotContains(t, text, "never read")

	snap := r.store.Snapshot()
	require.Len(t, snap.Conversations, 2)
	assert.Equal(t, "research-notes", snap.ActiveID)
}

func TestReplRejectsBadCommands(t *testing.T) {
	r, _ := newTestRepl(t)
	ctx := context.Background()

	_, err := r.handle(ctx, "/select")
	assert.Error(t, err)

	_, err = r.handle(ctx, "/select nope")
	assert.ErrorIs(t, err, chatstore.ErrUnknownConversation)

	_, err = r.handle(ctx, "/bogus")
	assert.Error(t, err)

	_, err = r.handle(ctx, "/retry")
	assert.Error(t, err)

	quit, err := r.handle(ctx, "   ")
	assert.NoError(t, err)
	assert.False(t, quit)
}

func TestReplSendWithoutConversation(t *testing.T) {
	color.NoColor = true
	store := chatstore.New(&chatstore.OfflineBackend{})
	r := newRepl(store, docs.NewStaticLookup(nil), zap.NewNop(), &bytes.Buffer{})

	_, err := r.handle(context.Background(), "hello")
	assert.Error(t, err)
}
