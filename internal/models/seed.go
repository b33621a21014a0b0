package models

import (
	"fmt"
	"time"
)

// SeedChat is a demo conversation shipped with a fresh install.
type SeedChat struct {
	ID       string
	Title    string
	Messages []Message
}

// WelcomeChats returns the demo conversations. Message timestamps are spaced
// one minute apart ending at now.
func WelcomeChats(now time.Time) []SeedChat {
	chats := []SeedChat{
		{
			ID:    "chat-1",
			Title: "Welcome",
			Messages: []Message{
				{Role: RoleAssistant, Content: "Hello! How can I help you today?"},
				{Role: RoleUser, Content: "Show me how this UI works."},
				{Role: RoleAssistant, Content: "Use the sidebar to switch chats and the input below to send messages."},
			},
		},
		{
			ID:    "chat-2",
			Title: "Project Ideas",
			Messages: []Message{
				{Role: RoleAssistant, Content: "Let's brainstorm some project ideas."},
			},
		},
	}

	for i := range chats {
		msgs := chats[i].Messages
		for j := range msgs {
			msgs[j].ID = fmt.Sprintf("%s-m%d", chats[i].ID, j+1)
			msgs[j].ChatID = chats[i].ID
			msgs[j].Timestamp = now.Add(-time.Duration(len(msgs)-1-j) * time.Minute)
		}
	}
	return chats
}

// WelcomeDocuments returns the demo documents keyed by conversation id.
func WelcomeDocuments() map[string][]Document {
	return map[string][]Document{
		"chat-1": {
			{ID: "d1", Name: "Getting Started.pdf", Type: "pdf"},
			{ID: "d2", Name: "User Guide.md", Type: "markdown"},
		},
		"chat-2": {
			{ID: "d3", Name: "Ideas.txt", Type: "text"},
		},
	}
}
