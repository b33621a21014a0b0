package models

import "time"

// ChatSummary is the listing row the backend returns for a conversation.
type ChatSummary struct {
	ChatID       string    `json:"chatId"`
	FirstMessage string    `json:"firstMessage"`
	MessageCount int       `json:"messageCount"`
	LastActivity time.Time `json:"lastActivity"`
}

// SendRequest is the body of POST /api/chat.
type SendRequest struct {
	ChatID  string `json:"chatId"`
	Message string `json:"message"`
	UserID  string `json:"userId"`
}

// SendReply is the assistant answer to a SendRequest.
type SendReply struct {
	MessageID string    `json:"messageId"`
	Response  string    `json:"response"`
	Timestamp time.Time `json:"timestamp"`
}
