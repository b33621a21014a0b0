package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/wuwenbin0122/docchat/internal/history"
	"github.com/wuwenbin0122/docchat/internal/models"
)

var _ history.Store = (*Postgres)(nil)

const listChatsSQL = `
SELECT c.id,
       COALESCE((SELECT m.content FROM messages m
                 WHERE m.chat_id = c.id
                 ORDER BY (m.role = 'user') DESC, m.seq
                 LIMIT 1), ''),
       (SELECT COUNT(*) FROM messages m WHERE m.chat_id = c.id),
       c.updated_at
FROM chats c
WHERE $1 = '' OR c.user_id = $1
ORDER BY c.updated_at DESC, c.id`

func (p *Postgres) ListChats(ctx context.Context, userID string) ([]models.ChatSummary, error) {
	rows, err := p.Pool.Query(ctx, listChatsSQL, strings.TrimSpace(userID))
	if err != nil {
		return nil, fmt.Errorf("postgres: list chats: %w", err)
	}
	defer rows.Close()

	chats := make([]models.ChatSummary, 0)
	for rows.Next() {
		var (
			summary models.ChatSummary
			count   int64
		)
		if err := rows.Scan(&summary.ChatID, &summary.FirstMessage, &count, &summary.LastActivity); err != nil {
			return nil, fmt.Errorf("postgres: scan chat: %w", err)
		}
		summary.MessageCount = int(count)
		chats = append(chats, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list chats: %w", err)
	}

	return chats, nil
}

func (p *Postgres) ListMessages(ctx context.Context, chatID string) ([]models.Message, error) {
	var exists bool
	if err := p.Pool.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM chats WHERE id = $1)", chatID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("postgres: lookup chat: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("postgres: chat %q: %w", chatID, models.ErrNotFound)
	}

	rows, err := p.Pool.Query(ctx,
		"SELECT id, chat_id, role, content, created_at FROM messages WHERE chat_id = $1 ORDER BY seq",
		chatID,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: list messages: %w", err)
	}
	defer rows.Close()

	msgs := make([]models.Message, 0)
	for rows.Next() {
		var (
			msg  models.Message
			role string
		)
		if err := rows.Scan(&msg.ID, &msg.ChatID, &role, &msg.Content, &msg.Timestamp); err != nil {
			return nil, fmt.Errorf("postgres: scan message: %w", err)
		}
		msg.Role = models.Role(role)
		msgs = append(msgs, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list messages: %w", err)
	}

	return msgs, nil
}

func (p *Postgres) Owner(ctx context.Context, chatID string) (string, error) {
	var owner string
	err := p.Pool.QueryRow(ctx, "SELECT user_id FROM chats WHERE id = $1", chatID).Scan(&owner)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("postgres: chat %q: %w", chatID, models.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("postgres: lookup chat owner: %w", err)
	}
	return owner, nil
}

// AppendExchange creates the chat when missing and inserts msgs in one
// transaction.
func (p *Postgres) AppendExchange(ctx context.Context, chatID, userID string, msgs ...models.Message) error {
	if len(msgs) == 0 {
		return history.ErrEmptyExchange
	}
	userID = history.OwnerOf(userID)

	tx, err := p.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	last := msgs[len(msgs)-1].Timestamp
	tag, err := tx.Exec(ctx, `
INSERT INTO chats (id, user_id, created_at, updated_at)
VALUES ($1, $2, $3, $3)
ON CONFLICT (id) DO UPDATE SET updated_at = GREATEST(chats.updated_at, EXCLUDED.updated_at)
WHERE chats.user_id = EXCLUDED.user_id`,
		chatID, userID, last,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert chat: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: chat %q belongs to another user: %w", chatID, models.ErrConflict)
	}

	batch := &pgx.Batch{}
	for _, msg := range msgs {
		batch.Queue(
			"INSERT INTO messages (id, chat_id, role, content, created_at) VALUES ($1, $2, $3, $4, $5)",
			msg.ID, chatID, string(msg.Role), msg.Content, msg.Timestamp,
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("postgres: insert messages: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit: %w", err)
	}
	return nil
}

func (p *Postgres) DeleteChat(ctx context.Context, chatID string) error {
	tag, err := p.Pool.Exec(ctx, "DELETE FROM chats WHERE id = $1", chatID)
	if err != nil {
		return fmt.Errorf("postgres: delete chat: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: chat %q: %w", chatID, models.ErrNotFound)
	}
	return nil
}
