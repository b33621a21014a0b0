// Package docs lists the documents ingested for a conversation.
package docs

import (
	"context"

	"github.com/wuwenbin0122/docchat/internal/models"
)

// Lookup lists the documents of a conversation. Unknown conversations yield
// an empty slice, not an error.
type Lookup interface {
	ListDocuments(ctx context.Context, chatID string) ([]models.Document, error)
}

// StaticLookup serves documents from a fixed table.
type StaticLookup struct {
	docs map[string][]models.Document
}

var _ Lookup = (*StaticLookup)(nil)

// NewStaticLookup copies table; a nil table serves the welcome documents.
func NewStaticLookup(table map[string][]models.Document) *StaticLookup {
	if table == nil {
		table = models.WelcomeDocuments()
	}
	docs := make(map[string][]models.Document, len(table))
	for chatID, list := range table {
		docs[chatID] = append([]models.Document(nil), list...)
	}
	return &StaticLookup{docs: docs}
}

func (s *StaticLookup) ListDocuments(ctx context.Context, chatID string) ([]models.Document, error) {
	list, ok := s.docs[chatID]
	if !ok {
		return []models.Document{}, nil
	}
	return append([]models.Document(nil), list...), nil
}
