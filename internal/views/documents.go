package views

import (
	"context"
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/wuwenbin0122/docchat/internal/docs"
	"github.com/wuwenbin0122/docchat/internal/models"
)

const (
	documentsHeading = "Documents Ingested"
	noDocumentsText  = "No documents found for this chat."
	loadingText      = "Loading…"
)

// DocumentsPanel shows the documents of one conversation. Results of a
// lookup that finishes after the panel moved to another chat are dropped.
type DocumentsPanel struct {
	Palette *Palette

	lookup docs.Lookup
	logger *zap.Logger

	mu      sync.Mutex
	chatID  string
	docs    []models.Document
	loading bool
}

func NewDocumentsPanel(lookup docs.Lookup, logger *zap.Logger) *DocumentsPanel {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DocumentsPanel{lookup: lookup, logger: logger}
}

// Show switches the panel to chatID and fetches its documents. Lookup errors
// leave the panel empty.
func (d *DocumentsPanel) Show(ctx context.Context, chatID string) {
	d.mu.Lock()
	d.chatID = chatID
	d.docs = nil
	d.loading = chatID != ""
	d.mu.Unlock()

	if chatID == "" {
		return
	}

	list, err := d.lookup.ListDocuments(ctx, chatID)
	if err != nil {
		d.logger.Warn("fetch documents failed", zap.String("chat_id", chatID), zap.Error(err))
		list = nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.chatID != chatID {
		d.logger.Debug("dropping documents for stale chat", zap.String("chat_id", chatID))
		return
	}
	d.docs = append([]models.Document{}, list...)
	d.loading = false
}

// ChatID is the conversation the panel currently shows.
func (d *DocumentsPanel) ChatID() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.chatID
}

// Documents returns a copy of the documents on display.
func (d *DocumentsPanel) Documents() []models.Document {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]models.Document(nil), d.docs...)
}

func (d *DocumentsPanel) Render(w io.Writer) error {
	p := orDefault(d.Palette)

	d.mu.Lock()
	chatID, list, loading := d.chatID, append([]models.Document(nil), d.docs...), d.loading
	d.mu.Unlock()

	if _, err := p.Heading.Fprintln(w, documentsHeading); err != nil {
		return err
	}
	if chatID != "" {
		if _, err := p.Muted.Fprintf(w, "chat: %s\n", chatID); err != nil {
			return err
		}
	}

	if loading {
		_, err := p.Muted.Fprintln(w, loadingText)
		return err
	}
	if len(list) == 0 {
		_, err := p.Muted.Fprintln(w, noDocumentsText)
		return err
	}

	for _, doc := range list {
		if _, err := fmt.Fprintf(w, "- %s", doc.Name); err != nil {
			return err
		}
		if _, err := p.Muted.Fprintf(w, " (%s)\n", doc.Type); err != nil {
			return err
		}
	}
	return nil
}
