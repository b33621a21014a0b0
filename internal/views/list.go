package views

import (
	"fmt"
	"io"

	"github.com/wuwenbin0122/docchat/internal/chatstore"
)

const emptyListText = "No chats yet. Type /new to start."

// ConversationList renders the sidebar: one line per conversation, the
// active one marked.
type ConversationList struct {
	Palette *Palette
}

func (v ConversationList) Render(w io.Writer, snap chatstore.Snapshot) error {
	p := orDefault(v.Palette)

	if _, err := p.Heading.Fprintln(w, "Chats"); err != nil {
		return err
	}
	if len(snap.Conversations) == 0 {
		_, err := p.Muted.Fprintln(w, emptyListText)
		return err
	}

	for _, conv := range snap.Conversations {
		var err error
		if conv.ID == snap.ActiveID {
			_, err = p.Active.Fprintf(w, "* %s", conv.Title)
		} else {
			_, err = fmt.Fprintf(w, "  %s", conv.Title)
		}
		if err != nil {
			return err
		}
		if _, err := p.Muted.Fprintf(w, "  [%s]\n", conv.ID); err != nil {
			return err
		}
	}
	return nil
}
