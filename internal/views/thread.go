package views

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/wuwenbin0122/docchat/internal/chatstore"
	"github.com/wuwenbin0122/docchat/internal/models"
)

const (
	greetingTitle    = "Hello there!"
	greetingSubtitle = "How can I help you today?"
	typingText       = "Assistant is typing…"
)

// Thread renders the active conversation's messages in order.
type Thread struct {
	Palette *Palette
	// ShowTimestamps prefixes every message with its HH:MM time.
	ShowTimestamps bool
}

func (v Thread) Render(w io.Writer, snap chatstore.Snapshot) error {
	p := orDefault(v.Palette)

	conv, ok := snap.Active()
	if !ok {
		if _, err := p.Heading.Fprintln(w, greetingTitle); err != nil {
			return err
		}
		_, err := p.Muted.Fprintln(w, greetingSubtitle)
		return err
	}

	if _, err := p.Heading.Fprintln(w, conv.Title); err != nil {
		return err
	}

	for _, msg := range conv.Messages {
		if err := v.renderMessage(w, p, msg); err != nil {
			return err
		}
	}

	if snap.Loading {
		if _, err := p.Muted.Fprintln(w, typingText); err != nil {
			return err
		}
	}
	return nil
}

func (v Thread) renderMessage(w io.Writer, p *Palette, msg models.Message) error {
	if v.ShowTimestamps && !msg.Timestamp.IsZero() {
		if _, err := p.Muted.Fprintf(w, "%s ", msg.Timestamp.Local().Format("15:04")); err != nil {
			return err
		}
	}

	label, c := "Assistant", p.Assistant
	if msg.Role == models.RoleUser {
		label, c = "You", p.User
	}
	if _, err := c.Fprintf(w, "%s: ", label); err != nil {
		return err
	}

	// continuation lines line up under the first one
	indent := strings.Repeat(" ", len(label)+2)
	_, err := fmt.Fprintln(w, strings.ReplaceAll(msg.Content, "\n", "\n"+indent))
	return err
}

// Follow subscribes the thread to store and writes the in-flight part of a
// send as it happens: the pending user message with the typing indicator,
// then the assistant reply once it lands. The returned func unsubscribes.
func (v Thread) Follow(store *chatstore.Store, w io.Writer) func() {
	p := orDefault(v.Palette)

	var (
		mu      sync.Mutex
		pending string
		waiting bool
	)
	return store.Subscribe(func(snap chatstore.Snapshot) {
		mu.Lock()
		defer mu.Unlock()

		conv, ok := snap.Active()
		var last *models.Message
		if ok && len(conv.Messages) > 0 {
			last = &conv.Messages[len(conv.Messages)-1]
		}

		if snap.Loading {
			if last == nil || last.Role != models.RoleUser || last.ID == pending {
				return
			}
			pending = last.ID
			waiting = true
			_ = v.renderMessage(w, p, *last)
			_, _ = p.Muted.Fprintln(w, typingText)
			return
		}

		if !waiting {
			return
		}
		waiting = false
		// a failed send rolls the pending message back; nothing new to show
		if n := len(conv.Messages); n >= 2 && conv.Messages[n-2].ID == pending && last.Role == models.RoleAssistant {
			_ = v.renderMessage(w, p, *last)
		}
	})
}
