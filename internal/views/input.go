package views

import (
	"context"
	"io"
	"strings"
	"sync"

	"github.com/wuwenbin0122/docchat/internal/chatstore"
)

const placeholder = "Your message..."

// Input is the message composer. It owns the pending text and hands it to
// the store on Submit.
type Input struct {
	Palette *Palette

	store *chatstore.Store

	mu   sync.Mutex
	text string
}

func NewInput(store *chatstore.Store) *Input {
	return &Input{store: store}
}

func (i *Input) SetText(text string) {
	i.mu.Lock()
	i.text = text
	i.mu.Unlock()
}

func (i *Input) Text() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.text
}

// CanSubmit mirrors the disabled state of a send button.
func (i *Input) CanSubmit() bool {
	if strings.TrimSpace(i.Text()) == "" {
		return false
	}
	snap := i.store.Snapshot()
	return snap.ActiveID != "" && !snap.Loading
}

// Submit clears the pending text and sends it. When the send fails or is
// refused the text comes back, unless the user typed something new meanwhile.
func (i *Input) Submit(ctx context.Context) chatstore.SendResult {
	i.mu.Lock()
	text := i.text
	i.text = ""
	i.mu.Unlock()

	result := i.store.Send(ctx, text)

	switch result.Status {
	case chatstore.SendFailed, chatstore.SendBusy, chatstore.SendSkipped:
		i.mu.Lock()
		if i.text == "" {
			i.text = result.RestoredInput
		}
		i.mu.Unlock()
	}
	return result
}

func (i *Input) Render(w io.Writer) error {
	p := orDefault(i.Palette)

	text := i.Text()
	if _, err := p.Muted.Fprint(w, "> "); err != nil {
		return err
	}

	var err error
	if text == "" {
		_, err = p.Muted.Fprint(w, placeholder)
	} else {
		_, err = io.WriteString(w, text)
	}
	if err != nil {
		return err
	}

	if i.store.Loading() {
		_, err = p.Muted.Fprint(w, " (sending…)")
		if err != nil {
			return err
		}
	}
	_, err = io.WriteString(w, "\n")
	return err
}
