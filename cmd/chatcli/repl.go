package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/wuwenbin0122/docchat/internal/chatstore"
	"github.com/wuwenbin0122/docchat/internal/docs"
	"github.com/wuwenbin0122/docchat/internal/views"
)

const helpText = `Type a message and press enter to send it.
  /new [name]    start a conversation
  /select <id>   switch conversation
  /delete <id>   delete a conversation
  /list          show conversations
  /docs          show documents of the active conversation
  /retry         resend the last message that failed
  /help          show this help
  /quit          leave`

func replCommand() *cli.Command {
	return &cli.Command{
		Name:  "repl",
		Usage: "Chat interactively",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "offline",
				Usage: "Use the built-in mocked assistant and demo chats instead of a server",
			},
		},
		Action: runRepl,
	}
}

func runRepl(c *cli.Context) error {
	logger := newLogger(c)
	userID := c.String("user")

	opts := []chatstore.Option{chatstore.WithLogger(logger), chatstore.WithUserID(userID)}

	var (
		backend chatstore.Backend
		lookup  docs.Lookup
	)

	if c.Bool("offline") {
		backend = &chatstore.OfflineBackend{}
		lookup = docs.NewStaticLookup(nil)
		opts = append(opts, chatstore.WithConversations(chatstore.WelcomeConversations()...))
	} else {
		apiClient := newClient(c)
		if _, err := apiClient.CreateSession(c.Context, userID); err != nil {
			logger.Warn("continuing without a session", zap.Error(err))
		}
		backend = apiClient
		lookup = apiClient
	}

	store := chatstore.New(backend, opts...)
	if !c.Bool("offline") {
		if err := store.Load(c.Context); err != nil {
			color.Red("Could not load chats from %s: %v\n", c.String("server"), err)
		}
	}

	r := newRepl(store, lookup, logger, os.Stdout)
	return r.run(c.Context, os.Stdin)
}

type repl struct {
	store  *chatstore.Store
	list   views.ConversationList
	thread views.Thread
	input  *views.Input
	panel  *views.DocumentsPanel
	out    io.Writer
	warn   *color.Color
}

func newRepl(store *chatstore.Store, lookup docs.Lookup, logger *zap.Logger, out io.Writer) *repl {
	return &repl{
		store: store,
		input: views.NewInput(store),
		panel: views.NewDocumentsPanel(lookup, logger),
		out:   out,
		warn:  color.New(color.FgRed),
	}
}

func (r *repl) run(ctx context.Context, in io.Reader) error {
	unfollow := r.thread.Follow(r.store, r.out)
	defer unfollow()

	fmt.Fprintln(r.out, helpText)
	fmt.Fprintln(r.out)
	if err := r.list.Render(r.out, r.store.Snapshot()); err != nil {
		return err
	}

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(r.out, "> ")
		if !scanner.Scan() {
			break
		}

		quit, err := r.handle(ctx, scanner.Text())
		if err != nil {
			r.warn.Fprintf(r.out, "%v\n", err)
		}
		if quit {
			return nil
		}
	}
	return scanner.Err()
}

// handle executes one input line and reports whether the session should end.
func (r *repl) handle(ctx context.Context, line string) (bool, error) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "/") {
		if trimmed == "" {
			return false, nil
		}
		r.input.SetText(line)
		return false, r.send(ctx)
	}

	cmd, arg, _ := strings.Cut(trimmed, " ")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case "/quit", "/exit":
		return true, nil
	case "/help":
		fmt.Fprintln(r.out, helpText)
	case "/list":
		return false, r.list.Render(r.out, r.store.Snapshot())
	case "/new":
		id, err := r.store.Create(arg)
		if err != nil {
			return false, err
		}
		fmt.Fprintf(r.out, "Started %s\n", id)
		r.panel.Show(ctx, id)
	case "/select":
		if arg == "" {
			return false, errors.New("usage: /select <id>")
		}
		if err := r.store.Select(ctx, arg); err != nil {
			return false, err
		}
		r.panel.Show(ctx, arg)
		return false, r.thread.Render(r.out, r.store.Snapshot())
	case "/delete":
		if arg == "" {
			return false, errors.New("usage: /delete <id>")
		}
		if err := r.store.Delete(ctx, arg); err != nil {
			return false, err
		}
		fmt.Fprintf(r.out, "Deleted %s\n", arg)
		r.panel.Show(ctx, r.store.ActiveID())
		return false, r.list.Render(r.out, r.store.Snapshot())
	case "/docs":
		if r.panel.ChatID() != r.store.ActiveID() || r.panel.ChatID() == "" {
			r.panel.Show(ctx, r.store.ActiveID())
		}
		return false, r.panel.Render(r.out)
	case "/retry":
		if strings.TrimSpace(r.input.Text()) == "" {
			return false, errors.New("nothing to retry")
		}
		return false, r.send(ctx)
	default:
		return false, fmt.Errorf("unknown command %s, type /help", cmd)
	}
	return false, nil
}

func (r *repl) send(ctx context.Context) error {
	result := r.input.Submit(ctx)

	switch result.Status {
	case chatstore.SendDelivered:
		// the followed thread already printed the exchange
		return nil
	case chatstore.SendSkipped:
		return errors.New("no active conversation, type /new to start one")
	case chatstore.SendBusy:
		return errors.New("still waiting for the previous reply")
	case chatstore.SendDiscarded:
		return errors.New("conversation was deleted before the reply arrived")
	default:
		return fmt.Errorf("send failed: %w (type /retry to resend)", result.Err)
	}
}
