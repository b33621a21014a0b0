package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/wuwenbin0122/docchat/internal/views"
)

func chatsCommand() *cli.Command {
	return &cli.Command{
		Name:   "chats",
		Usage:  "List the conversations stored on the server",
		Action: runChats,
	}
}

func runChats(c *cli.Context) error {
	chats, err := newClient(c).ListChats(c.Context, c.String("user"))
	if err != nil {
		return fmt.Errorf("failed to list chats: %w", err)
	}

	if len(chats) == 0 {
		fmt.Println("No chats yet.")
		return nil
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	cyan := color.New(color.FgCyan)
	cyan.Fprintln(tw, "ID\tMESSAGES\tLAST ACTIVITY\tFIRST MESSAGE")
	for _, chat := range chats {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n",
			chat.ChatID,
			chat.MessageCount,
			chat.LastActivity.Local().Format(time.DateTime),
			chat.FirstMessage,
		)
	}
	return tw.Flush()
}

func docsCommand() *cli.Command {
	return &cli.Command{
		Name:  "docs",
		Usage: "List the documents ingested for a chat",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "chat",
				Aliases:  []string{"c"},
				Usage:    "Chat `ID`",
				Required: true,
			},
		},
		Action: runDocs,
	}
}

func runDocs(c *cli.Context) error {
	panel := views.NewDocumentsPanel(newClient(c), newLogger(c))
	panel.Show(c.Context, c.String("chat"))
	return panel.Render(os.Stdout)
}

func sessionCommand() *cli.Command {
	return &cli.Command{
		Name:   "session",
		Usage:  "Request a session token for the configured user",
		Action: runSession,
	}
}

func runSession(c *cli.Context) error {
	session, err := newClient(c).CreateSession(c.Context, c.String("user"))
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	green := color.New(color.FgGreen)
	green.Printf("Session for %s\n", session.UserID)
	fmt.Printf("Token:   %s\n", session.Token)
	fmt.Printf("Expires: %s\n", session.ExpiresAt.Local().Format(time.RFC3339))
	return nil
}
