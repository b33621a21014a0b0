package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/wuwenbin0122/docchat/internal/client"
	"github.com/wuwenbin0122/docchat/internal/utils"
)

const version = "0.1.0"

func main() {
	app := &cli.App{
		Name:    "chatcli",
		Usage:   "Terminal client for the docchat server",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "server",
				Aliases: []string{"s"},
				Usage:   "Server base `URL`",
				Value:   client.DefaultBaseURL,
				EnvVars: []string{"DOCCHAT_SERVER"},
			},
			&cli.StringFlag{
				Name:    "user",
				Aliases: []string{"u"},
				Usage:   "User `ID` chats are listed and sent as",
				Value:   "anonymous",
				EnvVars: []string{"DOCCHAT_USER"},
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Log debug output to stdout",
			},
			&cli.BoolFlag{
				Name:  "no-color",
				Usage: "Disable colored output",
			},
		},
		Before: func(c *cli.Context) error {
			if c.Bool("no-color") {
				color.NoColor = true
			}
			return nil
		},
		Commands: []*cli.Command{
			chatsCommand(),
			docsCommand(),
			sessionCommand(),
			replCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func newClient(c *cli.Context) *client.Client {
	return client.New(c.String("server"))
}

func newLogger(c *cli.Context) *zap.Logger {
	if !c.Bool("verbose") {
		return zap.NewNop()
	}
	logger, err := utils.NewLogger(utils.LoggingConfig{
		Level:       "debug",
		Encoding:    "console",
		Development: true,
		ServiceName: "chatcli",
	})
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
