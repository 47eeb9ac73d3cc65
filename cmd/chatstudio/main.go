package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
)

// CLI represents the main CLI structure
type CLI struct {
	Config   string `short:"c" help:"Path to a config file (.json or .toml)" type:"path"`
	APIKey   string `help:"API key for the chat model (overrides config)"`
	BaseURL  string `help:"Custom API base URL"`
	LogLevel string `help:"Log level (debug, info, warn, error)"`

	// Chat is the default command - interactive loop
	Chat ChatCmd `cmd:"" default:"withargs" help:"Start an interactive chat (default)"`

	Send         SendCmd         `cmd:"" help:"Send a message and print the reply"`
	Edit         EditCmd         `cmd:"" help:"Edit a user message and request a new reply"`
	Regenerate   RegenerateCmd   `cmd:"" help:"Regenerate an assistant reply"`
	Conversation ConversationCmd `cmd:"" aliases:"conv" help:"Manage conversations"`
	Project      ProjectCmd      `cmd:"" help:"Manage projects"`
	Model        ModelCmd        `cmd:"" help:"Model registry"`
	Auth         AuthCmd         `cmd:"" help:"Sign in, sign up and confirm email"`
	Migrate      MigrateCmd      `cmd:"" help:"Database migrations"`
	Sync         SyncCmd         `cmd:"" help:"Remote sync"`
}

func main() {
	var cli CLI
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	kctx := kong.Parse(&cli,
		kong.Name("chatstudio"),
		kong.Description("Chat with hosted language models from the terminal"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.BindTo(ctx, (*context.Context)(nil)),
	)

	err := kctx.Run(&cli)
	if err != nil {
		stop()
		FatalError(createCLILogger(cli.LogLevel), err)
	}
}
