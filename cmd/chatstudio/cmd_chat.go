package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/beymax11/chatstudio/src/app"
	"github.com/beymax11/chatstudio/src/chat"
	"github.com/beymax11/chatstudio/src/models"
	"github.com/beymax11/chatstudio/src/project"
)

// ChatCmd runs the interactive loop.
type ChatCmd struct {
	Message []string `arg:"" optional:"" help:"First message to send"`
	Model   string   `short:"m" help:"Model for replies in this session"`
	New     bool     `short:"n" help:"Start in a new conversation"`
}

func (c *ChatCmd) Run(ctx context.Context, cli *CLI) error {
	if c.Model != "" && !models.IsKnown(c.Model) {
		return fmt.Errorf("unknown model %q: %w", c.Model, chat.ErrInvalidInput)
	}

	cfg, err := loadConfig(cli)
	if err != nil {
		return err
	}
	// Logs go to a file so they do not interleave with the transcript.
	logger := createChatLogger(cfg.Logging.Level, cfg.Logging.Format)
	a, err := app.New(ctx, cfg, app.Options{Logger: logger})
	if err != nil {
		return err
	}
	defer a.Close()

	r := &repl{
		chats:    a.Chats,
		projects: a.Projects,
		out:      newRenderer(os.Stdout),
		model:    c.Model,
	}
	if c.New {
		a.Chats.CreateConversation(ctx)
	}
	r.banner()
	if text := strings.TrimSpace(strings.Join(c.Message, " ")); text != "" {
		r.send(ctx, text)
	}
	return r.run(ctx, os.Stdin)
}

type repl struct {
	chats    *chat.Store
	projects *project.Store
	out      *renderer
	model    string
}

const replHelp = `Commands:
  /new               start a new conversation
  /list              list conversations
  /switch <ref>      switch to a conversation (number, id or id prefix)
  /show              print the current conversation
  /edit <text>       replace your last message and get a new reply
  /regen             regenerate the last reply
  /model [id]        show or select the model
  /delete [ref]      delete a conversation (default: current)
  /clear             delete every conversation
  /help              show this help
  /quit              leave`

func (r *repl) banner() {
	if conv, ok := r.chats.Current(); ok {
		r.out.notice("%s  (model %s, /help for commands)", conv.Title, r.activeModel())
	}
}

func (r *repl) activeModel() string {
	if r.model != "" {
		return r.model
	}
	return r.chats.SelectedModel()
}

// run reads lines until EOF, /quit or cancellation.
func (r *repl) run(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for {
		fmt.Fprint(r.out.w, r.out.styles.User.Render("> "))
		if !scanner.Scan() {
			fmt.Fprintln(r.out.w)
			return scanner.Err()
		}
		if ctx.Err() != nil {
			return nil
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "/") {
			r.send(ctx, line)
			continue
		}
		if quit := r.command(ctx, line); quit {
			return nil
		}
	}
}

func (r *repl) current() (*chat.Conversation, bool) {
	conv, ok := r.chats.Current()
	if !ok {
		r.out.failure(errors.New("no current conversation"))
	}
	return conv, ok
}

func (r *repl) send(ctx context.Context, text string) {
	conv, ok := r.current()
	if !ok {
		return
	}
	_, reply, err := r.chats.Send(ctx, conv.ID, text, nil, r.model)
	if err != nil {
		r.out.failure(err)
		return
	}
	r.out.message(reply)
}

func (r *repl) showLast(conversationID string) {
	conv, ok := r.chats.Conversation(conversationID)
	if ok && len(conv.Messages) > 0 {
		r.out.message(conv.Messages[len(conv.Messages)-1])
	}
}

// command runs a slash command and reports whether the loop should stop.
func (r *repl) command(ctx context.Context, line string) bool {
	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case "/quit", "/exit", "/q":
		return true
	case "/help", "/?":
		fmt.Fprintln(r.out.w, replHelp)
	case "/new":
		conv := r.chats.CreateConversation(ctx)
		r.out.notice("started %s", shortID(conv.ID))
	case "/list", "/ls":
		var currentID string
		if conv, ok := r.chats.Current(); ok {
			currentID = conv.ID
		}
		r.out.conversationList(r.chats.Conversations(), currentID, r.projects)
	case "/switch":
		if arg == "" {
			r.out.failure(errors.New("usage: /switch <ref>"))
			break
		}
		conv, err := resolveConversation(r.chats, arg)
		if err != nil {
			r.out.failure(err)
			break
		}
		r.chats.SwitchCurrent(ctx, conv.ID)
		r.out.notice("switched to %q", conv.Title)
	case "/show":
		if conv, ok := r.current(); ok {
			r.out.conversation(conv)
		}
	case "/edit":
		conv, ok := r.current()
		if !ok {
			break
		}
		msg, err := resolveMessage(conv, "", chat.RoleUser)
		if err == nil {
			err = r.chats.EditMessage(ctx, conv.ID, msg.ID, arg)
		}
		if err != nil {
			r.out.failure(err)
			break
		}
		r.showLast(conv.ID)
	case "/regen", "/regenerate":
		conv, ok := r.current()
		if !ok {
			break
		}
		msg, err := resolveMessage(conv, "", chat.RoleAssistant)
		if err == nil {
			err = r.chats.Regenerate(ctx, conv.ID, msg.ID)
		}
		if err != nil {
			r.out.failure(err)
			break
		}
		r.showLast(conv.ID)
	case "/model":
		if arg == "" {
			r.out.notice("model: %s", r.activeModel())
			break
		}
		if err := r.chats.SelectModel(ctx, arg); err != nil {
			r.out.failure(err)
			break
		}
		r.model = arg
		r.out.notice("model: %s", arg)
	case "/delete", "/rm":
		conv, err := resolveConversation(r.chats, arg)
		if err != nil {
			r.out.failure(err)
			break
		}
		r.chats.DeleteConversation(ctx, conv.ID)
		r.out.notice("deleted %q", conv.Title)
	case "/clear":
		r.chats.ClearAll(ctx)
		r.out.notice("all conversations deleted")
	default:
		r.out.failure(fmt.Errorf("unknown command %s, try /help", name))
	}
	return false
}
