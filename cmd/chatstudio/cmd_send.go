package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/beymax11/chatstudio/src/chat"
	"github.com/beymax11/chatstudio/src/models"
)

// SendCmd sends one message and prints the reply.
type SendCmd struct {
	Message      []string `arg:"" help:"Message text"`
	Attach       []string `short:"a" help:"Files to attach" type:"existingfile"`
	Model        string   `short:"m" help:"Model for this reply only"`
	Conversation string   `name:"conversation" short:"C" help:"Conversation id, prefix or list number (default: current)"`
	New          bool     `short:"n" help:"Start a new conversation first"`
}

func (c *SendCmd) Run(ctx context.Context, cli *CLI) error {
	content := strings.TrimSpace(strings.Join(c.Message, " "))
	if content == "" && len(c.Attach) == 0 {
		return fmt.Errorf("message is empty: %w", chat.ErrInvalidInput)
	}
	if c.Model != "" && !models.IsKnown(c.Model) {
		return fmt.Errorf("unknown model %q: %w", c.Model, chat.ErrInvalidInput)
	}

	attachments, err := readAttachments(c.Attach)
	if err != nil {
		return err
	}

	a, _, err := openApp(ctx, cli)
	if err != nil {
		return err
	}
	defer a.Close()

	var conv *chat.Conversation
	if c.New {
		conv = a.Chats.CreateConversation(ctx)
	} else if conv, err = resolveConversation(a.Chats, c.Conversation); err != nil {
		return err
	}

	_, reply, err := a.Chats.Send(ctx, conv.ID, content, attachments, c.Model)
	if err != nil {
		return err
	}
	newRenderer(os.Stdout).message(reply)
	return nil
}

// EditCmd rewrites a message and drops everything after it.
type EditCmd struct {
	Content      []string `arg:"" help:"New message text"`
	MessageID    string   `name:"message" short:"i" help:"Message id or prefix (default: last user message)"`
	Conversation string   `name:"conversation" short:"C" help:"Conversation id, prefix or list number (default: current)"`
}

func (c *EditCmd) Run(ctx context.Context, cli *CLI) error {
	content := strings.TrimSpace(strings.Join(c.Content, " "))
	if content == "" {
		return fmt.Errorf("edited content is empty: %w", chat.ErrInvalidInput)
	}

	a, _, err := openApp(ctx, cli)
	if err != nil {
		return err
	}
	defer a.Close()

	conv, err := resolveConversation(a.Chats, c.Conversation)
	if err != nil {
		return err
	}
	msg, err := resolveMessage(conv, c.MessageID, chat.RoleUser)
	if err != nil {
		return err
	}
	if err := a.Chats.EditMessage(ctx, conv.ID, msg.ID, content); err != nil {
		return err
	}
	newRenderer(os.Stdout).edit(msg.Content, content)
	return printLast(a.Chats, conv.ID)
}

// RegenerateCmd replaces an assistant reply with a fresh one.
type RegenerateCmd struct {
	MessageID    string `name:"message" short:"i" help:"Assistant message id or prefix (default: last reply)"`
	Conversation string `name:"conversation" short:"C" help:"Conversation id, prefix or list number (default: current)"`
}

func (c *RegenerateCmd) Run(ctx context.Context, cli *CLI) error {
	a, _, err := openApp(ctx, cli)
	if err != nil {
		return err
	}
	defer a.Close()

	conv, err := resolveConversation(a.Chats, c.Conversation)
	if err != nil {
		return err
	}
	msg, err := resolveMessage(conv, c.MessageID, chat.RoleAssistant)
	if err != nil {
		return err
	}
	if err := a.Chats.Regenerate(ctx, conv.ID, msg.ID); err != nil {
		return err
	}
	return printLast(a.Chats, conv.ID)
}

// printLast renders the newest message of a conversation.
func printLast(store *chat.Store, conversationID string) error {
	conv, ok := store.Conversation(conversationID)
	if !ok {
		return fmt.Errorf("conversation %s: %w", conversationID, chat.ErrNotFound)
	}
	if len(conv.Messages) > 0 {
		newRenderer(os.Stdout).message(conv.Messages[len(conv.Messages)-1])
	}
	return nil
}
