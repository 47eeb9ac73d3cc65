package main

import (
	"context"
	"fmt"
	"os"
)

// ConversationCmd groups conversation subcommands.
type ConversationCmd struct {
	List   ConversationListCmd   `cmd:"" default:"1" help:"List conversations"`
	New    ConversationNewCmd    `cmd:"" help:"Start a conversation and make it current"`
	Show   ConversationShowCmd   `cmd:"" help:"Print a conversation"`
	Switch ConversationSwitchCmd `cmd:"" help:"Make a conversation current"`
	Delete ConversationDeleteCmd `cmd:"" aliases:"rm" help:"Delete a conversation"`
	Clear  ConversationClearCmd  `cmd:"" help:"Delete every conversation"`
}

type ConversationListCmd struct{}

func (c *ConversationListCmd) Run(ctx context.Context, cli *CLI) error {
	a, _, err := openApp(ctx, cli)
	if err != nil {
		return err
	}
	defer a.Close()

	var currentID string
	if cur, ok := a.Chats.Current(); ok {
		currentID = cur.ID
	}
	newRenderer(os.Stdout).conversationList(a.Chats.Conversations(), currentID, a.Projects)
	return nil
}

type ConversationNewCmd struct{}

func (c *ConversationNewCmd) Run(ctx context.Context, cli *CLI) error {
	a, _, err := openApp(ctx, cli)
	if err != nil {
		return err
	}
	defer a.Close()

	conv := a.Chats.CreateConversation(ctx)
	fmt.Println(conv.ID)
	return nil
}

type ConversationShowCmd struct {
	Ref string `arg:"" optional:"" help:"Conversation id, prefix or list number (default: current)"`
}

func (c *ConversationShowCmd) Run(ctx context.Context, cli *CLI) error {
	a, _, err := openApp(ctx, cli)
	if err != nil {
		return err
	}
	defer a.Close()

	conv, err := resolveConversation(a.Chats, c.Ref)
	if err != nil {
		return err
	}
	newRenderer(os.Stdout).conversation(conv)
	return nil
}

type ConversationSwitchCmd struct {
	Ref string `arg:"" help:"Conversation id, prefix or list number"`
}

func (c *ConversationSwitchCmd) Run(ctx context.Context, cli *CLI) error {
	a, _, err := openApp(ctx, cli)
	if err != nil {
		return err
	}
	defer a.Close()

	conv, err := resolveConversation(a.Chats, c.Ref)
	if err != nil {
		return err
	}
	a.Chats.SwitchCurrent(ctx, conv.ID)
	newRenderer(os.Stdout).notice("switched to %q", conv.Title)
	return nil
}

type ConversationDeleteCmd struct {
	Ref string `arg:"" help:"Conversation id, prefix or list number"`
}

func (c *ConversationDeleteCmd) Run(ctx context.Context, cli *CLI) error {
	a, _, err := openApp(ctx, cli)
	if err != nil {
		return err
	}
	defer a.Close()

	conv, err := resolveConversation(a.Chats, c.Ref)
	if err != nil {
		return err
	}
	a.Chats.DeleteConversation(ctx, conv.ID)
	newRenderer(os.Stdout).notice("deleted %q", conv.Title)
	return nil
}

type ConversationClearCmd struct {
	Yes bool `short:"y" help:"Do not ask for confirmation"`
}

func (c *ConversationClearCmd) Run(ctx context.Context, cli *CLI) error {
	if !c.Yes && !confirm("Delete every conversation?") {
		return nil
	}

	a, _, err := openApp(ctx, cli)
	if err != nil {
		return err
	}
	defer a.Close()

	a.Chats.ClearAll(ctx)
	newRenderer(os.Stdout).notice("all conversations deleted")
	return nil
}
