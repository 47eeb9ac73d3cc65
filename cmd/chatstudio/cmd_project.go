package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/beymax11/chatstudio/src/project"
)

// ProjectCmd groups project subcommands.
type ProjectCmd struct {
	List   ProjectListCmd   `cmd:"" default:"1" help:"List projects"`
	Create ProjectCreateCmd `cmd:"" help:"Create a project"`
	Rename ProjectRenameCmd `cmd:"" help:"Rename a project"`
	Delete ProjectDeleteCmd `cmd:"" aliases:"rm" help:"Delete a project (conversations are kept)"`
	Add    ProjectAddCmd    `cmd:"" help:"Add a conversation to a project"`
	Remove ProjectRemoveCmd `cmd:"" help:"Remove a conversation from a project"`
	Show   ProjectShowCmd   `cmd:"" help:"List the conversations of a project"`
}

// resolveProject accepts a full id, a unique id prefix or an exact name.
func resolveProject(store *project.Store, ref string) (*project.Project, error) {
	var match *project.Project
	for _, p := range store.List() {
		if p.ID == ref || strings.EqualFold(p.Name, ref) {
			return p, nil
		}
		if strings.HasPrefix(p.ID, ref) {
			if match != nil {
				return nil, fmt.Errorf("project %q is ambiguous: %w", ref, project.ErrInvalidInput)
			}
			match = p
		}
	}
	if match == nil {
		return nil, fmt.Errorf("%q: %w", ref, project.ErrNotFound)
	}
	return match, nil
}

type ProjectListCmd struct{}

func (c *ProjectListCmd) Run(ctx context.Context, cli *CLI) error {
	a, _, err := openApp(ctx, cli)
	if err != nil {
		return err
	}
	defer a.Close()

	newRenderer(os.Stdout).projectList(a.Projects.List())
	return nil
}

type ProjectCreateCmd struct {
	Name []string `arg:"" help:"Project name"`
}

func (c *ProjectCreateCmd) Run(ctx context.Context, cli *CLI) error {
	a, _, err := openApp(ctx, cli)
	if err != nil {
		return err
	}
	defer a.Close()

	p, err := a.Projects.Create(ctx, strings.Join(c.Name, " "))
	if err != nil {
		return err
	}
	fmt.Println(p.ID)
	return nil
}

type ProjectRenameCmd struct {
	Ref  string   `arg:"" help:"Project id, prefix or name"`
	Name []string `arg:"" help:"New name"`
}

func (c *ProjectRenameCmd) Run(ctx context.Context, cli *CLI) error {
	a, _, err := openApp(ctx, cli)
	if err != nil {
		return err
	}
	defer a.Close()

	p, err := resolveProject(a.Projects, c.Ref)
	if err != nil {
		return err
	}
	p, err = a.Projects.Rename(ctx, p.ID, strings.Join(c.Name, " "))
	if err != nil {
		return err
	}
	newRenderer(os.Stdout).notice("renamed to %q", p.Name)
	return nil
}

type ProjectDeleteCmd struct {
	Ref string `arg:"" help:"Project id, prefix or name"`
}

func (c *ProjectDeleteCmd) Run(ctx context.Context, cli *CLI) error {
	a, _, err := openApp(ctx, cli)
	if err != nil {
		return err
	}
	defer a.Close()

	p, err := resolveProject(a.Projects, c.Ref)
	if err != nil {
		return err
	}
	if err := a.Projects.Delete(ctx, p.ID); err != nil {
		return err
	}
	newRenderer(os.Stdout).notice("deleted project %q", p.Name)
	return nil
}

type ProjectAddCmd struct {
	Ref          string `arg:"" help:"Project id, prefix or name"`
	Conversation string `arg:"" optional:"" help:"Conversation id, prefix or list number (default: current)"`
}

func (c *ProjectAddCmd) Run(ctx context.Context, cli *CLI) error {
	a, _, err := openApp(ctx, cli)
	if err != nil {
		return err
	}
	defer a.Close()

	p, err := resolveProject(a.Projects, c.Ref)
	if err != nil {
		return err
	}
	conv, err := resolveConversation(a.Chats, c.Conversation)
	if err != nil {
		return err
	}
	if _, err := a.Projects.AddConversation(ctx, p.ID, conv.ID); err != nil {
		return err
	}
	newRenderer(os.Stdout).notice("added %q to %q", conv.Title, p.Name)
	return nil
}

type ProjectRemoveCmd struct {
	Ref          string `arg:"" help:"Project id, prefix or name"`
	Conversation string `arg:"" optional:"" help:"Conversation id, prefix or list number (default: current)"`
}

func (c *ProjectRemoveCmd) Run(ctx context.Context, cli *CLI) error {
	a, _, err := openApp(ctx, cli)
	if err != nil {
		return err
	}
	defer a.Close()

	p, err := resolveProject(a.Projects, c.Ref)
	if err != nil {
		return err
	}
	// Members may point at conversations that no longer exist, so a raw id is accepted.
	conversationID := c.Conversation
	if conv, err := resolveConversation(a.Chats, c.Conversation); err == nil {
		conversationID = conv.ID
	} else if conversationID == "" {
		return err
	}
	if _, err := a.Projects.RemoveConversation(ctx, p.ID, conversationID); err != nil {
		return err
	}
	newRenderer(os.Stdout).notice("removed %s from %q", shortID(conversationID), p.Name)
	return nil
}

type ProjectShowCmd struct {
	Ref string `arg:"" help:"Project id, prefix or name"`
}

func (c *ProjectShowCmd) Run(ctx context.Context, cli *CLI) error {
	a, _, err := openApp(ctx, cli)
	if err != nil {
		return err
	}
	defer a.Close()

	p, err := resolveProject(a.Projects, c.Ref)
	if err != nil {
		return err
	}
	r := newRenderer(os.Stdout)
	fmt.Fprintln(r.w, r.styles.Title.Render(p.Name))
	for _, id := range p.ConversationIDs {
		if conv, ok := a.Chats.Conversation(id); ok {
			fmt.Fprintf(r.w, "  %s  %s\n", shortID(id), conv.Title)
		} else {
			fmt.Fprintf(r.w, "  %s  %s\n", shortID(id), r.styles.Muted.Render("(deleted)"))
		}
	}
	return nil
}
