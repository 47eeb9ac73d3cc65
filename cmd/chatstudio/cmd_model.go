package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/beymax11/chatstudio/src/chat"
	"github.com/beymax11/chatstudio/src/models"
)

// ModelCmd groups model registry subcommands.
type ModelCmd struct {
	List   ModelListCmd   `cmd:"" default:"1" help:"List supported models"`
	Select ModelSelectCmd `cmd:"" help:"Select the model for new messages"`
	Check  ModelCheckCmd  `cmd:"" help:"Check which models the API currently serves"`
}

type ModelListCmd struct{}

func (c *ModelListCmd) Run(ctx context.Context, cli *CLI) error {
	a, _, err := openApp(ctx, cli)
	if err != nil {
		return err
	}
	defer a.Close()

	selected := a.Chats.SelectedModel()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintln(w, " \tID\tName\tMax tokens\tDescription")
	for _, m := range models.All() {
		marker := " "
		if m.ID == selected {
			marker = "*"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", marker, m.ID, m.Name, models.TokenCap(m), m.Description)
	}
	return nil
}

type ModelSelectCmd struct {
	ID string `arg:"" help:"Model id"`
}

func (c *ModelSelectCmd) Run(ctx context.Context, cli *CLI) error {
	if !models.IsKnown(c.ID) {
		return fmt.Errorf("unknown model %q: %w", c.ID, chat.ErrInvalidInput)
	}

	a, _, err := openApp(ctx, cli)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.Chats.SelectModel(ctx, c.ID); err != nil {
		return err
	}
	m, _ := models.Lookup(c.ID)
	newRenderer(os.Stdout).notice("selected %s (%s)", m.Name, m.Upstream)
	return nil
}

type ModelCheckCmd struct{}

func (c *ModelCheckCmd) Run(ctx context.Context, cli *CLI) error {
	a, logger, err := openApp(ctx, cli)
	if err != nil {
		return err
	}
	defer a.Close()

	results, err := a.Completions.CheckRegistry(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	defer w.Flush()
	fmt.Fprintln(w, "ID\tUpstream\tStatus")
	for _, r := range results {
		status := "available"
		if !r.Available {
			status = "missing"
			logger.Warn("model not served upstream", "model", r.Model.ID, "upstream", r.Model.Upstream)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", r.Model.ID, r.Model.Upstream, status)
	}
	return nil
}
