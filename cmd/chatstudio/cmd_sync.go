package main

import (
	"context"
	"os"
)

// SyncCmd groups remote sync subcommands.
type SyncCmd struct {
	Pull SyncPullCmd `cmd:"" default:"1" help:"Merge the signed-in user's remote conversations and projects"`
}

type SyncPullCmd struct{}

func (c *SyncPullCmd) Run(ctx context.Context, cli *CLI) error {
	a, _, err := openApp(ctx, cli)
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.Pull(ctx)
	if err != nil {
		return err
	}
	newRenderer(os.Stdout).notice("imported %d conversations and %d projects", result.Conversations, result.Projects)
	return nil
}
