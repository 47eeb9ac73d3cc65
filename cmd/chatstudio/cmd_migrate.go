package main

import (
	"context"
	"os"

	"github.com/beymax11/chatstudio/src/app"
)

// MigrateCmd applies the local schema and, with --remote, the remote one.
type MigrateCmd struct {
	Remote bool `help:"Also create the remote sync tables"`
}

func (c *MigrateCmd) Run(ctx context.Context, cli *CLI) error {
	// Opening the local database applies pending migrations.
	a, logger, err := openApp(ctx, cli)
	if err != nil {
		return err
	}
	defer a.Close()

	versions, err := a.Store.AppliedMigrations()
	if err != nil {
		return err
	}
	r := newRenderer(os.Stdout)
	r.notice("local database ready at %s (%d migrations applied)", a.Store.Path(), len(versions))

	if !c.Remote {
		return nil
	}
	if a.Remote == nil {
		return app.ErrRemoteDisabled
	}
	if err := a.Remote.Migrate(ctx); err != nil {
		return err
	}
	logger.Info("remote schema applied")
	r.notice("remote schema ready")
	return nil
}
