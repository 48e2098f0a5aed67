package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"fuelstation/backend/internal/app"
)

func migrateCmd(open Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded schema to DATABASE_URL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, open, func(ctx context.Context, a *app.App) error {
				if a.Postgres == nil {
					return errors.New("migrate needs DATABASE_URL; the in-memory store has no schema")
				}
				if err := a.Postgres.Migrate(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), gain.Sprint("schema applied"))
				return nil
			})
		},
	}
}
