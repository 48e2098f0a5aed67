// Package cli implements stationctl, the back-office operator tool. It talks
// to the same store the server uses rather than to the HTTP API.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"fuelstation/backend/internal/app"
	"fuelstation/backend/internal/config"
	"fuelstation/backend/internal/domain"
	"fuelstation/backend/internal/service"
	"fuelstation/backend/pkg/logger"
)

// Opener builds the application for one command invocation.
type Opener func(ctx context.Context) (*app.App, error)

// OpenFromEnv reads configuration from the environment like the server does.
// Logs go to stderr so command output stays clean.
func OpenFromEnv(ctx context.Context) (*app.App, error) {
	cfg := config.Load()
	log, err := logger.New(logger.Config{Level: "warn", OutputPaths: []string{"stderr"}})
	if err != nil {
		return nil, err
	}
	return app.Build(ctx, cfg, log)
}

// NewRootCmd wires every stationctl subcommand against open.
func NewRootCmd(open Opener) *cobra.Command {
	root := &cobra.Command{
		Use:   "stationctl",
		Short: "Back-office tool for shifts and profit/loss reports",
		Long: `stationctl reads and writes the station ledger directly.

Examples:
  stationctl shift active
  stationctl shift close-summary <shift-id>
  stationctl report profit-loss --period month --details
  stationctl report snapshot --period custom --start 2024-01-01 --end 2024-01-31
  stationctl migrate`,
		SilenceUsage: true,
	}
	root.PersistentFlags().String("employee", "stationctl", "employee id recorded in the audit log")

	root.AddCommand(reportCmd(open))
	root.AddCommand(shiftCmd(open))
	root.AddCommand(migrateCmd(open))
	return root
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := NewRootCmd(OpenFromEnv).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// withApp opens the application, runs fn as a manager acting under the
// --employee id, and always releases the application afterwards.
func withApp(cmd *cobra.Command, open Opener, fn func(ctx context.Context, a *app.App) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := open(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	employeeID, _ := cmd.Flags().GetString("employee")
	ctx = service.WithActor(ctx, domain.Actor{EmployeeID: employeeID, Username: employeeID, Role: domain.RoleManager})
	return fn(ctx, a)
}
