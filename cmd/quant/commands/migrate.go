package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// migrateCmd represents the migrate command
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the database schema",
	Long: `Creates the predictions schema and tables when missing.

Idempotent; safe to run on every deploy.

Example:
  go run ./cmd/quant migrate`,
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	app, err := initApp(true)
	if err != nil {
		return err
	}
	defer app.close()

	if err := app.store.Migrate(cmd.Context()); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	PrintSuccess("Schema up to date")
	return nil
}
