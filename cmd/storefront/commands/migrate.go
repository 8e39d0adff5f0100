package commands

import (
	"github.com/spf13/cobra"

	"github.com/jacentio/storefront/internal/server"
)

// migrateCmd prepares the store
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create tables and indexes",
	Long: `Create what the configured store needs before serving.

  dynamodb - one table per collection plus the unique constraints table
  mongo    - unique indexes and indexes on reference fields
  memory   - nothing

Running migrate again is safe.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		return server.Migrate(cmd.Context(), cfg, logger)
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
