package cmd

import (
	"database/sql"
	"fmt"

	"github.com/spf13/cobra"

	"liveclass/internal/app"
	"liveclass/internal/config"
	pkgdatabase "liveclass/pkg/database"
)

var checkSchema bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Resolve(configPath)
		if err != nil {
			return err
		}

		store, err := app.OpenStore(cmd.Context(), cfg.Database)
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.HealthCheck(cmd.Context()); err != nil {
			return err
		}

		if checkSchema {
			// only the SQLite manager exposes its handle to the validator
			if raw, ok := store.(interface{ GetDB() *sql.DB }); ok {
				if err := pkgdatabase.NewSchemaValidator(raw.GetDB()).Validate(); err != nil {
					return fmt.Errorf("schema check failed: %w", err)
				}
			}
		}

		fmt.Fprintf(cmd.OutOrStdout(), "schema up to date (%s)\n", cfg.Database.Driver)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.Flags().BoolVar(&checkSchema, "check", false, "Validate tables, columns and indexes after migrating")
}
