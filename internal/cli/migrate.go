package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/stwalsh4118/cinema/internal/config"
	"github.com/stwalsh4118/cinema/internal/db"
)

type migrateOptions struct {
	dbPath         string
	migrationsPath string
}

// NewMigrateCommand creates the migrate command. Flags override the
// server's configuration.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &migrateOptions{}

	cmd := &cobra.Command{
		Use:           "migrate",
		Short:         "Apply database migrations",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.dbPath == "" || opts.migrationsPath == "" {
				cfg, err := config.Load()
				if err != nil {
					return fmt.Errorf("failed to load config: %w", err)
				}
				if opts.dbPath == "" {
					opts.dbPath = cfg.Database.Path
				}
				if opts.migrationsPath == "" {
					opts.migrationsPath = cfg.Database.MigrationsPath
				}
			}

			if err := runMigrate(opts); err != nil {
				return err
			}
			if rootOpts.Verbose {
				fmt.Fprintf(cmd.OutOrStdout(), "migrated %s from %s\n", opts.dbPath, opts.migrationsPath)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "migrated %s\n", opts.dbPath)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.dbPath, "db", "", "database file (defaults to config)")
	cmd.Flags().StringVar(&opts.migrationsPath, "migrations", "", "migration source URL (defaults to config)")

	return cmd
}

func runMigrate(opts *migrateOptions) error {
	if dir := filepath.Dir(opts.dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	database, err := db.Open(opts.dbPath, db.DefaultOptions())
	if err != nil {
		return err
	}
	defer database.Close()

	sqlDB, err := database.GetSQLDB()
	if err != nil {
		return err
	}
	return db.RunMigrations(sqlDB, opts.migrationsPath)
}
