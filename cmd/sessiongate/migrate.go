package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/upb/sessiongate/config"
	"github.com/upb/sessiongate/repositories/postgres"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the auth_events table",
		Long: `Create the login audit table and its indexes in the database named by
DATABASE_URL (or the DB_* variables). Safe to run repeatedly.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, err := config.New(ctx)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			if !cfg.Database.Enabled() {
				return errors.New("no database configured: set DATABASE_URL or DB_HOST")
			}

			logger, err := initLogger(cfg.Observability)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			db, err := postgres.NewDB(cfg.Database, logger)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := db.InitSchema(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
			return nil
		},
	}
}
