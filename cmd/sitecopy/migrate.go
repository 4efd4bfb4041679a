package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"sitecopy/api/internal/store"
)

var migrateDown bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply (or with --down, roll back) the content store schema",
	RunE: func(cmd *cobra.Command, _ []string) error {
		db, dialect, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close()

		if migrateDown {
			if err := store.RollbackMigrations(cmd.Context(), db, dialect); err != nil {
				return fmt.Errorf("rollback failed: %w", err)
			}
			logger.Info("migrations rolled back", zap.String("store", string(dialect)))
			return nil
		}
		if err := store.ApplyMigrations(cmd.Context(), db, dialect); err != nil {
			return fmt.Errorf("migrations failed: %w", err)
		}
		logger.Info("migrations applied", zap.String("store", string(dialect)))
		return nil
	},
}

func init() {
	migrateCmd.Flags().BoolVar(&migrateDown, "down", false, "Roll back every migration")
}
