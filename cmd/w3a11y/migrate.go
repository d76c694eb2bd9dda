package main

import (
	"github.com/spf13/cobra"

	"github.com/suPer8Hu/w3a11y-artisan/internal/db"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := bootstrap(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer d.Close()

			if err := db.Migrate(d.db); err != nil {
				return err
			}
			d.logger.Info("migrations applied", "driver", d.cfg.DBDriver)
			return nil
		},
	}
}
