package migrate

import (
	"github.com/spf13/cobra"

	"github.com/mpapenbr/rally-manager-go/log"
	"github.com/mpapenbr/rally-manager-go/pkg/cmd/util"
	"github.com/mpapenbr/rally-manager-go/pkg/config"
	"github.com/mpapenbr/rally-manager-go/pkg/db/migrate"
)

func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "performs database migration",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, _, err := util.SetupLogger(); err != nil {
				return err
			}
			return startMigration(cmd)
		},
	}

	cmd.Flags().StringVarP(&config.MigrationSourceURL,
		"migration-source-url",
		"m",
		"",
		"url to migration files (default: migrations embedded in the binary)")

	return cmd
}

func startMigration(cmd *cobra.Command) error {
	if err := util.WaitForRequiredServices(cmd.Context()); err != nil {
		return err
	}
	if config.MigrationSourceURL == "" {
		log.Info("Using embedded migrations")
		return migrate.MigrateDB(config.DB)
	}
	log.Info("Using migrations files at", log.String("source", config.MigrationSourceURL))
	return migrate.MigrateDBFromSource(config.MigrationSourceURL, config.DB)
}
