package main

import (
	"github.com/spf13/cobra"

	"github.com/LeventeLantos/listsync/internal/config"
	"github.com/LeventeLantos/listsync/internal/db"
	"github.com/LeventeLantos/listsync/internal/logger"
)

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate <up|down|version|force> [version]",
		Short: "Apply or roll back the database schema",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(_ *cobra.Command, args []string) error {
			dbCfg, err := config.LoadDatabase()
			if err != nil {
				return err
			}
			logCfg := config.LoadLog()
			log, err := logger.New(logCfg.Level, logCfg.Format)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			return db.RunMigrate(log, dbCfg.PostgresURL, args[0], args[1:])
		},
	}
}
