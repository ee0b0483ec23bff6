package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/LeventeLantos/listsync/internal/config"
	"github.com/LeventeLantos/listsync/internal/logger"
)

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "listsync",
		Short:         "Keeps contact lists in step with their saved filters",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(newServeCommand())
	cmd.AddCommand(newSyncCommand())
	cmd.AddCommand(newMigrateCommand())

	return cmd
}

// bootstrap loads the full configuration and the logger it describes.
func bootstrap() (*config.Config, *zap.Logger, error) {
	cfg, err := config.LoadAll()
	if err != nil {
		return nil, nil, err
	}
	log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}
