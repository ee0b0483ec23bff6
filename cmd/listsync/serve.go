package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/LeventeLantos/listsync/internal/app"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the scheduled saved-filter sync",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := bootstrap()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := app.Open(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer func() {
				if err := a.Close(); err != nil {
					log.Warn("close failed", zap.Error(err))
				}
			}()

			log.Info("listsync starting",
				zap.String("addr", cfg.Server.Address),
				zap.String("schedule", cfg.Scheduler.Cron),
				zap.String("timezone", cfg.Scheduler.Location.String()),
				zap.Bool("redis", cfg.Redis.Enabled),
			)
			return a.Serve(ctx)
		},
	}
}
