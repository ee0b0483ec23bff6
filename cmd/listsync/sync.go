package main

import (
	"encoding/json"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/LeventeLantos/listsync/internal/app"
)

type syncOptions struct {
	TenantID int64
	ListID   int64
	All      bool
}

func (o syncOptions) validate() error {
	switch {
	case o.All && (o.TenantID != 0 || o.ListID != 0):
		return errors.New("--all cannot be combined with --tenant or --list")
	case o.All:
		return nil
	case o.TenantID <= 0 || o.ListID <= 0:
		return errors.New("either --all or both --tenant and --list are required")
	}
	return nil
}

func newSyncCommand() *cobra.Command {
	opts := &syncOptions{}

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Rebuild one list, or every list, from its saved filter",
		Example: `  listsync sync --tenant 3 --list 42
  listsync sync --all`,
		Args: cobra.NoArgs,
		PreRunE: func(*cobra.Command, []string) error {
			return opts.validate()
		},
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
			defer func() { _ = a.Close() }()

			if opts.All {
				a.Syncer.RunScheduledSync(ctx)
				return nil
			}

			res, err := a.Syncer.SyncListBySavedFilter(ctx, opts.ListID, opts.TenantID)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}

	cmd.Flags().Int64Var(&opts.TenantID, "tenant", 0, "tenant id of the list")
	cmd.Flags().Int64Var(&opts.ListID, "list", 0, "contact list id")
	cmd.Flags().BoolVar(&opts.All, "all", false, "sync every list that has a saved filter")

	return cmd
}
