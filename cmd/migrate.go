package main

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mapeo-verde/mapeo-verde-api/internal/store"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the backend tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		backend, err := requireBackend(ctx)
		if err != nil {
			return err
		}
		defer backend.Close() //nolint:errcheck

		if err := backend.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate")
		}
		zap.L().Info("migrations applied", zap.String("driver", cfg.Store.Driver))
		return nil
	},
}

// requireBackend opens the configured backend and fails when there is none.
func requireBackend(ctx context.Context) (store.Backend, error) {
	backend, err := openBackend(ctx, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "open backend")
	}
	if backend == nil {
		return nil, eris.Wrap(store.ErrNoBackend, "set store.driver and store.database_url or store.sqlite_path")
	}
	return backend, nil
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
