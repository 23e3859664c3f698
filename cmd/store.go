package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var storeCmd = &cobra.Command{
	Use:   "store",
	Short: "Maintain the document store",
}

var storeMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or upgrade the store schema",
	RunE: func(cmd *cobra.Command, _ []string) error {
		// initStore migrates on open.
		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		zap.L().Info("store migrated", zap.String("driver", cfg.Store.Driver))
		return nil
	},
}

var storePruneCmd = &cobra.Command{
	Use:   "prune-cache",
	Short: "Delete expired company-data cache entries",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		n, err := st.DeleteExpiredCache(ctx)
		if err != nil {
			return eris.Wrap(err, "store prune-cache")
		}
		zap.L().Info("expired cache entries deleted", zap.Int("deleted", n))
		return nil
	},
}

var storeStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check connectivity and the dead-letter queue size",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.Ping(ctx); err != nil {
			return eris.Wrap(err, "store status")
		}
		n, err := st.CountDLQ(ctx)
		if err != nil {
			return eris.Wrap(err, "store status")
		}
		fmt.Fprintf(os.Stdout, "driver: %s\ndead letters: %d\n", cfg.Store.Driver, n)
		return nil
	},
}

func init() {
	storeCmd.AddCommand(storeMigrateCmd)
	storeCmd.AddCommand(storePruneCmd)
	storeCmd.AddCommand(storeStatusCmd)
	rootCmd.AddCommand(storeCmd)
}
