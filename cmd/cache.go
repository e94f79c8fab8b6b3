package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCacheCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the attribute caches",
	}

	cmd.AddCommand(newCacheStatsCmd(app), newCacheClearCmd(app))

	return cmd
}

func newCacheStatsCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show cache sizes and limits",
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, st := range app.service.CacheStats() {
				mode := "persistent"
				if st.MemoryOnly {
					mode = "memory-only"
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d/%d\tsoft=%d\texpiry=%s\t%s\n",
					st.StorageKey, st.Entries, st.HardMax, st.SoftCeiling, st.Expiry, mode)
			}
			return nil
		},
	}
}

func newCacheClearCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every cached attribute",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := app.service.ClearCache(cmd.Context()); err != nil {
				return err
			}

			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Caches cleared")
			return nil
		},
	}
}
