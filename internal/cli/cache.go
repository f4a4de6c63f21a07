package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCacheCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the result cache",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Print cache counters and size",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := opts.buildApp(cmd.Context(), "stderr")
			if err != nil {
				return err
			}
			defer app.Close()

			s := app.Cache.Stats(cmd.Context())
			fmt.Fprintf(cmd.OutOrStdout(), "queries: %d\nhits:    %d\nmisses:  %d\nhitRate: %.2f%%\nsize:    %d\n",
				s.TotalQueries, s.CacheHits, s.CacheMisses, s.HitRate, s.CacheSize)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Remove every cached result",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := opts.buildApp(cmd.Context(), "stderr")
			if err != nil {
				return err
			}
			defer app.Close()

			if err := app.Cache.ClearAll(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Cache cleared")
			return nil
		},
	})
	return cmd
}
