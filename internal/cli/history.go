package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/beartec-jpg/Ai-Peer-review/internal/models"
)

func newHistoryCmd(opts *rootOptions) *cobra.Command {
	var (
		user     string
		search   string
		minScore float64
		clearAll bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List or clear recorded queries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := opts.buildApp(cmd.Context(), "stderr")
			if err != nil {
				return err
			}
			defer app.Close()

			out := cmd.OutOrStdout()
			if clearAll {
				if err := app.History.Clear(cmd.Context(), user); err != nil {
					return err
				}
				fmt.Fprintln(out, "History cleared")
				return nil
			}

			filter := &models.HistoryFilter{SearchQuery: search}
			if cmd.Flags().Changed("min-score") {
				filter.MinScore = &minScore
			}
			entries, err := app.History.List(cmd.Context(), user, filter)
			if err != nil {
				return err
			}
			stats, err := app.History.Stats(cmd.Context(), user)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tWHEN\tBEST\tSCORE\tCACHED\tQUERY")
			for _, e := range entries {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%.2f\t%t\t%s\n",
					e.ID, e.Timestamp.Local().Format(time.DateTime), e.Result.BestProvider,
					e.Result.MaxScore(), e.CacheHit, truncate(e.Query, 60))
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(out, "\n%d shown, %d total, cache hit rate %.1f%%, average best score %.2f\n",
				len(entries), stats.TotalQueries, stats.CacheHitRate, stats.AvgScore)
			return nil
		},
	}

	cmd.Flags().StringVar(&user, "user", envOr("PEER_REVIEW_USER", ""), "user id")
	cmd.Flags().StringVar(&search, "search", "", "case-insensitive text in query or best answer")
	cmd.Flags().Float64Var(&minScore, "min-score", 0, "only entries whose best score is at least this")
	cmd.Flags().BoolVar(&clearAll, "clear", false, "delete the user's history")
	return cmd
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
