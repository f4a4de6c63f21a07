package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/beartec-jpg/Ai-Peer-review/internal/models"
	"github.com/beartec-jpg/Ai-Peer-review/internal/review/followup"
)

func newAskCmd(opts *rootOptions) *cobra.Command {
	var (
		user    string
		asJSON  bool
		verbose bool
	)

	cmd := &cobra.Command{
		Use:   "ask <query>",
		Short: "Run one peer review and print the winning answer",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := opts.buildApp(cmd.Context(), "stderr")
			if err != nil {
				return err
			}
			defer app.Close()

			result, err := app.Reviews.Submit(cmd.Context(), models.ReviewRequest{
				Query:  strings.Join(args, " "),
				UserID: user,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(result)
			}
			printResult(out, result, verbose)
			return nil
		},
	}

	cmd.Flags().StringVar(&user, "user", envOr("PEER_REVIEW_USER", ""), "user id recorded in history")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full result as JSON")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "also print every final answer and rating")
	return cmd
}

func printResult(w io.Writer, result *models.Result, verbose bool) {
	fmt.Fprintf(w, "Best: %s (%.2f/10)", result.BestProvider, result.BestScore())
	if result.FromCache {
		fmt.Fprint(w, " [cached]")
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Scores:")
	for _, a := range result.Finals {
		key := strings.ToLower(a.Provider)
		fmt.Fprintf(w, "  %-10s %.2f\n", a.Provider, result.AggregatedScores[key])
	}

	fmt.Fprintf(w, "\n%s\n", result.BestAnswer)

	if verbose {
		for _, a := range result.Finals {
			fmt.Fprintf(w, "\n--- %s (final) ---\n%s\n", a.Provider, a.Content)
		}
		for _, r := range result.Ratings {
			fmt.Fprintf(w, "\n--- rating from %s ---\n%s\n", r.FromProvider, r.Feedback)
		}
	}

	suggestions := followup.Suggestions(followup.NewContext(result))
	fmt.Fprintln(w, "\nFollow-up ideas:")
	for _, s := range suggestions {
		fmt.Fprintf(w, "  - %s\n", s)
	}
}
