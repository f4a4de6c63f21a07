package cli

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/beartec-jpg/Ai-Peer-review/internal/api"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			app, err := opts.buildApp(ctx, "")
			if err != nil {
				return err
			}
			defer app.Close()

			server := api.NewServer(api.Deps{
				Reviews:   app.Reviews,
				Followups: app.Followups,
				History:   app.History,
				Cache:     app.Cache,
				Checks:    app.Checks,
			}, app.Logger)
			return server.Start(ctx, app.Config.Server)
		},
	}
}
