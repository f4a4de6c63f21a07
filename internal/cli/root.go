// Package cli implements the peer-review command line.
package cli

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/beartec-jpg/Ai-Peer-review/internal/common/config"
	"github.com/beartec-jpg/Ai-Peer-review/internal/common/logger"
)

type rootOptions struct {
	configFile string
	offline    bool
	logLevel   string
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "peer-review",
		Short:         "Ask several models, let them review each other, keep the best answer",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "config file (default is configs/config.yaml)")
	cmd.PersistentFlags().BoolVar(&opts.offline, "offline", false, "use scripted local providers instead of remote APIs")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override logging level")

	cmd.AddCommand(
		newServeCmd(opts),
		newAskCmd(opts),
		newHistoryCmd(opts),
		newCacheCmd(opts),
	)
	return cmd
}

// Execute runs the command tree against os.Args.
func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}

func (o *rootOptions) loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if o.configFile != "" {
		cfg, err = config.LoadFromFile(o.configFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if o.offline {
		config.UseOffline(cfg)
	}
	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
	}
	return cfg, nil
}

// buildApp loads configuration and wires the application. CLI commands log
// to stderr so their stdout stays clean.
func (o *rootOptions) buildApp(ctx context.Context, logOutput string) (*App, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	if logOutput != "" {
		cfg.Logging.Output = logOutput
	}
	log := logger.NewStructured(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	return NewApp(ctx, cfg, log)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
