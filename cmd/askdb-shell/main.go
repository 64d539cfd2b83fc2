package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/askdb/askdb/internal/app"
	"github.com/askdb/askdb/internal/cli/shell"
	"github.com/askdb/askdb/internal/config"
	"github.com/askdb/askdb/internal/observability"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configFile string
	cmd := &cobra.Command{
		Use:           "askdb-shell",
		Short:         "Ask questions about a SQL Server table interactively",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if configFile != "" {
				if err := os.Setenv("ASKDB_CONFIG_FILE", configFile); err != nil {
					return err
				}
			}
			cfg, err := config.LoadFromEnv("askdb-shell")
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger := observability.NewLogger(cfg, os.Stderr)
			services, err := app.New(cfg, logger)
			if err != nil {
				return err
			}
			defer func() { _ = services.Session.Close() }()

			lines, err := shell.NewReadline()
			if err != nil {
				return err
			}
			return shell.New(services.Session, lines, shell.Options{
				Stdout:      os.Stdout,
				GridColumns: cfg.UI.TableGridColumns,
				Logger:      logger,
			}).Run(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&configFile, "config", "", "YAML config file (same keys as ASKDB_* variables)")
	return cmd
}
