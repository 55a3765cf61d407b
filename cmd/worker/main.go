package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"txengine/internal/app/bootstrap"
	"txengine/internal/platform/config"
	"txengine/internal/platform/logging"

	"github.com/spf13/cobra"
)

// Worker process entrypoint.
// Data flow:
// 1) Load config.
// 2) Bind a queue to the status exchange.
// 3) Record status changes until SIGINT/SIGTERM.
func main() {
	var cfgFile string
	root := &cobra.Command{
		Use:           "txengine-worker",
		Short:         "Consume transaction status events",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			logger, err := logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)
			if err != nil {
				return err
			}
			app, err := bootstrap.BuildWorker(cfg, logger)
			if err != nil {
				return fmt.Errorf("bootstrap worker failed: %w", err)
			}
			defer func() { _ = app.Close() }()
			return app.Run(cmd.Context())
		},
	}
	root.Flags().StringVar(&cfgFile, "config", "", "config file (env vars still override it)")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := root.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
