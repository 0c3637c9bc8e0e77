package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app := &App{}
	root := newRootCmd(app)
	err := root.ExecuteContext(ctx)
	app.Close()
	if err != nil {
		os.Exit(1)
	}
}

func newRootCmd(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:           "scanner",
		Short:         "Scan stocks for overbought, oversold and support/resistance setups",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return app.Init(cmd)
		},
	}
	root.PersistentFlags().StringVar(&app.cfgPath, "config", "", "config file (default $CONFIG_PATH or configs/config.yaml)")
	root.PersistentFlags().String("log-level", "", "override log level (debug, info, warn, error)")

	root.AddCommand(
		newScanCmd(app),
		newSectorsCmd(app),
		newCatalogCmd(app),
		newServeCmd(app),
	)
	return root
}
