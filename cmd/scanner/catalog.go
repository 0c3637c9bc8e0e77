package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"OpportunityScanner/internal/catalog"
	"OpportunityScanner/internal/collector"
)

func newCatalogCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Manage the ticker catalog",
	}
	build := &cobra.Command{
		Use:   "build",
		Short: "Rebuild the catalog from the S&P 500 constituents list and an options probe",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			workers, _ := cmd.Flags().GetInt("workers")
			out, _ := cmd.Flags().GetString("out")
			if out == "" {
				out = app.Config.Catalog.JSONPath
			}

			b := catalog.NewBuilder(collector.NewYahooFetcher(app.Config.Proxy), app.Logger.Named("catalog"))
			if workers > 0 {
				b.Workers = workers
			}
			stocks, err := b.Build(cmd.Context())
			if err != nil {
				return err
			}
			if err := catalog.SaveJSON(out, stocks); err != nil {
				return err
			}
			withOptions := len(catalog.FilterOptionsOnly(stocks))
			app.Logger.Info("catalog saved", zap.String("path", out), zap.Int("tickers", len(stocks)))
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %d tickers (%d with options) to %s\n", len(stocks), withOptions, out)
			return nil
		},
	}
	build.Flags().Int("workers", 0, "Concurrent options probes")
	build.Flags().String("out", "", "Output path (default catalog.json_path)")

	cmd.AddCommand(build)
	return cmd
}
