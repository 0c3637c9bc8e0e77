package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"OpportunityScanner/internal/catalog"
	"OpportunityScanner/internal/render"
)

func newSectorsCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "sectors",
		Short: "List catalog sectors with ticker counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			stocks, err := app.catalog().Load(cmd.Context())
			if err != nil {
				return err
			}
			counts := make(map[string]int)
			for _, s := range stocks {
				if s.Sector != "" {
					counts[s.Sector]++
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), render.Sectors(catalog.Sectors(stocks), counts))
			return nil
		},
	}
}
