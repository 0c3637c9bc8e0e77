package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"OpportunityScanner/internal/model"
	"OpportunityScanner/internal/recorder"
	"OpportunityScanner/internal/render"
	"OpportunityScanner/internal/scanner"
)

func newScanCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan [TICKERS...]",
		Short: "Scan tickers for technical opportunities",
		Long: `Scan the given tickers, or the catalog when none are given, and print the
flagged ones.

Examples:
  scanner scan AAPL MSFT NVDA
  scanner scan --sector Energy --mode oversold
  scanner scan --options-only --limit 50 --min-volume 1000000 --json
  scanner scan --advise-batch`,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := requestFromFlags(cmd, args)
			if err != nil {
				return err
			}
			return runScan(cmd, app, req)
		},
	}

	cmd.Flags().StringP("mode", "m", "both", "Which signals to report: overbought, oversold, both")
	cmd.Flags().String("sector", "", "Only scan catalog tickers in this sector")
	cmd.Flags().Bool("options-only", false, "Only scan catalog tickers with listed options")
	cmd.Flags().Int("limit", 0, "Scan at most this many catalog tickers (0 = all)")
	cmd.Flags().Float64("min-volume", 0, "Minimum latest-bar volume")
	cmd.Flags().Float64("min-price", 0, "Minimum latest close")
	cmd.Flags().Float64("max-price", 0, "Maximum latest close (0 = no limit)")
	cmd.Flags().Int("workers", 0, "Concurrent tickers (overrides scan.workers)")
	cmd.Flags().Bool("json", false, "Print opportunities as JSON")
	cmd.Flags().Bool("advise", false, "Ask the completion service for an opinion on each opportunity")
	cmd.Flags().Bool("advise-batch", false, "Ask the completion service for one opinion on all opportunities")
	cmd.Flags().Bool("verdicts", false, "Ask the completion service for a structured verdict per opportunity")
	cmd.Flags().Bool("quiet", false, "Hide progress output")
	return cmd
}

func requestFromFlags(cmd *cobra.Command, args []string) (scanner.Request, error) {
	mode, _ := cmd.Flags().GetString("mode")
	sector, _ := cmd.Flags().GetString("sector")
	optionsOnly, _ := cmd.Flags().GetBool("options-only")
	limit, _ := cmd.Flags().GetInt("limit")
	minVolume, _ := cmd.Flags().GetFloat64("min-volume")
	minPrice, _ := cmd.Flags().GetFloat64("min-price")
	maxPrice, _ := cmd.Flags().GetFloat64("max-price")

	if limit < 0 || minVolume < 0 || minPrice < 0 || maxPrice < 0 {
		return scanner.Request{}, fmt.Errorf("--limit, --min-volume, --min-price and --max-price must not be negative")
	}
	if len(args) > 0 && (sector != "" || optionsOnly || limit > 0) {
		return scanner.Request{}, fmt.Errorf("--sector, --options-only and --limit apply to catalog scans only")
	}
	return scanner.Request{
		Tickers:   args,
		Filter:    scanner.Filter{Sector: sector, OptionsOnly: optionsOnly, Limit: limit},
		MinVolume: minVolume,
		MinPrice:  minPrice,
		MaxPrice:  maxPrice,
		Mode:      mode,
	}, nil
}

func runScan(cmd *cobra.Command, app *App, req scanner.Request) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	errOut := cmd.ErrOrStderr()

	asJSON, _ := cmd.Flags().GetBool("json")
	quiet, _ := cmd.Flags().GetBool("quiet")
	if workers, _ := cmd.Flags().GetInt("workers"); workers > 0 {
		app.Config.Scan.Workers = workers
	}

	var onProgress func(scanner.Progress)
	if !quiet && !asJSON {
		onProgress = func(p scanner.Progress) {
			fmt.Fprintf(errOut, "\r[%d/%d] %-8s", p.Done, p.Total, p.Ticker)
			if p.Done == p.Total {
				fmt.Fprintln(errOut)
			}
		}
	}

	sc, err := app.scanner(ctx, onProgress)
	if err != nil {
		return err
	}
	res, scanErr := sc.Scan(ctx, req)
	if res == nil {
		return scanErr
	}

	for _, f := range res.Failures {
		app.Logger.Warn("ticker failed", zap.String("ticker", f.Ticker), zap.Error(f.Err))
	}
	if err := app.recorder().RecordRun(recorder.FromResult(res, "cli")); err != nil {
		app.Logger.Error("record scan run", zap.Error(err))
	}

	opps := res.Opportunities
	if opps == nil {
		opps = []model.OpportunityRecord{}
	}
	if asJSON {
		if err := render.WriteJSON(out, opps); err != nil {
			return err
		}
	} else {
		if err := render.WriteTable(out, opps); err != nil {
			return err
		}
		fmt.Fprintf(errOut, "Processed %d of %d tickers in %s (%d skipped, %d failed)\n",
			res.Processed, res.Candidates, res.Duration.Round(time.Millisecond), len(res.Skipped), len(res.Failures))
	}

	if scanErr != nil {
		return scanErr
	}
	if len(opps) > 0 {
		if err := runAdvice(ctx, cmd, app, out, opps); err != nil {
			return err
		}
	}
	return nil
}

func runAdvice(ctx context.Context, cmd *cobra.Command, app *App, out io.Writer, opps []model.OpportunityRecord) error {
	advise, _ := cmd.Flags().GetBool("advise")
	batch, _ := cmd.Flags().GetBool("advise-batch")
	verdicts, _ := cmd.Flags().GetBool("verdicts")
	if !advise && !batch && !verdicts {
		return nil
	}

	adv, err := app.advisor(ctx)
	if err != nil {
		return err
	}

	if advise {
		for _, o := range opps {
			text, err := adv.Opinion(ctx, o)
			if err != nil {
				app.Logger.Warn("opinion failed", zap.String("ticker", o.Ticker), zap.Error(err))
				continue
			}
			fmt.Fprintln(out, render.Advice(fmt.Sprintf("%s (%s)", o.Ticker, o.Status), text))
		}
	}
	if batch {
		text, err := adv.Summarize(ctx, opps)
		if err != nil {
			return fmt.Errorf("batch advice: %w", err)
		}
		fmt.Fprintln(out, render.Advice("Summary of "+strings.Join(tickers(opps), ", "), text))
	}
	if verdicts {
		vs, err := adv.Verdicts(ctx, opps)
		if err != nil {
			return fmt.Errorf("verdicts: %w", err)
		}
		fmt.Fprintln(out, render.Verdicts(vs))
	}
	return nil
}

func tickers(recs []model.OpportunityRecord) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.Ticker
	}
	return out
}
