package collector

import (
	"context"
	"fmt"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"OpportunityScanner/internal/model"
)

// AlpacaFetcher implements Fetcher with the Alpaca market data API.
type AlpacaFetcher struct {
	client *marketdata.Client
	now    func() time.Time
}

// NewAlpacaFetcher creates a fetcher. baseURL may be empty for the default data endpoint.
func NewAlpacaFetcher(apiKey, apiSecret, baseURL string) *AlpacaFetcher {
	return &AlpacaFetcher{
		client: marketdata.NewClient(marketdata.ClientOpts{
			APIKey:    apiKey,
			APISecret: apiSecret,
			BaseURL:   baseURL,
		}),
		now: time.Now,
	}
}

func (f *AlpacaFetcher) Name() string { return "alpaca" }

func (f *AlpacaFetcher) DownloadHistory(ctx context.Context, ticker, period, interval string) ([]model.Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tf, err := alpacaTimeFrame(interval)
	if err != nil {
		return nil, err
	}
	end := f.now()
	start, err := ParsePeriod(period, end)
	if err != nil {
		return nil, err
	}

	bars, err := f.client.GetBars(ticker, marketdata.GetBarsRequest{
		TimeFrame: tf,
		Start:     start,
		End:       end,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get bars for %s: %w", ticker, err)
	}
	if len(bars) == 0 {
		return nil, unavailable(ticker)
	}

	result := make([]model.Bar, 0, len(bars))
	for _, bar := range bars {
		result = append(result, model.Bar{
			Time:   bar.Timestamp.UTC(),
			Open:   bar.Open,
			High:   bar.High,
			Low:    bar.Low,
			Close:  bar.Close,
			Volume: float64(bar.Volume),
		})
	}
	return result, nil
}

func alpacaTimeFrame(interval string) (marketdata.TimeFrame, error) {
	switch interval {
	case "1d", "":
		return marketdata.OneDay, nil
	case "1h", "60m":
		return marketdata.OneHour, nil
	case "1m":
		return marketdata.OneMin, nil
	case "1wk":
		return marketdata.NewTimeFrame(1, marketdata.Week), nil
	case "1mo":
		return marketdata.NewTimeFrame(1, marketdata.Month), nil
	default:
		return marketdata.TimeFrame{}, fmt.Errorf("alpaca: unsupported interval %q", interval)
	}
}
