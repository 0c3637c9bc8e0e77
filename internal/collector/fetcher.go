// Package collector downloads historical OHLCV bars from remote market-data sources.
package collector

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"OpportunityScanner/internal/model"
)

// ErrDataUnavailable is returned when a ticker yields no rows.
var ErrDataUnavailable = errors.New("data unavailable")

// Fetcher defines the interface for downloading market data.
type Fetcher interface {
	// DownloadHistory returns bars for period (e.g. "6mo") at interval (e.g. "1d"),
	// sorted ascending. A ticker with no rows fails with ErrDataUnavailable.
	DownloadHistory(ctx context.Context, ticker, period, interval string) ([]model.Bar, error)
	Name() string
}

// ParsePeriod converts a period string ("60d", "2wk", "6mo", "1y", "ytd", "max")
// into the start of the window ending at now.
func ParsePeriod(period string, now time.Time) (time.Time, error) {
	p := strings.ToLower(strings.TrimSpace(period))
	switch p {
	case "ytd":
		return time.Date(now.Year(), 1, 1, 0, 0, 0, 0, now.Location()), nil
	case "max":
		return time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC), nil
	}

	units := []struct {
		suffix string
		apply  func(n int) time.Time
	}{
		{"mo", func(n int) time.Time { return now.AddDate(0, -n, 0) }},
		{"wk", func(n int) time.Time { return now.AddDate(0, 0, -7*n) }},
		{"d", func(n int) time.Time { return now.AddDate(0, 0, -n) }},
		{"y", func(n int) time.Time { return now.AddDate(-n, 0, 0) }},
	}
	for _, u := range units {
		if !strings.HasSuffix(p, u.suffix) {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSuffix(p, u.suffix))
		if err != nil || n <= 0 {
			break
		}
		return u.apply(n), nil
	}
	return time.Time{}, fmt.Errorf("invalid period %q", period)
}

func unavailable(ticker string) error {
	return fmt.Errorf("%s: %w", ticker, ErrDataUnavailable)
}
