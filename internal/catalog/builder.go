package catalog

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"OpportunityScanner/internal/model"
)

const sp500URL = "https://en.wikipedia.org/wiki/List_of_S%26P_500_companies"

// OptionsProber reports whether a ticker has listed options.
type OptionsProber interface {
	HasOptions(ctx context.Context, ticker string) (bool, error)
}

// Builder assembles the catalog from the S&P 500 constituents table and an
// options probe per ticker.
type Builder struct {
	Client  *http.Client
	ListURL string
	Prober  OptionsProber
	Workers int
	logger  *zap.Logger
}

func NewBuilder(prober OptionsProber, logger *zap.Logger) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{
		Client:  &http.Client{Timeout: 30 * time.Second},
		ListURL: sp500URL,
		Prober:  prober,
		Workers: 8,
		logger:  logger,
	}
}

// Build scrapes constituents and probes options. Tickers whose probe fails are
// dropped; the order of the source table is kept.
func (b *Builder) Build(ctx context.Context) ([]model.TickerMeta, error) {
	stocks, err := b.scrape(ctx)
	if err != nil {
		return nil, err
	}
	if b.Prober == nil {
		return stocks, nil
	}

	workers := b.Workers
	if workers <= 0 {
		workers = 1
	}
	ok := make([]bool, len(stocks))
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup
	for i := range stocks {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			has, err := b.Prober.HasOptions(ctx, stocks[i].Ticker)
			if err != nil {
				b.logger.Debug("skipping ticker, options probe failed",
					zap.String("ticker", stocks[i].Ticker), zap.Error(err))
				return
			}
			stocks[i].HasOptions = has
			ok[i] = true
		}(i)
	}
	wg.Wait()

	out := make([]model.TickerMeta, 0, len(stocks))
	for i, s := range stocks {
		if ok[i] {
			out = append(out, s)
		}
	}
	b.logger.Info("catalog built", zap.Int("listed", len(stocks)), zap.Int("kept", len(out)))
	return out, nil
}

func (b *Builder) scrape(ctx context.Context) ([]model.TickerMeta, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.ListURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")
	resp, err := b.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch constituents: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch constituents: status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse constituents: %w", err)
	}

	var stocks []model.TickerMeta
	doc.Find("table#constituents tbody tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 3 {
			return // header row
		}
		symbol := strings.TrimSpace(cells.Eq(0).Text())
		if symbol == "" {
			return
		}
		stocks = append(stocks, model.TickerMeta{
			Ticker: symbol,
			Name:   strings.TrimSpace(cells.Eq(1).Text()),
			Sector: strings.TrimSpace(cells.Eq(2).Text()),
		})
	})
	if len(stocks) == 0 {
		return nil, fmt.Errorf("no constituents found at %s", b.ListURL)
	}
	return stocks, nil
}
