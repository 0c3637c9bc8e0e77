package collector

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"OpportunityScanner/internal/breaker"
	"OpportunityScanner/internal/metrics"
	"OpportunityScanner/internal/model"
)

// Options selects and configures a data source.
type Options struct {
	Provider     string // yahoo, alpaca, rest, mock
	ProxyURL     string
	RESTBaseURL  string
	RESTAPIKey   string
	AlpacaKey    string
	AlpacaSecret string
	AlpacaURL    string
}

// New builds the Fetcher named by opts.Provider.
func New(opts Options) (Fetcher, error) {
	switch opts.Provider {
	case "", "yahoo":
		return NewYahooFetcher(opts.ProxyURL), nil
	case "alpaca":
		if opts.AlpacaKey == "" || opts.AlpacaSecret == "" {
			return nil, errors.New("alpaca provider requires api key and secret")
		}
		return NewAlpacaFetcher(opts.AlpacaKey, opts.AlpacaSecret, opts.AlpacaURL), nil
	case "rest":
		if opts.RESTBaseURL == "" {
			return nil, errors.New("rest provider requires base_url")
		}
		return NewRESTFetcher(opts.RESTBaseURL, opts.RESTAPIKey, opts.ProxyURL), nil
	case "mock":
		return &MockFetcher{Price: 100}, nil
	default:
		return nil, fmt.Errorf("unknown data provider %q", opts.Provider)
	}
}

// MockFetcher returns controllable fixed data for development and testing.
// Tickers without an entry in Bars get a deterministic generated series.
type MockFetcher struct {
	Price float64
	Bars  map[string][]model.Bar
	Errs  map[string]error

	mu    sync.Mutex
	calls map[string]int
}

func (m *MockFetcher) Name() string { return "mock" }

func (m *MockFetcher) DownloadHistory(_ context.Context, ticker, period, _ string) ([]model.Bar, error) {
	m.mu.Lock()
	if m.calls == nil {
		m.calls = make(map[string]int)
	}
	m.calls[ticker]++
	m.mu.Unlock()

	if err, ok := m.Errs[ticker]; ok {
		return nil, err
	}
	if bars, ok := m.Bars[ticker]; ok {
		if len(bars) == 0 {
			return nil, unavailable(ticker)
		}
		out := make([]model.Bar, len(bars))
		copy(out, bars)
		return out, nil
	}

	count := 126
	if start, err := ParsePeriod(period, time.Now()); err == nil {
		if days := int(time.Since(start).Hours()/24) * 5 / 7; days > 0 && days < count {
			count = days
		}
	}
	return generateMockBars(ticker, m.Price, count), nil
}

// Calls returns how many times ticker was downloaded.
func (m *MockFetcher) Calls(ticker string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[ticker]
}

// generateMockBars produces a daily sine wave whose phase depends on the ticker,
// so different tickers land in different classification zones.
func generateMockBars(ticker string, basePrice float64, count int) []model.Bar {
	if basePrice <= 0 {
		basePrice = 100
	}
	h := fnv.New32a()
	h.Write([]byte(ticker))
	phase := float64(h.Sum32()%360) * math.Pi / 180

	end := time.Now().UTC().Truncate(24 * time.Hour)
	bars := make([]model.Bar, count)
	for i := 0; i < count; i++ {
		p := basePrice * (1 + 0.1*math.Sin(phase+float64(i)/8))
		bars[i] = model.Bar{
			Time:   end.AddDate(0, 0, -(count - 1 - i)),
			Open:   p * 0.999,
			High:   p * 1.005,
			Low:    p * 0.995,
			Close:  p,
			Volume: 1000000,
		}
	}
	return bars
}

// Guarded wraps a Fetcher with a circuit breaker, fetch metrics and logging.
// ErrDataUnavailable does not count against the breaker.
type Guarded struct {
	next     Fetcher
	breakers *breaker.Registry
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// NewGuarded wraps next. breakers may be nil to disable the circuit breaker.
func NewGuarded(next Fetcher, breakers *breaker.Registry, m *metrics.Metrics, logger *zap.Logger) *Guarded {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Guarded{next: next, breakers: breakers, metrics: m, logger: logger}
}

// IsDataUnavailable is the breaker ignore predicate for fetchers.
func IsDataUnavailable(err error) bool { return errors.Is(err, ErrDataUnavailable) }

func (g *Guarded) Name() string { return g.next.Name() }

func (g *Guarded) DownloadHistory(ctx context.Context, ticker, period, interval string) ([]model.Bar, error) {
	start := time.Now()
	bars, err := breaker.Call(ctx, g.breakers, "fetch:"+g.next.Name(), func() ([]model.Bar, error) {
		return g.next.DownloadHistory(ctx, ticker, period, interval)
	})
	elapsed := time.Since(start)

	switch {
	case err == nil:
		g.metrics.RecordFetch(g.Name(), elapsed, "")
		g.logger.Debug("downloaded history",
			zap.String("ticker", ticker),
			zap.Int("bars", len(bars)),
			zap.Duration("elapsed", elapsed))
	case errors.Is(err, ErrDataUnavailable):
		g.metrics.RecordFetch(g.Name(), elapsed, "data_unavailable")
	case errors.Is(err, breaker.ErrOpen):
		g.metrics.RecordFetch(g.Name(), elapsed, "breaker_open")
	default:
		g.metrics.RecordFetch(g.Name(), elapsed, "error")
	}
	return bars, err
}
