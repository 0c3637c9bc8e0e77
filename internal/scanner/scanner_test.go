package scanner

import (
	"context"
	"errors"
	"fmt"
	"math"
	"reflect"
	"sync"
	"testing"
	"time"

	"OpportunityScanner/internal/calculator"
	"OpportunityScanner/internal/catalog"
	"OpportunityScanner/internal/collector"
	"OpportunityScanner/internal/model"
	"OpportunityScanner/internal/pricecache"
	"OpportunityScanner/internal/strategy"
)

var day0 = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

func makeBars(closes []float64, spread, volume float64) []model.Bar {
	bars := make([]model.Bar, len(closes))
	for i, c := range closes {
		bars[i] = model.Bar{Time: day0.AddDate(0, 0, i), Open: c, High: c + spread, Low: c - spread, Close: c, Volume: volume}
	}
	return bars
}

func rising(n int) []model.Bar {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	return makeBars(closes, 1, 1e6)
}

func falling(n int) []model.Bar {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = 200 - float64(i)
	}
	return makeBars(closes, 1, 1e6)
}

// sideways oscillates 100,110,120,110 and ends mid-range, away from both levels.
func sideways(n int) []model.Bar {
	cycle := []float64{100, 110, 120, 110}
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = cycle[(i+2)%4]
	}
	return makeBars(closes, 5, 1e6)
}

func newTestScanner(t *testing.T, src catalog.Source, fetcher collector.Fetcher, opts Options) (*Scanner, *pricecache.MemoryCache) {
	t.Helper()
	cache := pricecache.NewMemoryCache()
	eng, err := calculator.NewEngine("native", calculator.DefaultParams)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	s, err := New(src, cache, fetcher, eng, opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s, cache
}

func TestEnsureHistory_IdempotentWhenCacheIsFull(t *testing.T) {
	mock := &collector.MockFetcher{Bars: map[string][]model.Bar{"TST": rising(70)}}
	s, _ := newTestScanner(t, nil, mock, Options{})
	ctx := context.Background()

	first, err := s.EnsureHistory(ctx, "TST")
	if err != nil {
		t.Fatalf("EnsureHistory: %v", err)
	}
	second, err := s.EnsureHistory(ctx, "TST")
	if err != nil {
		t.Fatalf("EnsureHistory (2nd): %v", err)
	}
	if calls := mock.Calls("TST"); calls != 1 {
		t.Errorf("expected one remote fetch, got %d", calls)
	}
	if !reflect.DeepEqual(first.Bars, second.Bars) {
		t.Error("second call returned a different series")
	}
}

func TestEnsureHistory_RefillReturnsFetchedSeries(t *testing.T) {
	fresh := rising(70)
	mock := &collector.MockFetcher{Bars: map[string][]model.Bar{"TST": fresh}}
	s, cache := newTestScanner(t, nil, mock, Options{})
	ctx := context.Background()

	stale := makeBars([]float64{1, 1, 1, 1, 1}, 0, 10)
	cache.Insert(ctx, "TST", stale)

	got, err := s.EnsureHistory(ctx, "TST")
	if err != nil {
		t.Fatalf("EnsureHistory: %v", err)
	}
	if got.Len() != 70 || got.Bars[0].Close != 100 {
		t.Errorf("expected the fetched series, got %d bars starting at %.0f", got.Len(), got.Bars[0].Close)
	}
	stored, _ := cache.FetchSeries(ctx, "TST")
	if stored.Len() != 70 || stored.Bars[0].Close != 100 {
		t.Errorf("refill should overwrite stale rows with the same timestamp, cache has %d bars", stored.Len())
	}
}

func TestEnsureHistory_ConcurrentRefillFetchesOnce(t *testing.T) {
	mock := &collector.MockFetcher{Bars: map[string][]model.Bar{"TST": rising(70)}}
	s, _ := newTestScanner(t, nil, mock, Options{})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.EnsureHistory(context.Background(), "TST"); err != nil {
				t.Errorf("EnsureHistory: %v", err)
			}
		}()
	}
	wg.Wait()
	if calls := mock.Calls("TST"); calls != 1 {
		t.Errorf("expected a single refill, got %d fetches", calls)
	}
}

func TestScan_Statuses(t *testing.T) {
	mock := &collector.MockFetcher{Bars: map[string][]model.Bar{
		"UP":   rising(70),
		"DOWN": falling(70),
		"FLAT": sideways(70),
	}}
	s, _ := newTestScanner(t, nil, mock, Options{})

	res, err := s.Scan(context.Background(), Request{Tickers: []string{"UP", "DOWN", "FLAT"}, Mode: "both"})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if res.Processed != 3 || len(res.Failures) != 0 || len(res.Skipped) != 0 {
		t.Fatalf("result = %+v", res)
	}
	if len(res.Opportunities) != 2 {
		t.Fatalf("expected 2 opportunities, got %+v", res.Opportunities)
	}
	up, down := res.Opportunities[0], res.Opportunities[1]
	if up.Ticker != "UP" || up.Status != model.StatusOverbought || up.RSI != 100 || up.Price != 169 {
		t.Errorf("UP = %+v", up)
	}
	if up.Resistance != 170 || up.Support != 149 {
		t.Errorf("UP levels = %.0f / %.0f", up.Support, up.Resistance)
	}
	if down.Ticker != "DOWN" || down.Status != model.StatusOversold || down.RSI != 0 {
		t.Errorf("DOWN = %+v", down)
	}
}

func TestScan_ModeNarrows(t *testing.T) {
	mock := &collector.MockFetcher{Bars: map[string][]model.Bar{"UP": rising(70), "DOWN": falling(70)}}
	s, _ := newTestScanner(t, nil, mock, Options{})

	res, err := s.Scan(context.Background(), Request{Tickers: []string{"UP", "DOWN"}, Mode: "oversold"})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(res.Opportunities) != 1 || res.Opportunities[0].Ticker != "DOWN" {
		t.Errorf("opportunities = %+v", res.Opportunities)
	}
}

func TestScan_MinVolumeExcludes(t *testing.T) {
	closes := make([]float64, 70)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	mock := &collector.MockFetcher{Bars: map[string][]model.Bar{"TST": makeBars(closes, 1, 500)}}
	s, _ := newTestScanner(t, nil, mock, Options{})

	res, err := s.Scan(context.Background(), Request{Tickers: []string{"TST"}, MinVolume: 1000})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(res.Opportunities) != 0 {
		t.Errorf("expected TST excluded by min volume, got %+v", res.Opportunities)
	}
	if len(res.Failures) != 0 || len(res.Skipped) != 0 {
		t.Errorf("a filtered ticker is neither skipped nor failed: %+v", res)
	}
}

func TestScan_PriceFilters(t *testing.T) {
	mock := &collector.MockFetcher{Bars: map[string][]model.Bar{"UP": rising(70)}}
	s, _ := newTestScanner(t, nil, mock, Options{})
	ctx := context.Background()

	res, _ := s.Scan(ctx, Request{Tickers: []string{"UP"}, MaxPrice: 150})
	if len(res.Opportunities) != 0 {
		t.Error("max price should exclude UP (last close 169)")
	}
	res, _ = s.Scan(ctx, Request{Tickers: []string{"UP"}, MinPrice: 100, MaxPrice: 200})
	if len(res.Opportunities) != 1 {
		t.Error("UP is within the price band")
	}
	if _, err := s.Scan(ctx, Request{Tickers: []string{"UP"}, MinPrice: 300, MaxPrice: 200}); err == nil {
		t.Error("expected error for an inverted price band")
	}
}

func TestScan_InvalidModeFailsBeforeWork(t *testing.T) {
	mock := &collector.MockFetcher{Bars: map[string][]model.Bar{"UP": rising(70)}}
	s, _ := newTestScanner(t, nil, mock, Options{})

	_, err := s.Scan(context.Background(), Request{Tickers: []string{"UP"}, Mode: "sideways"})
	if !errors.Is(err, strategy.ErrInvalidMode) {
		t.Fatalf("expected ErrInvalidMode, got %v", err)
	}
	if mock.Calls("UP") != 0 {
		t.Error("no ticker may be fetched when the mode is invalid")
	}
}

func TestScan_NoCandidates(t *testing.T) {
	s, _ := newTestScanner(t, catalog.Static{}, &collector.MockFetcher{}, Options{})
	if _, err := s.Scan(context.Background(), Request{}); !errors.Is(err, ErrNoCandidates) {
		t.Errorf("expected ErrNoCandidates, got %v", err)
	}
}

func TestScan_PerTickerErrorsDoNotAbort(t *testing.T) {
	nan := rising(70)
	nan[len(nan)-1].Close = math.NaN()
	mock := &collector.MockFetcher{
		Bars: map[string][]model.Bar{
			"UP":    rising(70),
			"SHORT": rising(70)[:10],
			"NAN":   nan,
			"EMPTY": {},
		},
		Errs: map[string]error{"BOOM": errors.New("connection reset")},
	}
	s, _ := newTestScanner(t, nil, mock, Options{MinRows: 5})

	res, err := s.Scan(context.Background(), Request{Tickers: []string{"BOOM", "SHORT", "NAN", "EMPTY", "UP"}})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if res.Processed != 5 {
		t.Errorf("processed = %d", res.Processed)
	}
	if len(res.Opportunities) != 1 || res.Opportunities[0].Ticker != "UP" {
		t.Errorf("opportunities = %+v", res.Opportunities)
	}
	if len(res.Failures) != 1 || res.Failures[0].Ticker != "BOOM" {
		t.Errorf("failures = %+v", res.Failures)
	}
	skipped := map[string]error{}
	for _, f := range res.Skipped {
		skipped[f.Ticker] = f.Err
	}
	if !errors.Is(skipped["SHORT"], ErrInsufficientHistory) {
		t.Errorf("SHORT: %v", skipped["SHORT"])
	}
	if !errors.Is(skipped["NAN"], ErrNumericCoercion) {
		t.Errorf("NAN: %v", skipped["NAN"])
	}
	if !errors.Is(skipped["EMPTY"], collector.ErrDataUnavailable) {
		t.Errorf("EMPTY: %v", skipped["EMPTY"])
	}
}

func TestScan_WorkersPreserveOrder(t *testing.T) {
	bars := map[string][]model.Bar{}
	var tickers []string
	for i := 0; i < 12; i++ {
		tk := fmt.Sprintf("T%02d", i)
		tickers = append(tickers, tk)
		if i%2 == 0 {
			bars[tk] = rising(70)
		} else {
			bars[tk] = falling(70)
		}
	}
	mock := &collector.MockFetcher{Bars: bars}

	var mu sync.Mutex
	var progress []Progress
	s, _ := newTestScanner(t, nil, mock, Options{Workers: 4, OnProgress: func(p Progress) {
		mu.Lock()
		progress = append(progress, p)
		mu.Unlock()
	}})

	res, err := s.Scan(context.Background(), Request{Tickers: tickers})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(res.Opportunities) != len(tickers) {
		t.Fatalf("expected %d opportunities, got %d", len(tickers), len(res.Opportunities))
	}
	for i, rec := range res.Opportunities {
		if rec.Ticker != tickers[i] {
			t.Errorf("position %d: got %s, want %s", i, rec.Ticker, tickers[i])
		}
	}
	if len(progress) != len(tickers) {
		t.Fatalf("progress calls = %d", len(progress))
	}
	last := progress[len(progress)-1]
	if last.Done != len(tickers) || last.Total != len(tickers) {
		t.Errorf("final progress = %+v", last)
	}
}

func TestScan_CancelledContext(t *testing.T) {
	mock := &collector.MockFetcher{Bars: map[string][]model.Bar{"UP": rising(70)}}
	s, _ := newTestScanner(t, nil, mock, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := s.Scan(ctx, Request{Tickers: []string{"UP"}})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if res.Processed != 0 {
		t.Errorf("processed = %d", res.Processed)
	}
}

func TestSelectCandidates(t *testing.T) {
	src := catalog.Static{
		{Ticker: "AAPL", Sector: "Information Technology", HasOptions: true},
		{Ticker: "XOM", Sector: "Energy", HasOptions: true},
		{Ticker: "CVX", Sector: "Energy", HasOptions: true},
		{Ticker: "TINY", Sector: "Energy"},
	}
	s, _ := newTestScanner(t, src, &collector.MockFetcher{}, Options{})
	ctx := context.Background()

	got, err := s.SelectCandidates(ctx, Filter{Sector: "Energy", OptionsOnly: true, Limit: 1})
	if err != nil {
		t.Fatalf("SelectCandidates: %v", err)
	}
	if !reflect.DeepEqual(got, []string{"XOM"}) {
		t.Errorf("got %v", got)
	}
	all, _ := s.SelectCandidates(ctx, Filter{})
	if len(all) != 4 || all[0] != "AAPL" {
		t.Errorf("unfiltered = %v", all)
	}
}

func TestScan_RecordsSectorFromCatalog(t *testing.T) {
	src := catalog.Static{{Ticker: "UP", Sector: "Utilities", HasOptions: true}}
	mock := &collector.MockFetcher{Bars: map[string][]model.Bar{"UP": rising(70)}}
	s, _ := newTestScanner(t, src, mock, Options{})

	res, err := s.Scan(context.Background(), Request{Filter: Filter{OptionsOnly: true}})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(res.Opportunities) != 1 || res.Opportunities[0].Sector != "Utilities" {
		t.Errorf("opportunities = %+v", res.Opportunities)
	}
}

func TestClassify_OverboughtWinsOverNearResistance(t *testing.T) {
	s, _ := newTestScanner(t, nil, &collector.MockFetcher{}, Options{})
	frame := &model.IndicatorFrame{
		Series: model.Series{Ticker: "TST", Bars: []model.Bar{{Close: 100}}},
		RSI:    []model.NullFloat{model.Some(75)},
		StochK: []model.NullFloat{model.Some(85)},
		StochD: []model.NullFloat{model.Some(85)},
	}
	got := s.Classify(frame, model.Bar{Close: 100}, model.Levels{Support: 80, Resistance: 101})
	if got != model.StatusOverbought {
		t.Errorf("Classify() = %s, want overbought", got)
	}
}
