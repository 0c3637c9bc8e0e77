// Package scanner runs the opportunity scan: candidate selection, cache-aside
// history, indicator computation and classification.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"OpportunityScanner/internal/calculator"
	"OpportunityScanner/internal/catalog"
	"OpportunityScanner/internal/collector"
	"OpportunityScanner/internal/metrics"
	"OpportunityScanner/internal/model"
	"OpportunityScanner/internal/pricecache"
	"OpportunityScanner/internal/strategy"
)

var (
	ErrNoCandidates        = errors.New("no candidate tickers")
	ErrInsufficientHistory = errors.New("insufficient history")
	ErrNumericCoercion     = errors.New("numeric coercion failure")
)

// Options tune a Scanner. Zero values take the defaults noted per field.
type Options struct {
	MinRows    int    // cached rows below this trigger a refill (60)
	Period     string // download window ("6mo")
	Interval   string // bar size ("1d")
	Lookback   int    // support/resistance window (20)
	Workers    int    // concurrent tickers (1)
	Thresholds strategy.Thresholds
	OnProgress func(Progress)
	Logger     *zap.Logger
	Metrics    *metrics.Metrics
}

func (o Options) withDefaults() Options {
	if o.MinRows <= 0 {
		o.MinRows = 60
	}
	if o.Period == "" {
		o.Period = "6mo"
	}
	if o.Interval == "" {
		o.Interval = "1d"
	}
	if o.Lookback <= 0 {
		o.Lookback = 20
	}
	if o.Workers <= 0 {
		o.Workers = 1
	}
	o.Thresholds = o.Thresholds.WithDefaults()
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// Filter narrows the catalog universe. Limit <= 0 means no limit.
type Filter struct {
	Sector      string
	OptionsOnly bool
	Limit       int
}

// Request describes one scan. When Tickers is set the catalog is not consulted.
// Zero MinVolume, MinPrice and MaxPrice disable the respective filter.
type Request struct {
	Tickers   []string
	Filter    Filter
	MinVolume float64
	MinPrice  float64
	MaxPrice  float64
	Mode      string
}

// Progress reports "Done of Total tickers processed"; Ticker is the one just finished.
type Progress struct {
	Done   int
	Total  int
	Ticker string
}

// TickerFailure is a per-ticker error that did not abort the scan.
type TickerFailure struct {
	Ticker string
	Err    error
}

func (f TickerFailure) Error() string { return f.Ticker + ": " + f.Err.Error() }
func (f TickerFailure) Unwrap() error { return f.Err }

// Result is the outcome of one scan.
type Result struct {
	Mode          strategy.Mode
	StartedAt     time.Time
	Duration      time.Duration
	Candidates    int
	Processed     int
	Opportunities []model.OpportunityRecord
	// Skipped holds tickers dropped for missing data, short history or bad numbers.
	Skipped []TickerFailure
	// Failures holds unexpected per-ticker errors.
	Failures []TickerFailure
}

type Scanner struct {
	catalog catalog.Source
	cache   pricecache.Cache
	fetcher collector.Fetcher
	engine  calculator.Engine
	opts    Options
	locks   keyedMutex
}

func New(src catalog.Source, cache pricecache.Cache, fetcher collector.Fetcher, engine calculator.Engine, opts Options) (*Scanner, error) {
	if cache == nil || fetcher == nil || engine == nil {
		return nil, errors.New("scanner requires a cache, a fetcher and an engine")
	}
	opts = opts.withDefaults()
	if err := opts.Thresholds.Validate(); err != nil {
		return nil, err
	}
	return &Scanner{catalog: src, cache: cache, fetcher: fetcher, engine: engine, opts: opts}, nil
}

// SelectCandidates returns ticker IDs from the catalog in catalog order.
func (s *Scanner) SelectCandidates(ctx context.Context, f Filter) ([]string, error) {
	metas, err := s.selectMeta(ctx, f)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(metas))
	for i, m := range metas {
		out[i] = m.Ticker
	}
	return out, nil
}

func (s *Scanner) selectMeta(ctx context.Context, f Filter) ([]model.TickerMeta, error) {
	if s.catalog == nil {
		return nil, errors.New("no ticker catalog configured")
	}
	stocks, err := s.catalog.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	if f.Sector != "" {
		stocks = catalog.FilterBySector(stocks, f.Sector)
	}
	if f.OptionsOnly {
		stocks = catalog.FilterOptionsOnly(stocks)
	}
	if f.Limit > 0 && len(stocks) > f.Limit {
		stocks = stocks[:f.Limit]
	}
	return stocks, nil
}

// EnsureHistory returns the cached series when it has at least MinRows bars.
// Otherwise it downloads the full period, stores it and returns the freshly
// downloaded series instead of the stale cached one. Refills of the same
// ticker never run concurrently.
func (s *Scanner) EnsureHistory(ctx context.Context, ticker string) (model.Series, error) {
	unlock := s.locks.Lock(ticker)
	defer unlock()

	cached, err := s.cache.FetchSeries(ctx, ticker)
	if err != nil {
		return model.Series{}, fmt.Errorf("read cache: %w", err)
	}
	if cached.Len() >= s.opts.MinRows {
		s.opts.Metrics.RecordCache("hit")
		return cached, nil
	}

	s.opts.Metrics.RecordCache("refill")
	bars, err := s.fetcher.DownloadHistory(ctx, ticker, s.opts.Period, s.opts.Interval)
	if err != nil {
		return model.Series{}, err
	}
	fetched := model.NewSeries(ticker, bars)
	if fetched.Len() == 0 {
		return model.Series{}, fmt.Errorf("%s: %w", ticker, collector.ErrDataUnavailable)
	}
	if err := s.cache.Insert(ctx, ticker, fetched.Bars); err != nil {
		s.opts.Logger.Warn("failed to store refilled history",
			zap.String("ticker", ticker), zap.Error(err))
	}
	return fetched, nil
}

// Classify evaluates the rule table against the frame's most recent row,
// priced at last.Close. Missing indicator values yield StatusNone.
func (s *Scanner) Classify(frame *model.IndicatorFrame, last model.Bar, levels model.Levels) model.Status {
	row, ok := frame.Last()
	if !ok {
		return model.StatusNone
	}
	in, ok := strategy.FromRow(row, levels)
	if !ok {
		return model.StatusNone
	}
	in.Price = last.Close
	return strategy.Classify(in, s.opts.Thresholds)
}

type outcome struct {
	record *model.OpportunityRecord
	err    error
}

// Scan runs a full scan. A bad mode or an empty candidate list fails before
// any ticker is touched; per-ticker errors end up in the Result.
func (s *Scanner) Scan(ctx context.Context, req Request) (*Result, error) {
	mode, err := strategy.ParseMode(req.Mode)
	if err != nil {
		return nil, err
	}
	if req.MaxPrice > 0 && req.MinPrice > req.MaxPrice {
		return nil, fmt.Errorf("min price %.2f exceeds max price %.2f", req.MinPrice, req.MaxPrice)
	}

	var metas []model.TickerMeta
	if len(req.Tickers) > 0 {
		for _, t := range req.Tickers {
			if t = strings.ToUpper(strings.TrimSpace(t)); t != "" {
				metas = append(metas, model.TickerMeta{Ticker: t})
			}
		}
	} else {
		metas, err = s.selectMeta(ctx, req.Filter)
		if err != nil {
			return nil, err
		}
	}
	if len(metas) == 0 {
		return nil, ErrNoCandidates
	}

	started := time.Now()
	log := s.opts.Logger.With(zap.String("mode", string(mode)))
	log.Info("scan started", zap.Int("candidates", len(metas)), zap.Int("workers", s.opts.Workers))

	outcomes := make([]outcome, len(metas))
	processed := s.run(ctx, metas, func(i int) {
		rec, err := s.scanTicker(ctx, metas[i], req, mode)
		outcomes[i] = outcome{record: rec, err: err}
	})

	res := &Result{
		Mode:       mode,
		StartedAt:  started,
		Candidates: len(metas),
		Processed:  processed,
	}
	for i, o := range outcomes {
		ticker := metas[i].Ticker
		switch {
		case o.err != nil && isSkip(o.err):
			res.Skipped = append(res.Skipped, TickerFailure{Ticker: ticker, Err: o.err})
			s.opts.Metrics.RecordTicker("skipped")
			log.Debug("ticker skipped", zap.String("ticker", ticker), zap.Error(o.err))
		case o.err != nil:
			res.Failures = append(res.Failures, TickerFailure{Ticker: ticker, Err: o.err})
			s.opts.Metrics.RecordTicker("failed")
			log.Warn("ticker failed", zap.String("ticker", ticker), zap.Error(o.err))
		case o.record != nil:
			res.Opportunities = append(res.Opportunities, *o.record)
			s.opts.Metrics.RecordTicker("flagged")
			s.opts.Metrics.RecordOpportunity(string(o.record.Status))
		}
	}
	res.Duration = time.Since(started)

	if err := ctx.Err(); err != nil {
		s.opts.Metrics.RecordScan("cancelled", res.Duration)
		return res, fmt.Errorf("scan interrupted after %d of %d tickers: %w", processed, len(metas), err)
	}
	s.opts.Metrics.RecordScan("ok", res.Duration)
	log.Info("scan finished",
		zap.Int("processed", res.Processed),
		zap.Int("opportunities", len(res.Opportunities)),
		zap.Int("skipped", len(res.Skipped)),
		zap.Int("failures", len(res.Failures)),
		zap.Duration("elapsed", res.Duration))
	return res, nil
}

func isSkip(err error) bool {
	return errors.Is(err, collector.ErrDataUnavailable) ||
		errors.Is(err, ErrInsufficientHistory) ||
		errors.Is(err, ErrNumericCoercion)
}

// run calls work for every index, sequentially or on a bounded pool, and
// reports progress after each one. It stops scheduling once ctx is done and
// returns the number of indexes processed.
func (s *Scanner) run(ctx context.Context, metas []model.TickerMeta, work func(i int)) int {
	total := len(metas)
	var (
		mu   sync.Mutex
		done int
	)
	report := func(i int) {
		mu.Lock()
		defer mu.Unlock()
		done++
		s.opts.Metrics.SetProgress(done, total)
		if s.opts.OnProgress != nil {
			s.opts.OnProgress(Progress{Done: done, Total: total, Ticker: metas[i].Ticker})
		}
	}
	s.opts.Metrics.SetProgress(0, total)

	if s.opts.Workers == 1 {
		for i := range metas {
			if ctx.Err() != nil {
				break
			}
			work(i)
			report(i)
		}
		return done
	}

	sem := make(chan struct{}, s.opts.Workers)
	var wg sync.WaitGroup
schedule:
	for i := range metas {
		select {
		case <-ctx.Done():
			break schedule
		case sem <- struct{}{}:
		}
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			work(i)
			report(i)
		}(i)
	}
	wg.Wait()
	return done
}

// scanTicker returns a record, nil for an unflagged or filtered ticker, or an error.
func (s *Scanner) scanTicker(ctx context.Context, meta model.TickerMeta, req Request, mode strategy.Mode) (*model.OpportunityRecord, error) {
	series, err := s.EnsureHistory(ctx, meta.Ticker)
	if err != nil {
		return nil, err
	}
	last, ok := series.Last()
	if !ok {
		return nil, ErrInsufficientHistory
	}
	if !validPrice(last.Close) || !validVolume(last.Volume) {
		return nil, fmt.Errorf("%w: close=%v volume=%v", ErrNumericCoercion, last.Close, last.Volume)
	}
	if !passesFilters(last, req) {
		s.opts.Metrics.RecordTicker("filtered")
		return nil, nil
	}

	frame, err := s.engine.Compute(series)
	if err != nil {
		return nil, fmt.Errorf("compute indicators: %w", err)
	}
	row, _ := frame.Last()
	levels := calculator.CalculateSupportResistance(series.Bars, s.opts.Lookback)
	if _, ok := strategy.FromRow(row, levels); !ok {
		return nil, fmt.Errorf("%w: %d bars", ErrInsufficientHistory, series.Len())
	}

	status := s.Classify(frame, last, levels)
	if !mode.Allows(status) {
		s.opts.Metrics.RecordTicker("unflagged")
		return nil, nil
	}
	return &model.OpportunityRecord{
		Ticker:     meta.Ticker,
		Price:      last.Close,
		RSI:        row.RSI.Float64,
		StochK:     row.StochK.Float64,
		StochD:     row.StochD.Float64,
		Support:    levels.Support,
		Resistance: levels.Resistance,
		Status:     status,
		Volume:     last.Volume,
		Sector:     meta.Sector,
	}, nil
}

func passesFilters(last model.Bar, req Request) bool {
	if req.MinVolume > 0 && last.Volume < req.MinVolume {
		return false
	}
	if req.MinPrice > 0 && last.Close < req.MinPrice {
		return false
	}
	if req.MaxPrice > 0 && last.Close > req.MaxPrice {
		return false
	}
	return true
}

func validPrice(v float64) bool {
	return v > 0 && !math.IsNaN(v) && !math.IsInf(v, 0)
}

func validVolume(v float64) bool {
	return v >= 0 && !math.IsNaN(v) && !math.IsInf(v, 0)
}
