package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"OpportunityScanner/internal/advisory"
	"OpportunityScanner/internal/breaker"
	"OpportunityScanner/internal/calculator"
	"OpportunityScanner/internal/catalog"
	"OpportunityScanner/internal/collector"
	"OpportunityScanner/internal/config"
	"OpportunityScanner/internal/logging"
	"OpportunityScanner/internal/metrics"
	"OpportunityScanner/internal/pricecache"
	"OpportunityScanner/internal/recorder"
	"OpportunityScanner/internal/scanner"
)

// App carries the shared dependencies of every command.
type App struct {
	cfgPath string

	Config   *config.Config
	Logger   *zap.Logger
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics
	Breakers *breaker.Registry

	closers []func() error
}

// Init loads configuration and builds the logger, metrics and breakers.
func (a *App) Init(cmd *cobra.Command) error {
	cfg, err := config.Load(a.cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		cfg.Log.Level = lvl
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Production)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	a.Config = cfg
	a.Logger = logger
	a.Registry = reg
	a.Metrics = m
	a.Breakers = breaker.NewRegistry(cfg.Breaker, collector.IsDataUnavailable, logger.Named("breaker"), m)
	a.closers = append(a.closers, func() error { return logger.Sync() })
	return nil
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i]()
	}
	a.closers = nil
}

func (a *App) fetcher() (collector.Fetcher, error) {
	ds := a.Config.DataSource
	f, err := collector.New(collector.Options{
		Provider:     ds.Provider,
		ProxyURL:     a.Config.Proxy,
		RESTBaseURL:  ds.BaseURL,
		RESTAPIKey:   ds.APIKey,
		AlpacaKey:    ds.AlpacaKey,
		AlpacaSecret: ds.AlpacaSecret,
		AlpacaURL:    ds.AlpacaURL,
	})
	if err != nil {
		return nil, err
	}
	a.Logger.Info("data source", zap.String("provider", f.Name()))
	return collector.NewGuarded(f, a.Breakers, a.Metrics, a.Logger.Named("collector")), nil
}

func (a *App) catalog() *catalog.Catalog {
	builder := catalog.NewBuilder(collector.NewYahooFetcher(a.Config.Proxy), a.Logger.Named("catalog"))
	return catalog.New(a.Config.Catalog.JSONPath, a.Config.Catalog.TxtPath, builder, a.Logger.Named("catalog"))
}

func (a *App) scanner(ctx context.Context, onProgress func(scanner.Progress)) (*scanner.Scanner, error) {
	fetcher, err := a.fetcher()
	if err != nil {
		return nil, err
	}
	cache, err := pricecache.Open(ctx, a.Config.Cache, a.Logger.Named("pricecache"))
	if err != nil {
		return nil, fmt.Errorf("open price cache: %w", err)
	}
	a.closers = append(a.closers, cache.Close)

	engine, err := calculator.NewEngine(a.Config.Scan.Engine, a.Config.Indicators)
	if err != nil {
		return nil, err
	}

	sc := a.Config.Scan
	return scanner.New(a.catalog(), cache, fetcher, engine, scanner.Options{
		MinRows:    sc.MinRows,
		Period:     sc.Period,
		Interval:   sc.Interval,
		Lookback:   sc.Lookback,
		Workers:    sc.Workers,
		Thresholds: a.Config.Thresholds,
		OnProgress: onProgress,
		Logger:     a.Logger.Named("scanner"),
		Metrics:    a.Metrics,
	})
}

func (a *App) advisor(ctx context.Context) (*advisory.Advisor, error) {
	c, err := advisory.NewCompleter(ctx, a.Config.Advisory)
	if err != nil {
		return nil, fmt.Errorf("advisory: %w", err)
	}
	return advisory.NewAdvisor(c, a.Breakers, a.Metrics, a.Logger.Named("advisory")), nil
}

// recorder opens scan history, falling back to a no-op recorder.
func (a *App) recorder() recorder.Recorder {
	path := a.Config.Database.SQLitePath
	if path == "" {
		return recorder.NewNoopRecorder()
	}
	sr, err := recorder.NewSQLiteRecorder(path, a.Logger.Named("recorder"))
	if err != nil {
		a.Logger.Warn("init sqlite recorder failed, using noop", zap.Error(err))
		return recorder.NewNoopRecorder()
	}
	a.closers = append(a.closers, sr.Close)
	return sr
}
