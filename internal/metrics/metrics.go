// Package metrics holds the Prometheus collectors shared by the scanner,
// data sources, price cache and advisory relays. A nil *Metrics is valid and
// records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "opportunity_scanner"

var durationBuckets = []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120, 300}

type Metrics struct {
	// Scan metrics
	ScansTotal       *prometheus.CounterVec
	ScanDuration     prometheus.Histogram
	ScanProgressDone prometheus.Gauge
	ScanProgressSize prometheus.Gauge
	TickersProcessed *prometheus.CounterVec
	Opportunities    *prometheus.CounterVec

	// Data metrics
	CacheLookups  *prometheus.CounterVec
	FetchDuration *prometheus.HistogramVec
	FetchErrors   *prometheus.CounterVec

	// Advisory metrics
	CompletionRequests *prometheus.CounterVec

	// Circuit breaker metrics
	BreakerState *prometheus.GaugeVec
	BreakerTrips *prometheus.CounterVec
}

// New creates and registers all collectors on reg (DefaultRegisterer when nil).
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		ScansTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "scan",
				Name:      "runs_total",
				Help:      "Total number of scan runs by result",
			},
			[]string{"result"},
		),
		ScanDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "scan",
				Name:      "duration_seconds",
				Help:      "Duration of a full scan in seconds",
				Buckets:   durationBuckets,
			},
		),
		ScanProgressDone: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "scan",
				Name:      "progress_done",
				Help:      "Tickers processed so far in the current scan",
			},
		),
		ScanProgressSize: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "scan",
				Name:      "progress_total",
				Help:      "Candidate tickers in the current scan",
			},
		),
		TickersProcessed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "scan",
				Name:      "tickers_total",
				Help:      "Tickers processed by outcome (flagged, unflagged, skipped, failed)",
			},
			[]string{"outcome"},
		),
		Opportunities: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "scan",
				Name:      "opportunities_total",
				Help:      "Flagged tickers by status",
			},
			[]string{"status"},
		),
		CacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "cache",
				Name:      "lookups_total",
				Help:      "Price cache lookups by result (hit, refill)",
			},
			[]string{"result"},
		),
		FetchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "fetch",
				Name:      "duration_seconds",
				Help:      "Remote history download duration in seconds",
				Buckets:   durationBuckets,
			},
			[]string{"provider"},
		),
		FetchErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "fetch",
				Name:      "errors_total",
				Help:      "Remote history download failures",
			},
			[]string{"provider", "error_type"},
		),
		CompletionRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "advisory",
				Name:      "requests_total",
				Help:      "Text-completion requests by provider and result",
			},
			[]string{"provider", "result"},
		),
		BreakerState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "circuit_breaker",
				Name:      "state",
				Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open)",
			},
			[]string{"breaker"},
		),
		BreakerTrips: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "circuit_breaker",
				Name:      "trips_total",
				Help:      "Number of times a circuit breaker opened",
			},
			[]string{"breaker"},
		),
	}
}

func (m *Metrics) RecordScan(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.ScansTotal.WithLabelValues(result).Inc()
	m.ScanDuration.Observe(d.Seconds())
}

func (m *Metrics) SetProgress(done, total int) {
	if m == nil {
		return
	}
	m.ScanProgressDone.Set(float64(done))
	m.ScanProgressSize.Set(float64(total))
}

func (m *Metrics) RecordTicker(outcome string) {
	if m == nil {
		return
	}
	m.TickersProcessed.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordOpportunity(status string) {
	if m == nil {
		return
	}
	m.Opportunities.WithLabelValues(status).Inc()
}

func (m *Metrics) RecordCache(result string) {
	if m == nil {
		return
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordFetch(provider string, d time.Duration, errorType string) {
	if m == nil {
		return
	}
	m.FetchDuration.WithLabelValues(provider).Observe(d.Seconds())
	if errorType != "" {
		m.FetchErrors.WithLabelValues(provider, errorType).Inc()
	}
}

func (m *Metrics) RecordCompletion(provider, result string) {
	if m == nil {
		return
	}
	m.CompletionRequests.WithLabelValues(provider, result).Inc()
}

// SetBreakerState records 0=closed, 1=half-open, 2=open and counts trips.
func (m *Metrics) SetBreakerState(name string, state int) {
	if m == nil {
		return
	}
	m.BreakerState.WithLabelValues(name).Set(float64(state))
	if state == 2 {
		m.BreakerTrips.WithLabelValues(name).Inc()
	}
}
