// Package breaker keeps one gobreaker circuit breaker per external service.
package breaker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"OpportunityScanner/internal/metrics"
)

// ErrOpen is returned when a breaker rejects a call.
var ErrOpen = errors.New("circuit breaker open")

// Config holds the breaker settings shared by all services.
type Config struct {
	MaxRequests uint32        `yaml:"max_requests"` // allowed in half-open state
	Interval    time.Duration `yaml:"interval"`     // closed-state count reset period
	Timeout     time.Duration `yaml:"timeout"`      // open-state duration before half-open
	MinRequests uint32        `yaml:"min_requests"`
	// FailureRatio trips the breaker once MinRequests have been seen.
	FailureRatio float64 `yaml:"failure_ratio"`
}

var DefaultConfig = Config{
	MaxRequests:  3,
	Interval:     time.Minute,
	Timeout:      30 * time.Second,
	MinRequests:  5,
	FailureRatio: 0.5,
}

// WithDefaults fills zero fields from DefaultConfig.
func (c Config) WithDefaults() Config {
	if c.MaxRequests == 0 {
		c.MaxRequests = DefaultConfig.MaxRequests
	}
	if c.Interval == 0 {
		c.Interval = DefaultConfig.Interval
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultConfig.Timeout
	}
	if c.MinRequests == 0 {
		c.MinRequests = DefaultConfig.MinRequests
	}
	if c.FailureRatio == 0 {
		c.FailureRatio = DefaultConfig.FailureRatio
	}
	return c
}

// Registry hands out breakers by service name.
type Registry struct {
	mu       sync.RWMutex
	breakers map[string]*gobreaker.CircuitBreaker[any]
	config   Config
	// IsSuccessful decides which errors count against the breaker. Nil counts every error.
	isSuccessful func(error) bool
	logger       *zap.Logger
	metrics      *metrics.Metrics
}

// NewRegistry creates a registry. Errors for which ignore returns true do not
// count as failures (e.g. a ticker that simply has no data).
func NewRegistry(cfg Config, ignore func(error) bool, logger *zap.Logger, m *metrics.Metrics) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	var isSuccessful func(error) bool
	if ignore != nil {
		isSuccessful = func(err error) bool { return err == nil || ignore(err) }
	}
	return &Registry{
		breakers:     make(map[string]*gobreaker.CircuitBreaker[any]),
		config:       cfg,
		isSuccessful: isSuccessful,
		logger:       logger,
		metrics:      m,
	}
}

// Get returns (or creates) the breaker for name.
func (r *Registry) Get(name string) *gobreaker.CircuitBreaker[any] {
	r.mu.RLock()
	cb, ok := r.breakers[name]
	r.mu.RUnlock()
	if ok {
		return cb
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if cb, ok = r.breakers[name]; ok {
		return cb
	}

	settings := gobreaker.Settings{
		Name:         name,
		MaxRequests:  r.config.MaxRequests,
		Interval:     r.config.Interval,
		Timeout:      r.config.Timeout,
		IsSuccessful: r.isSuccessful,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < r.config.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= r.config.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			r.logger.Warn("circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
			r.metrics.SetBreakerState(name, stateToInt(to))
		},
	}
	cb = gobreaker.NewCircuitBreaker[any](settings)
	r.breakers[name] = cb
	return cb
}

// Execute runs fn through the named breaker. Rejections are wrapped in ErrOpen.
func (r *Registry) Execute(ctx context.Context, name string, fn func() (any, error)) (any, error) {
	result, err := r.Get(name).Execute(func() (any, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%s: %w", name, ErrOpen)
	}
	return result, err
}

// State returns the current state name of every known breaker.
func (r *Registry) State() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]string, len(r.breakers))
	for name, cb := range r.breakers {
		out[name] = cb.State().String()
	}
	return out
}

// Call is a typed wrapper around Registry.Execute.
func Call[T any](ctx context.Context, r *Registry, name string, fn func() (T, error)) (T, error) {
	var zero T
	if r == nil {
		return fn()
	}
	res, err := r.Execute(ctx, name, func() (any, error) { return fn() })
	v, ok := res.(T)
	if !ok {
		return zero, err
	}
	return v, err
}

// 0=closed, 1=half-open, 2=open
func stateToInt(state gobreaker.State) int {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
