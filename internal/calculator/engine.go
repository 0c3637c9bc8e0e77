// Package calculator holds the indicator engine: pure, causal numeric
// transforms over an ordered price series.
package calculator

import (
	"errors"
	"fmt"

	"OpportunityScanner/internal/model"
)

// ErrUnknownEngine is returned by NewEngine for an unregistered engine name.
var ErrUnknownEngine = errors.New("unknown indicator engine")

// Engine turns a Series into an IndicatorFrame.
type Engine interface {
	Name() string
	Compute(series model.Series) (*model.IndicatorFrame, error)
}

// Params configures indicator periods.
type Params struct {
	RSIPeriod  int `yaml:"rsi_period"`
	StochK     int `yaml:"stoch_k"`
	StochD     int `yaml:"stoch_d"`
	SMAPeriod  int `yaml:"sma_period"`
	EMAPeriod  int `yaml:"ema_period"`
	MACDFast   int `yaml:"macd_fast"`
	MACDSlow   int `yaml:"macd_slow"`
	MACDSignal int `yaml:"macd_signal"`
}

// DefaultParams are RSI 14, stochastic 14/3, SMA/EMA 20 and MACD 12/26/9.
var DefaultParams = Params{
	RSIPeriod:  14,
	StochK:     14,
	StochD:     3,
	SMAPeriod:  20,
	EMAPeriod:  20,
	MACDFast:   12,
	MACDSlow:   26,
	MACDSignal: 9,
}

// WithDefaults fills zero periods from DefaultParams.
func (p Params) WithDefaults() Params {
	fill := func(v *int, def int) {
		if *v == 0 {
			*v = def
		}
	}
	fill(&p.RSIPeriod, DefaultParams.RSIPeriod)
	fill(&p.StochK, DefaultParams.StochK)
	fill(&p.StochD, DefaultParams.StochD)
	fill(&p.SMAPeriod, DefaultParams.SMAPeriod)
	fill(&p.EMAPeriod, DefaultParams.EMAPeriod)
	fill(&p.MACDFast, DefaultParams.MACDFast)
	fill(&p.MACDSlow, DefaultParams.MACDSlow)
	fill(&p.MACDSignal, DefaultParams.MACDSignal)
	return p
}

// Validate checks that all periods are positive and MACD fast < slow.
func (p Params) Validate() error {
	periods := map[string]int{
		"rsi_period":  p.RSIPeriod,
		"stoch_k":     p.StochK,
		"stoch_d":     p.StochD,
		"sma_period":  p.SMAPeriod,
		"ema_period":  p.EMAPeriod,
		"macd_fast":   p.MACDFast,
		"macd_slow":   p.MACDSlow,
		"macd_signal": p.MACDSignal,
	}
	for name, v := range periods {
		if v <= 0 {
			return fmt.Errorf("indicator %s must be positive, got %d", name, v)
		}
	}
	if p.MACDFast >= p.MACDSlow {
		return fmt.Errorf("macd_fast (%d) must be less than macd_slow (%d)", p.MACDFast, p.MACDSlow)
	}
	return nil
}

// WarmUp is the number of bars needed before RSI and both stochastic lines are defined.
func (p Params) WarmUp() int {
	n := p.RSIPeriod + 1
	if s := p.StochK + p.StochD - 1; s > n {
		n = s
	}
	return n
}

// NewEngine returns the engine registered under name. An empty name selects "native".
func NewEngine(name string, params Params) (Engine, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	switch name {
	case "", "native":
		return &NativeEngine{params: params}, nil
	case "talib":
		return &TalibEngine{params: params}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEngine, name)
	}
}

// NativeEngine computes every indicator in-process with simple rolling means.
type NativeEngine struct {
	params Params
}

func (e *NativeEngine) Name() string { return "native" }

func (e *NativeEngine) Compute(series model.Series) (*model.IndicatorFrame, error) {
	if series.Len() == 0 {
		return nil, errors.New("empty series")
	}
	closes := series.Closes()
	k := CalculateStochK(series.Highs(), series.Lows(), closes, e.params.StochK)
	macd, signal, hist := CalculateMACD(closes, e.params.MACDFast, e.params.MACDSlow, e.params.MACDSignal)

	return &model.IndicatorFrame{
		Series:     series,
		RSI:        CalculateRSI(closes, e.params.RSIPeriod),
		StochK:     k,
		StochD:     CalculateStochD(k, e.params.StochD),
		SMA:        CalculateSMA(closes, e.params.SMAPeriod),
		EMA:        CalculateEMA(closes, e.params.EMAPeriod),
		MACD:       macd,
		MACDSignal: signal,
		MACDHist:   hist,
	}, nil
}
