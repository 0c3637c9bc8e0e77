// Package strategy classifies the latest bar of an indicator frame against
// an ordered table of threshold rules.
package strategy

import (
	"fmt"
	"math"

	"OpportunityScanner/internal/model"
)

// Thresholds are the classification cut-offs. Zero values are replaced by DefaultThresholds.
type Thresholds struct {
	RSIOverbought   float64 `yaml:"rsi_overbought"`
	RSIOversold     float64 `yaml:"rsi_oversold"`
	StochOverbought float64 `yaml:"stoch_overbought"`
	StochOversold   float64 `yaml:"stoch_oversold"`
	// Proximity is the relative distance from a level that counts as "near".
	Proximity float64 `yaml:"proximity"`
}

var DefaultThresholds = Thresholds{
	RSIOverbought:   70,
	RSIOversold:     30,
	StochOverbought: 80,
	StochOversold:   20,
	Proximity:       0.02,
}

// WithDefaults returns DefaultThresholds for the zero value. Any other value
// is kept as given, so an explicit 0 (e.g. stoch_oversold: 0) stays 0.
func (t Thresholds) WithDefaults() Thresholds {
	if t == (Thresholds{}) {
		return DefaultThresholds
	}
	return t
}

func (t Thresholds) Validate() error {
	if t.RSIOversold >= t.RSIOverbought {
		return fmt.Errorf("rsi_oversold (%.1f) must be below rsi_overbought (%.1f)", t.RSIOversold, t.RSIOverbought)
	}
	if t.StochOversold >= t.StochOverbought {
		return fmt.Errorf("stoch_oversold (%.1f) must be below stoch_overbought (%.1f)", t.StochOversold, t.StochOverbought)
	}
	if t.Proximity <= 0 || t.Proximity >= 1 {
		return fmt.Errorf("proximity must be in (0, 1), got %.4f", t.Proximity)
	}
	return nil
}

// Inputs are the latest-bar values a rule looks at.
type Inputs struct {
	Price  float64
	RSI    float64
	StochK float64
	StochD float64
	Levels model.Levels
}

// Rules is the ordered classification table. The first matching rule wins.
var Rules = []struct {
	Status model.Status
	Match  func(in Inputs, th Thresholds) bool
}{
	{model.StatusOverbought, func(in Inputs, th Thresholds) bool {
		return in.RSI >= th.RSIOverbought && in.StochK >= th.StochOverbought && in.StochD >= th.StochOverbought
	}},
	{model.StatusOversold, func(in Inputs, th Thresholds) bool {
		return in.RSI <= th.RSIOversold && in.StochK <= th.StochOversold && in.StochD <= th.StochOversold
	}},
	{model.StatusNearSupport, func(in Inputs, th Thresholds) bool {
		return near(in.Price, in.Levels.Support, th.Proximity)
	}},
	{model.StatusNearResistance, func(in Inputs, th Thresholds) bool {
		return near(in.Price, in.Levels.Resistance, th.Proximity)
	}},
}

// Classify maps the inputs to a status. Missing levels (support and
// resistance both 0) are treated as no data and yield StatusNone.
func Classify(in Inputs, th Thresholds) model.Status {
	if in.Levels.Support == 0 && in.Levels.Resistance == 0 {
		return model.StatusNone
	}
	for _, r := range Rules {
		if r.Match(in, th) {
			return r.Status
		}
	}
	return model.StatusNone
}

// FromRow extracts rule inputs from an indicator row. ok is false when any of
// RSI, %K or %D is absent on that row.
func FromRow(row model.IndicatorRow, levels model.Levels) (Inputs, bool) {
	if !row.RSI.Valid || !row.StochK.Valid || !row.StochD.Valid {
		return Inputs{}, false
	}
	return Inputs{
		Price:  row.Bar.Close,
		RSI:    row.RSI.Float64,
		StochK: row.StochK.Float64,
		StochD: row.StochD.Float64,
		Levels: levels,
	}, true
}

func near(price, level, proximity float64) bool {
	if price <= 0 {
		return false
	}
	return math.Abs(price-level)/price < proximity
}
