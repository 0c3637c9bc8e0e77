package calculator

import (
	"math"

	"OpportunityScanner/internal/model"
)

// CalculateSupportResistance scans the most recent `lookback` bars and returns
// the lowest low as support and the highest high as resistance. A lookback
// longer than the series is clamped to all bars; an empty series yields zero levels.
func CalculateSupportResistance(bars []model.Bar, lookback int) model.Levels {
	n := len(bars)
	if n == 0 || lookback <= 0 {
		return model.Levels{}
	}
	start := n - lookback
	if start < 0 {
		start = 0
	}
	high := math.Inf(-1)
	low := math.Inf(1)
	for i := start; i < n; i++ {
		if bars[i].High > high {
			high = bars[i].High
		}
		if bars[i].Low < low {
			low = bars[i].Low
		}
	}
	return model.Levels{Support: low, Resistance: high}
}
