package calculator

import "OpportunityScanner/internal/model"

// CalculateStochK computes the fast stochastic %K over a window of `period` bars
// ending at each index. A flat window (high == low) is 50.
func CalculateStochK(highs, lows, closes []float64, period int) []model.NullFloat {
	n := len(closes)
	out := make([]model.NullFloat, n)
	if period <= 0 || len(highs) != n || len(lows) != n {
		return out
	}
	for i := period - 1; i < n; i++ {
		hh, ll := highs[i], lows[i]
		for j := i - period + 1; j < i; j++ {
			if highs[j] > hh {
				hh = highs[j]
			}
			if lows[j] < ll {
				ll = lows[j]
			}
		}
		rng := hh - ll
		if rng == 0 {
			out[i] = model.Some(50)
			continue
		}
		out[i] = model.Some(clampPercent(100 * (closes[i] - ll) / rng))
	}
	return out
}

// CalculateStochD is the simple rolling mean of %K over `period` bars. It stays
// absent until `period` consecutive %K values exist.
func CalculateStochD(k []model.NullFloat, period int) []model.NullFloat {
	return rollingMean(k, period)
}

func rollingMean(values []model.NullFloat, period int) []model.NullFloat {
	out := make([]model.NullFloat, len(values))
	if period <= 0 {
		return out
	}
	for i := period - 1; i < len(values); i++ {
		sum := 0.0
		full := true
		for j := i - period + 1; j <= i; j++ {
			if !values[j].Valid {
				full = false
				break
			}
			sum += values[j].Float64
		}
		if full {
			out[i] = model.Some(sum / float64(period))
		}
	}
	return out
}
