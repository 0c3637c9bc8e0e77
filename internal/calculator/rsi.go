package calculator

import "OpportunityScanner/internal/model"

// CalculateRSI computes RSI from a simple rolling mean of gains and losses over
// `period` bar-to-bar deltas. The first `period` bars are absent.
// A window with no losses is 100, a window with no movement at all is 50.
func CalculateRSI(closes []float64, period int) []model.NullFloat {
	out := make([]model.NullFloat, len(closes))
	if period <= 0 || len(closes) <= period {
		return out
	}

	gains := make([]float64, len(closes))
	losses := make([]float64, len(closes))
	for i := 1; i < len(closes); i++ {
		delta := closes[i] - closes[i-1]
		if delta > 0 {
			gains[i] = delta
		} else {
			losses[i] = -delta
		}
	}

	var sumGain, sumLoss float64
	for i := 1; i < len(closes); i++ {
		sumGain += gains[i]
		sumLoss += losses[i]
		if i > period {
			sumGain -= gains[i-period]
			sumLoss -= losses[i-period]
		}
		if i < period {
			continue
		}
		avgGain := clampZero(sumGain) / float64(period)
		avgLoss := clampZero(sumLoss) / float64(period)
		out[i] = model.Some(rsiFromAverages(avgGain, avgLoss))
	}
	return out
}

func rsiFromAverages(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		if avgGain == 0 {
			return 50
		}
		return 100
	}
	rs := avgGain / avgLoss
	return clampPercent(100 - 100/(1+rs))
}

// clampZero absorbs float drift from the running sums.
func clampZero(v float64) float64 {
	if v < 1e-12 {
		return 0
	}
	return v
}

func clampPercent(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
