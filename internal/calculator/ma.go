package calculator

import "OpportunityScanner/internal/model"

// CalculateSMA computes the simple moving average; the first period-1 values are absent.
func CalculateSMA(values []float64, period int) []model.NullFloat {
	out := make([]model.NullFloat, len(values))
	if period <= 0 {
		return out
	}
	sum := 0.0
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		if i >= period-1 {
			out[i] = model.Some(sum / float64(period))
		}
	}
	return out
}

// CalculateEMA computes the exponential moving average with alpha 2/(period+1),
// seeded by the first value, without bias adjustment.
func CalculateEMA(values []float64, period int) []model.NullFloat {
	out := make([]model.NullFloat, len(values))
	if period <= 0 || len(values) == 0 {
		return out
	}
	alpha := 2.0 / float64(period+1)
	ema := values[0]
	out[0] = model.Some(ema)
	for i := 1; i < len(values); i++ {
		ema = alpha*values[i] + (1-alpha)*ema
		out[i] = model.Some(ema)
	}
	return out
}

// CalculateMACD returns the MACD line (EMA fast - EMA slow), its EMA signal line and the histogram.
func CalculateMACD(closes []float64, fast, slow, signal int) (macd, sig, hist []model.NullFloat) {
	emaFast := CalculateEMA(closes, fast)
	emaSlow := CalculateEMA(closes, slow)

	macd = make([]model.NullFloat, len(closes))
	line := make([]float64, len(closes))
	for i := range closes {
		if emaFast[i].Valid && emaSlow[i].Valid {
			line[i] = emaFast[i].Float64 - emaSlow[i].Float64
			macd[i] = model.Some(line[i])
		}
	}

	sig = CalculateEMA(line, signal)
	hist = make([]model.NullFloat, len(closes))
	for i := range closes {
		if macd[i].Valid && sig[i].Valid {
			hist[i] = model.Some(macd[i].Float64 - sig[i].Float64)
		}
	}
	return macd, sig, hist
}
