package calculator

import (
	"errors"

	"OpportunityScanner/internal/model"

	"github.com/markcheno/go-talib"
)

// TalibEngine delegates SMA, EMA and MACD to go-talib. TA-Lib seeds EMA with
// an SMA, so EMA and MACD differ from NativeEngine during the first few hundred
// bars. RSI and the stochastic lines come from the native functions: TA-Lib's
// Wilder RSI reports 0 for a window with no movement, where 50 is required.
type TalibEngine struct {
	params Params
}

func (e *TalibEngine) Name() string { return "talib" }

func (e *TalibEngine) Compute(series model.Series) (*model.IndicatorFrame, error) {
	if series.Len() == 0 {
		return nil, errors.New("empty series")
	}
	closes := series.Closes()
	n := len(closes)
	p := e.params

	frame := &model.IndicatorFrame{
		Series:     series,
		SMA:        make([]model.NullFloat, n),
		EMA:        make([]model.NullFloat, n),
		MACD:       make([]model.NullFloat, n),
		MACDSignal: make([]model.NullFloat, n),
		MACDHist:   make([]model.NullFloat, n),
	}

	if n >= p.SMAPeriod {
		frame.SMA = fromTalib(talib.Sma(closes, p.SMAPeriod), p.SMAPeriod-1)
	}
	if n >= p.EMAPeriod {
		frame.EMA = fromTalib(talib.Ema(closes, p.EMAPeriod), p.EMAPeriod-1)
	}
	macdLookback := p.MACDSlow - 1 + p.MACDSignal - 1
	if n > macdLookback {
		macd, signal, hist := talib.Macd(closes, p.MACDFast, p.MACDSlow, p.MACDSignal)
		frame.MACD = fromTalib(macd, macdLookback)
		frame.MACDSignal = fromTalib(signal, macdLookback)
		frame.MACDHist = fromTalib(hist, macdLookback)
	}

	frame.RSI = CalculateRSI(closes, p.RSIPeriod)
	frame.StochK = CalculateStochK(series.Highs(), series.Lows(), closes, p.StochK)
	frame.StochD = CalculateStochD(frame.StochK, p.StochD)
	return frame, nil
}

// fromTalib marks TA-Lib's zero-filled lookback prefix as absent.
func fromTalib(values []float64, lookback int) []model.NullFloat {
	out := make([]model.NullFloat, len(values))
	for i := lookback; i < len(values); i++ {
		out[i] = model.Some(values[i])
	}
	return out
}
