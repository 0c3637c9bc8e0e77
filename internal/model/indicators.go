package model

// NullFloat is a float that may be absent, e.g. during an indicator warm-up.
type NullFloat struct {
	Float64 float64
	Valid   bool
}

// Some wraps a present value.
func Some(v float64) NullFloat { return NullFloat{Float64: v, Valid: true} }

// Levels are the support/resistance band over a lookback window.
type Levels struct {
	Support    float64 `json:"support"`
	Resistance float64 `json:"resistance"`
}

// IndicatorFrame is a Series extended with derived columns aligned by index.
type IndicatorFrame struct {
	Series     Series
	RSI        []NullFloat
	StochK     []NullFloat
	StochD     []NullFloat
	SMA        []NullFloat
	EMA        []NullFloat
	MACD       []NullFloat
	MACDSignal []NullFloat
	MACDHist   []NullFloat
}

// IndicatorRow is the set of derived values for one bar.
type IndicatorRow struct {
	Bar        Bar
	RSI        NullFloat
	StochK     NullFloat
	StochD     NullFloat
	SMA        NullFloat
	EMA        NullFloat
	MACD       NullFloat
	MACDSignal NullFloat
	MACDHist   NullFloat
}

// Row returns the derived values at index i.
func (f *IndicatorFrame) Row(i int) IndicatorRow {
	return IndicatorRow{
		Bar:        f.Series.Bars[i],
		RSI:        at(f.RSI, i),
		StochK:     at(f.StochK, i),
		StochD:     at(f.StochD, i),
		SMA:        at(f.SMA, i),
		EMA:        at(f.EMA, i),
		MACD:       at(f.MACD, i),
		MACDSignal: at(f.MACDSignal, i),
		MACDHist:   at(f.MACDHist, i),
	}
}

// Last returns the row of the most recent bar. ok is false for an empty frame.
func (f *IndicatorFrame) Last() (IndicatorRow, bool) {
	n := f.Series.Len()
	if n == 0 {
		return IndicatorRow{}, false
	}
	return f.Row(n - 1), true
}

func at(col []NullFloat, i int) NullFloat {
	if i < 0 || i >= len(col) {
		return NullFloat{}
	}
	return col[i]
}
