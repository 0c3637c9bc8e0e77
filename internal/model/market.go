package model

import (
	"sort"
	"time"
)

// Bar is a single daily (or intraday) OHLCV observation for one ticker.
type Bar struct {
	Time   time.Time `json:"timestamp"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Series holds the bars of one ticker, strictly increasing by Time.
type Series struct {
	Ticker string
	Bars   []Bar
}

// NewSeries builds a Series from bars in any order, collapsing duplicate timestamps.
func NewSeries(ticker string, bars []Bar) Series {
	return Series{Ticker: ticker, Bars: Dedupe(bars)}
}

// Len returns the number of bars.
func (s Series) Len() int { return len(s.Bars) }

// Last returns the most recent bar. ok is false for an empty series.
func (s Series) Last() (Bar, bool) {
	if len(s.Bars) == 0 {
		return Bar{}, false
	}
	return s.Bars[len(s.Bars)-1], true
}

// Closes extracts the close column.
func (s Series) Closes() []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.Close
	}
	return out
}

// Highs extracts the high column.
func (s Series) Highs() []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.High
	}
	return out
}

// Lows extracts the low column.
func (s Series) Lows() []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.Low
	}
	return out
}

// Dedupe sorts bars by time and keeps the last occurrence of each timestamp,
// so a later insert of the same timestamp wins.
func Dedupe(bars []Bar) []Bar {
	if len(bars) == 0 {
		return nil
	}
	latest := make(map[int64]int, len(bars))
	for i, b := range bars {
		latest[b.Time.Unix()] = i
	}
	out := make([]Bar, 0, len(latest))
	for _, idx := range latest {
		out = append(out, bars[idx])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	return out
}
