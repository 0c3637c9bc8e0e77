package strategy

import (
	"errors"
	"testing"

	"OpportunityScanner/internal/model"
)

func TestClassify_Table(t *testing.T) {
	th := DefaultThresholds
	cases := []struct {
		name string
		in   Inputs
		want model.Status
	}{
		{
			name: "overbought",
			in:   Inputs{Price: 100, RSI: 75, StochK: 85, StochD: 82, Levels: model.Levels{Support: 80, Resistance: 120}},
			want: model.StatusOverbought,
		},
		{
			name: "oversold",
			in:   Inputs{Price: 100, RSI: 25, StochK: 10, StochD: 15, Levels: model.Levels{Support: 80, Resistance: 120}},
			want: model.StatusOversold,
		},
		{
			name: "near support",
			in:   Inputs{Price: 100, RSI: 45, StochK: 40, StochD: 40, Levels: model.Levels{Support: 99, Resistance: 120}},
			want: model.StatusNearSupport,
		},
		{
			name: "near resistance",
			in:   Inputs{Price: 100, RSI: 55, StochK: 60, StochD: 60, Levels: model.Levels{Support: 80, Resistance: 101.5}},
			want: model.StatusNearResistance,
		},
		{
			name: "exactly two percent is not near",
			in:   Inputs{Price: 100, RSI: 50, StochK: 50, StochD: 50, Levels: model.Levels{Support: 98, Resistance: 102}},
			want: model.StatusNone,
		},
		{
			name: "oversold requires all three",
			in:   Inputs{Price: 100, RSI: 25, StochK: 10, StochD: 25, Levels: model.Levels{Support: 80, Resistance: 120}},
			want: model.StatusNone,
		},
		{
			name: "no levels means no data",
			in:   Inputs{Price: 100, RSI: 90, StochK: 95, StochD: 95},
			want: model.StatusNone,
		},
		{
			name: "boundaries are inclusive",
			in:   Inputs{Price: 100, RSI: 70, StochK: 80, StochD: 80, Levels: model.Levels{Support: 50, Resistance: 150}},
			want: model.StatusOverbought,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Classify(tc.in, th); got != tc.want {
				t.Errorf("Classify() = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestClassify_OverboughtBeatsNearResistance(t *testing.T) {
	in := Inputs{Price: 100, RSI: 75, StochK: 85, StochD: 85, Levels: model.Levels{Support: 90, Resistance: 100.5}}
	if got := Classify(in, DefaultThresholds); got != model.StatusOverbought {
		t.Errorf("expected overbought to win over near_resistance, got %s", got)
	}
}

func TestFromRow_AbsentFields(t *testing.T) {
	row := model.IndicatorRow{
		Bar:    model.Bar{Close: 50},
		RSI:    model.Some(40),
		StochK: model.Some(30),
	}
	if _, ok := FromRow(row, model.Levels{Support: 1, Resistance: 2}); ok {
		t.Error("expected ok=false when %D is absent")
	}
	row.StochD = model.Some(35)
	in, ok := FromRow(row, model.Levels{Support: 1, Resistance: 2})
	if !ok || in.Price != 50 || in.StochD != 35 {
		t.Errorf("FromRow() = %+v, %v", in, ok)
	}
}

func TestParseMode(t *testing.T) {
	for _, s := range []string{"overbought", "OVERSOLD", "both", ""} {
		if _, err := ParseMode(s); err != nil {
			t.Errorf("ParseMode(%q): %v", s, err)
		}
	}
	if _, err := ParseMode("sideways"); !errors.Is(err, ErrInvalidMode) {
		t.Errorf("expected ErrInvalidMode, got %v", err)
	}
}

func TestMode_Allows(t *testing.T) {
	if ModeOverbought.Allows(model.StatusOversold) {
		t.Error("overbought mode should drop oversold")
	}
	if !ModeOversold.Allows(model.StatusOversold) {
		t.Error("oversold mode should keep oversold")
	}
	if !ModeBoth.Allows(model.StatusNearSupport) {
		t.Error("both mode should keep near_support")
	}
	if ModeBoth.Allows(model.StatusNone) {
		t.Error("none is never reported")
	}
}

func TestThresholds_Validate(t *testing.T) {
	if err := DefaultThresholds.Validate(); err != nil {
		t.Fatalf("defaults: %v", err)
	}
	bad := DefaultThresholds
	bad.RSIOversold = 80
	if err := bad.Validate(); err == nil {
		t.Error("expected error when oversold >= overbought")
	}
	if got := (Thresholds{}).WithDefaults(); got != DefaultThresholds {
		t.Errorf("WithDefaults() = %+v", got)
	}
	explicit := Thresholds{RSIOverbought: 70, RSIOversold: 0, StochOverbought: 80, StochOversold: 0, Proximity: 0.02}
	if got := explicit.WithDefaults(); got != explicit {
		t.Errorf("explicit zeros replaced: %+v", got)
	}
}
