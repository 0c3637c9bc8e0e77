package strategy

import (
	"errors"
	"fmt"
	"strings"

	"OpportunityScanner/internal/model"
)

// ErrInvalidMode is returned for a scan mode outside overbought, oversold and both.
var ErrInvalidMode = errors.New("invalid scan mode")

// Mode narrows which statuses a scan reports.
type Mode string

const (
	ModeOverbought Mode = "overbought"
	ModeOversold   Mode = "oversold"
	ModeBoth       Mode = "both"
)

// ParseMode accepts overbought, oversold or both (case-insensitive). An empty
// string means both.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ModeBoth, nil
	case ModeOverbought, ModeOversold, ModeBoth:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q (want overbought, oversold or both)", ErrInvalidMode, s)
	}
}

// Allows reports whether a ticker classified as s belongs in the results.
// StatusNone is never allowed. ModeBoth keeps every flagged status,
// including the near_support and near_resistance ones.
func (m Mode) Allows(s model.Status) bool {
	if s == model.StatusNone || s == "" {
		return false
	}
	switch m {
	case ModeOverbought:
		return s == model.StatusOverbought
	case ModeOversold:
		return s == model.StatusOversold
	default:
		return true
	}
}
