package model

import "encoding/json"

// TickerMeta is the static metadata the catalog holds for a ticker.
type TickerMeta struct {
	Ticker     string `json:"ticker"`
	Name       string `json:"name,omitempty"`
	Sector     string `json:"sector,omitempty"`
	MarketCap  int64  `json:"market_cap,omitempty"`
	HasOptions bool   `json:"has_options"`
}

// UnmarshalJSON accepts the older "options" key as an alias of "has_options".
func (t *TickerMeta) UnmarshalJSON(data []byte) error {
	var raw struct {
		Ticker     string  `json:"ticker"`
		Name       *string `json:"name"`
		Sector     *string `json:"sector"`
		MarketCap  *int64  `json:"market_cap"`
		HasOptions *bool   `json:"has_options"`
		Options    *bool   `json:"options"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*t = TickerMeta{Ticker: raw.Ticker}
	if raw.Name != nil {
		t.Name = *raw.Name
	}
	if raw.Sector != nil {
		t.Sector = *raw.Sector
	}
	if raw.MarketCap != nil {
		t.MarketCap = *raw.MarketCap
	}
	switch {
	case raw.HasOptions != nil:
		t.HasOptions = *raw.HasOptions
	case raw.Options != nil:
		t.HasOptions = *raw.Options
	}
	return nil
}
