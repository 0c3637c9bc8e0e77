package model

// Status is the classification assigned to a ticker by one scan.
type Status string

const (
	StatusOverbought     Status = "overbought"
	StatusOversold       Status = "oversold"
	StatusNearSupport    Status = "near_support"
	StatusNearResistance Status = "near_resistance"
	StatusNone           Status = "none"
)

// OpportunityRecord is one flagged ticker. Records are created per scan and never mutated.
type OpportunityRecord struct {
	Ticker     string  `json:"ticker"`
	Price      float64 `json:"price"`
	RSI        float64 `json:"rsi"`
	StochK     float64 `json:"stoch_k"`
	StochD     float64 `json:"stoch_d"`
	Support    float64 `json:"support"`
	Resistance float64 `json:"resistance"`
	Status     Status  `json:"status"`
	Volume     float64 `json:"volume"`
	Sector     string  `json:"sector,omitempty"`
}
