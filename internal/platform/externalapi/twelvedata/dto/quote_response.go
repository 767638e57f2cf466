package dto

// QuoteResponse represents the JSON response from the Twelve Data quote endpoint.
// Numeric fields are strings on the wire.
type QuoteResponse struct {
	ErrorFields
	Symbol        string `json:"symbol"`
	Name          string `json:"name"`
	Currency      string `json:"currency"`
	Datetime      string `json:"datetime"`
	Timestamp     int64  `json:"timestamp"`
	Close         string `json:"close"`
	PercentChange string `json:"percent_change"`
	IsMarketOpen  bool   `json:"is_market_open"`
}
