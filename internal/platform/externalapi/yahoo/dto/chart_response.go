// Package dto defines data transfer objects for the Yahoo chart API.
package dto

// ChartResponse is the envelope of /v8/finance/chart/{symbol}.
type ChartResponse struct {
	Chart struct {
		Result []ChartResult `json:"result"`
		Error  *ChartError   `json:"error"`
	} `json:"chart"`
}

// ChartError is set when the symbol is unknown or the range has no data.
type ChartError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// TradingPeriod is one session window in unix seconds.
type TradingPeriod struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

// ChartResult carries metadata and the bar series of one symbol.
type ChartResult struct {
	Meta struct {
		Currency             string  `json:"currency"`
		Symbol               string  `json:"symbol"`
		ExchangeName         string  `json:"exchangeName"`
		RegularMarketPrice   float64 `json:"regularMarketPrice"`
		RegularMarketTime    int64   `json:"regularMarketTime"`
		ChartPreviousClose   float64 `json:"chartPreviousClose"`
		GMTOffset            int     `json:"gmtoffset"`
		ExchangeTimezoneName string  `json:"exchangeTimezoneName"`
		CurrentTradingPeriod struct {
			Regular TradingPeriod `json:"regular"`
		} `json:"currentTradingPeriod"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			// Close entries are null for bars without trades
			Close []*float64 `json:"close"`
		} `json:"quote"`
	} `json:"indicators"`
}
