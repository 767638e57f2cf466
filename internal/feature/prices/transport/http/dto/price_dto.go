// Package dto はpricesフィーチャーのHTTPリクエスト/レスポンス型を定義します。
package dto

// SymbolsRequest は複数シンボルを受け取るリクエストボディです。
type SymbolsRequest struct {
	Symbols []string `json:"symbols" binding:"required,min=1"`
}

// PriceResponse は単一シンボルの現在価格です。
type PriceResponse struct {
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	Currency  string  `json:"currency"`
	Market    string  `json:"market"`
	Date      string  `json:"date"`
	FetchedAt string  `json:"fetched_at"`
}

// DailyPriceResponse は履歴の1日分の終値です。
type DailyPriceResponse struct {
	Date  string  `json:"date"`
	Price float64 `json:"price"`
}

// TrackResponse はシンボルごとの追跡登録結果です。
type TrackResponse struct {
	Results map[string]string `json:"results"`
}
