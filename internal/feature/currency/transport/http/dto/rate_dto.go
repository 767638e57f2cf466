// Package dto はcurrencyフィーチャーのHTTPリクエスト/レスポンス型を定義します。
package dto

// PairRequest は1つの通貨ペアです。
type PairRequest struct {
	From string `json:"from" binding:"required"`
	To   string `json:"to" binding:"required"`
}

// BatchRatesRequest は複数ペアのレート取得リクエストです。
type BatchRatesRequest struct {
	Pairs []PairRequest `json:"pairs" binding:"required,min=1,dive"`
}

// RateResponse は単一ペアのレートです。
type RateResponse struct {
	From string  `json:"from"`
	To   string  `json:"to"`
	Rate float64 `json:"rate"`
}
