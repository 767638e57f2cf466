// Package dto はvaluationフィーチャーのHTTPリクエスト型を定義します。
package dto

// HoldingRequest は評価対象の1ポジションです。
type HoldingRequest struct {
	Symbol   string  `json:"symbol" binding:"required"`
	Units    float64 `json:"units"`
	Currency string  `json:"currency"`
}

// ValuationRequest はポートフォリオ評価のリクエストボディです。
type ValuationRequest struct {
	BaseCurrency string           `json:"base_currency"`
	Holdings     []HoldingRequest `json:"holdings" binding:"required,dive"`
}
