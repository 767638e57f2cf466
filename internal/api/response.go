// Package api はHTTPレスポンスで共有される型を提供します。
package api

// ErrorResponse はすべてのエンドポイントが返すエラーボディです。
type ErrorResponse struct {
	Error string `json:"error"`
}
