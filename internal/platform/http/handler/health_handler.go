// Package handler はプラットフォームレベルのエンドポイント用HTTPハンドラーを提供します。
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Check は依存先の疎通確認です。nil を返せば正常です。
type Check func(ctx context.Context) error

// HealthHandler は /healthz を処理します。必須の依存先が落ちていれば 503 を返し、
// 任意の依存先の障害は degraded として報告するだけです。
type HealthHandler struct {
	required  map[string]Check
	optional  map[string]Check
	cacheSize func() int
	timeout   time.Duration
}

// NewHealthHandler はHealthHandlerを生成します。cacheSize は nil でも構いません。
func NewHealthHandler(required, optional map[string]Check, cacheSize func() int) *HealthHandler {
	return &HealthHandler{required: required, optional: optional, cacheSize: cacheSize, timeout: 2 * time.Second}
}

// Health はHTTPメソッドに応じてレスポンスし、キャッシュを防止します。
func (h *HealthHandler) Health(c *gin.Context) {
	// 明示的にキャッシュを防止
	c.Header("Cache-Control", "no-store")

	if c.Request.Method == http.MethodOptions {
		c.Status(http.StatusNoContent)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	status, code := "ok", http.StatusOK
	checks := map[string]string{}
	for name, check := range h.required {
		if err := check(ctx); err != nil {
			checks[name] = err.Error()
			status, code = "unavailable", http.StatusServiceUnavailable
		} else {
			checks[name] = "ok"
		}
	}
	for name, check := range h.optional {
		if err := check(ctx); err != nil {
			checks[name] = err.Error()
			if code == http.StatusOK {
				status = "degraded"
			}
		} else {
			checks[name] = "ok"
		}
	}

	if c.Request.Method == http.MethodHead {
		c.Status(code)
		return
	}
	body := gin.H{"status": status, "checks": checks}
	if h.cacheSize != nil {
		body["live_cache_entries"] = h.cacheSize()
	}
	c.JSON(code, body)
}
