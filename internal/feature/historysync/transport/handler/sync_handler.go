// Package handler はhistorysyncフィーチャーのHTTPハンドラーを提供します。
package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"price_engine/internal/api"
	"price_engine/internal/feature/prices/domain"
	"price_engine/internal/feature/historysync/usecase"
)

// SyncUsecase は履歴同期のユースケースです。
type SyncUsecase interface {
	Run(ctx context.Context) (*usecase.RunSummary, error)
}

// SyncHandler は履歴同期の手動実行リクエストを処理します。
type SyncHandler struct {
	uc SyncUsecase
}

// NewSyncHandler はSyncHandlerを生成します。
func NewSyncHandler(uc SyncUsecase) *SyncHandler {
	return &SyncHandler{uc: uc}
}

// RunHistorical は POST /sync/historical を処理し、実行サマリーを返します。
func (h *SyncHandler) RunHistorical(c *gin.Context) {
	sum, err := h.uc.Run(c.Request.Context())
	if errors.Is(err, domain.ErrJobInProgress) {
		c.JSON(http.StatusConflict, api.ErrorResponse{Error: err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, sum)
}
