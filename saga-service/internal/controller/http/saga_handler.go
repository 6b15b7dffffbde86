package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	apperrors "github.com/director74/order-saga/pkg/errors"
	"github.com/director74/order-saga/saga-service/internal/usecase"
)

// SagaHandler HTTP-обработчик для просмотра состояния саг
type SagaHandler struct {
	orchestrator *usecase.Orchestrator
}

// NewSagaHandler создает обработчик состояния саг
func NewSagaHandler(orchestrator *usecase.Orchestrator) *SagaHandler {
	return &SagaHandler{orchestrator: orchestrator}
}

// RegisterRoutes регистрирует маршруты API
func (h *SagaHandler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api/v1")
	{
		api.GET("/sagas/:correlation_id", h.GetSaga)
	}
	router.GET("/health", h.HealthCheck)
}

// GetSaga возвращает текущее состояние экземпляра саги
func (h *SagaHandler) GetSaga(c *gin.Context) {
	correlationID := c.Param("correlation_id")
	if correlationID == "" {
		apperrors.HandleGinError(c, apperrors.NewBadRequestError("не указан идентификатор корреляции"))
		return
	}

	inst, err := h.orchestrator.GetInstance(c.Request.Context(), correlationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			apperrors.HandleGinError(c, apperrors.NewNotFoundError("Сага", correlationID))
			return
		}
		apperrors.HandleGinError(c, apperrors.NewInternalServerError(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"correlation_id":     inst.CorrelationID,
		"current_state":      inst.CurrentState,
		"order_id":           inst.OrderID,
		"customer_id":        inst.CustomerID,
		"total_amount":       inst.TotalAmount,
		"customer_validated": inst.CustomerValidated,
		"stock_reserved":     inst.StockReserved,
		"failure_reason":     inst.FailureReason,
		"completed_at":       inst.CompletedAt,
		"failed_at":          inst.FailedAt,
		"version":            inst.Version,
		"updated_at":         inst.UpdatedAt,
	})
}

// HealthCheck проверка работоспособности сервиса
func (h *SagaHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
