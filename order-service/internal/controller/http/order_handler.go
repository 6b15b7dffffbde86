package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/director74/order-saga/order-service/internal/entity"
	"github.com/director74/order-saga/order-service/internal/usecase"
	"github.com/director74/order-saga/pkg/auth"
	apperrors "github.com/director74/order-saga/pkg/errors"
)

// OrderHandler HTTP-обработчик операций над заказами
type OrderHandler struct {
	orderUseCase   *usecase.OrderUseCase
	authMiddleware *auth.AuthMiddleware
}

// NewOrderHandler создает обработчик заказов
func NewOrderHandler(orderUseCase *usecase.OrderUseCase, authMiddleware *auth.AuthMiddleware) *OrderHandler {
	return &OrderHandler{
		orderUseCase:   orderUseCase,
		authMiddleware: authMiddleware,
	}
}

// RegisterRoutes регистрирует маршруты API
func (h *OrderHandler) RegisterRoutes(router *gin.Engine) {
	router.GET("/health", h.HealthCheck)

	api := router.Group("/api/v1")
	authorized := api.Group("")
	authorized.Use(h.authMiddleware.AuthRequired())
	{
		authorized.POST("/orders", h.CreateOrder)
		authorized.GET("/orders/:id", h.GetOrder)
		authorized.GET("/users/:id/orders", h.ListUserOrders)
	}
}

// HealthCheck проверка работоспособности сервиса
func (h *OrderHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// CreateOrder создает заказ и запускает сагу его обработки
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	var req entity.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.HandleGinError(c, apperrors.NewBadRequestError(err.Error()))
		return
	}

	userID := auth.GetUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "пользователь не авторизован"})
		return
	}
	req.UserID = userID

	resp, err := h.orderUseCase.CreateOrder(c.Request.Context(), req)
	if apperrors.HandleGinError(c, err) {
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// GetOrder возвращает заказ текущего пользователя
func (h *OrderHandler) GetOrder(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		apperrors.HandleGinError(c, apperrors.NewBadRequestError("некорректный идентификатор"))
		return
	}

	resp, err := h.orderUseCase.GetOrder(c.Request.Context(), uint(id))
	if apperrors.HandleGinError(c, err) {
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ListUserOrders возвращает заказы пользователя
func (h *OrderHandler) ListUserOrders(c *gin.Context) {
	userID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		apperrors.HandleGinError(c, apperrors.NewBadRequestError("некорректный идентификатор пользователя"))
		return
	}

	// Пользователь видит только свои заказы
	if auth.GetUserID(c) != uint(userID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "доступ запрещен"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	resp, err := h.orderUseCase.ListUserOrders(c.Request.Context(), uint(userID), limit, offset)
	if apperrors.HandleGinError(c, err) {
		return
	}
	c.JSON(http.StatusOK, resp)
}
