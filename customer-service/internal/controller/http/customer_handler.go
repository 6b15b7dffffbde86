package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/director74/order-saga/customer-service/internal/entity"
	"github.com/director74/order-saga/customer-service/internal/usecase"
	apperrors "github.com/director74/order-saga/pkg/errors"
)

// CustomerHandler HTTP-обработчик операций над покупателями
type CustomerHandler struct {
	customerUseCase *usecase.CustomerUseCase
}

// NewCustomerHandler создает обработчик покупателей
func NewCustomerHandler(customerUseCase *usecase.CustomerUseCase) *CustomerHandler {
	return &CustomerHandler{customerUseCase: customerUseCase}
}

// RegisterRoutes регистрирует маршруты API
func (h *CustomerHandler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api/v1")
	{
		customers := api.Group("/customers")
		{
			customers.POST("", h.CreateCustomer)
			customers.GET("", h.ListCustomers)
			customers.GET("/:id", h.GetCustomer)
			customers.PUT("/:id", h.UpdateCustomer)
			customers.DELETE("/:id", h.DeleteCustomer)
		}
	}
	router.GET("/health", h.HealthCheck)
}

// CreateCustomer создает покупателя
func (h *CustomerHandler) CreateCustomer(c *gin.Context) {
	var req entity.CreateCustomerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.HandleGinError(c, apperrors.NewBadRequestError(err.Error()))
		return
	}

	resp, err := h.customerUseCase.CreateCustomer(c.Request.Context(), req)
	if apperrors.HandleGinError(c, err) {
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// GetCustomer возвращает покупателя по идентификатору
func (h *CustomerHandler) GetCustomer(c *gin.Context) {
	id, err := parseIDParam(c)
	if err != nil {
		apperrors.HandleGinError(c, apperrors.NewBadRequestError("некорректный идентификатор"))
		return
	}

	resp, err := h.customerUseCase.GetCustomer(c.Request.Context(), id)
	if apperrors.HandleGinError(c, err) {
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ListCustomers возвращает список покупателей
func (h *CustomerHandler) ListCustomers(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	resp, err := h.customerUseCase.ListCustomers(c.Request.Context(), limit, offset)
	if apperrors.HandleGinError(c, err) {
		return
	}
	c.JSON(http.StatusOK, resp)
}

// UpdateCustomer изменяет данные покупателя
func (h *CustomerHandler) UpdateCustomer(c *gin.Context) {
	id, err := parseIDParam(c)
	if err != nil {
		apperrors.HandleGinError(c, apperrors.NewBadRequestError("некорректный идентификатор"))
		return
	}

	var req entity.UpdateCustomerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.HandleGinError(c, apperrors.NewBadRequestError(err.Error()))
		return
	}

	resp, err := h.customerUseCase.UpdateCustomer(c.Request.Context(), id, req)
	if apperrors.HandleGinError(c, err) {
		return
	}
	c.JSON(http.StatusOK, resp)
}

// DeleteCustomer удаляет покупателя
func (h *CustomerHandler) DeleteCustomer(c *gin.Context) {
	id, err := parseIDParam(c)
	if err != nil {
		apperrors.HandleGinError(c, apperrors.NewBadRequestError("некорректный идентификатор"))
		return
	}

	if apperrors.HandleGinError(c, h.customerUseCase.DeleteCustomer(c.Request.Context(), id)) {
		return
	}
	c.Status(http.StatusNoContent)
}

// HealthCheck проверка работоспособности сервиса
func (h *CustomerHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func parseIDParam(c *gin.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return 0, err
	}
	return uint(id), nil
}
