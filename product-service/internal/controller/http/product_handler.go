package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	apperrors "github.com/director74/order-saga/pkg/errors"
	"github.com/director74/order-saga/product-service/internal/entity"
	"github.com/director74/order-saga/product-service/internal/usecase"
)

// ProductHandler HTTP-обработчик операций над товарами
type ProductHandler struct {
	productUseCase *usecase.ProductUseCase
}

// NewProductHandler создает обработчик товаров
func NewProductHandler(productUseCase *usecase.ProductUseCase) *ProductHandler {
	return &ProductHandler{productUseCase: productUseCase}
}

// RegisterRoutes регистрирует маршруты API
func (h *ProductHandler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api/v1")
	{
		products := api.Group("/products")
		{
			products.POST("", h.CreateProduct)
			products.GET("", h.ListProducts)
			products.GET("/:id", h.GetProduct)
			products.PUT("/:id", h.UpdateProduct)
			products.DELETE("/:id", h.DeleteProduct)
		}
	}
	router.GET("/health", h.HealthCheck)
}

// CreateProduct создает товар
func (h *ProductHandler) CreateProduct(c *gin.Context) {
	var req entity.CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.HandleGinError(c, apperrors.NewBadRequestError(err.Error()))
		return
	}

	resp, err := h.productUseCase.CreateProduct(c.Request.Context(), req)
	if apperrors.HandleGinError(c, err) {
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// GetProduct возвращает товар по идентификатору
func (h *ProductHandler) GetProduct(c *gin.Context) {
	id, err := parseIDParam(c)
	if err != nil {
		apperrors.HandleGinError(c, apperrors.NewBadRequestError("некорректный идентификатор"))
		return
	}

	resp, err := h.productUseCase.GetProduct(c.Request.Context(), id)
	if apperrors.HandleGinError(c, err) {
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ListProducts возвращает список товаров
func (h *ProductHandler) ListProducts(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	resp, err := h.productUseCase.ListProducts(c.Request.Context(), limit, offset)
	if apperrors.HandleGinError(c, err) {
		return
	}
	c.JSON(http.StatusOK, resp)
}

// UpdateProduct изменяет данные товара
func (h *ProductHandler) UpdateProduct(c *gin.Context) {
	id, err := parseIDParam(c)
	if err != nil {
		apperrors.HandleGinError(c, apperrors.NewBadRequestError("некорректный идентификатор"))
		return
	}

	var req entity.UpdateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.HandleGinError(c, apperrors.NewBadRequestError(err.Error()))
		return
	}

	resp, err := h.productUseCase.UpdateProduct(c.Request.Context(), id, req)
	if apperrors.HandleGinError(c, err) {
		return
	}
	c.JSON(http.StatusOK, resp)
}

// DeleteProduct удаляет товар
func (h *ProductHandler) DeleteProduct(c *gin.Context) {
	id, err := parseIDParam(c)
	if err != nil {
		apperrors.HandleGinError(c, apperrors.NewBadRequestError("некорректный идентификатор"))
		return
	}

	if apperrors.HandleGinError(c, h.productUseCase.DeleteProduct(c.Request.Context(), id)) {
		return
	}
	c.Status(http.StatusNoContent)
}

// HealthCheck проверка работоспособности сервиса
func (h *ProductHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func parseIDParam(c *gin.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return 0, err
	}
	return uint(id), nil
}
