package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/director74/order-saga/order-service/internal/entity"
	"github.com/director74/order-saga/order-service/internal/usecase"
	apperrors "github.com/director74/order-saga/pkg/errors"
)

// AuthHandler HTTP-обработчик регистрации и аутентификации
type AuthHandler struct {
	authUseCase *usecase.AuthUseCase
}

// NewAuthHandler создает обработчик аутентификации
func NewAuthHandler(authUseCase *usecase.AuthUseCase) *AuthHandler {
	return &AuthHandler{authUseCase: authUseCase}
}

// RegisterRoutes регистрирует маршруты аутентификации
func (h *AuthHandler) RegisterRoutes(router *gin.Engine) {
	auth := router.Group("/api/v1/auth")
	{
		auth.POST("/register", h.Register)
		auth.POST("/login", h.Login)
	}
}

// Register регистрирует нового пользователя
func (h *AuthHandler) Register(c *gin.Context) {
	var req entity.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.HandleGinError(c, apperrors.NewBadRequestError(err.Error()))
		return
	}

	resp, err := h.authUseCase.Register(c.Request.Context(), req)
	if apperrors.HandleGinError(c, err) {
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Login аутентифицирует пользователя
func (h *AuthHandler) Login(c *gin.Context) {
	var req entity.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.HandleGinError(c, apperrors.NewBadRequestError(err.Error()))
		return
	}

	resp, err := h.authUseCase.Login(c.Request.Context(), req)
	if apperrors.HandleGinError(c, err) {
		return
	}
	c.JSON(http.StatusOK, resp)
}
