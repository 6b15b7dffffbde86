package usecase

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/director74/order-saga/order-service/internal/entity"
	"github.com/director74/order-saga/pkg/auth"
	apperrors "github.com/director74/order-saga/pkg/errors"
)

// AuthUseCase сервис регистрации и аутентификации пользователей
type AuthUseCase struct {
	userRepo   UserRepository
	jwtManager *auth.JWTManager
}

// NewAuthUseCase создает сервис аутентификации
func NewAuthUseCase(userRepo UserRepository, jwtManager *auth.JWTManager) *AuthUseCase {
	return &AuthUseCase{
		userRepo:   userRepo,
		jwtManager: jwtManager,
	}
}

// Register регистрирует нового пользователя
func (uc *AuthUseCase) Register(ctx context.Context, req entity.RegisterRequest) (*entity.RegisterResponse, error) {
	if _, err := uc.userRepo.GetByEmail(ctx, req.Email); err == nil {
		return nil, apperrors.NewAlreadyExistsError("Пользователь", "email", req.Email)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NewInternalServerError(err)
	}

	if _, err := uc.userRepo.GetByUsername(ctx, req.Username); err == nil {
		return nil, apperrors.NewAlreadyExistsError("Пользователь", "username", req.Username)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NewInternalServerError(err)
	}

	hashedPassword, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, apperrors.NewInternalServerError(err)
	}

	user := &entity.User{
		Username:  req.Username,
		Email:     req.Email,
		Password:  hashedPassword,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := uc.userRepo.Create(ctx, user); err != nil {
		return nil, apperrors.NewInternalServerError(err)
	}

	return &entity.RegisterResponse{
		ID:        user.ID,
		Username:  user.Username,
		Email:     user.Email,
		CreatedAt: user.CreatedAt,
	}, nil
}

// Login аутентифицирует пользователя и возвращает JWT токен
func (uc *AuthUseCase) Login(ctx context.Context, req entity.LoginRequest) (*entity.LoginResponse, error) {
	user, err := uc.userRepo.GetByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewInvalidCredentialsError()
		}
		return nil, apperrors.NewInternalServerError(err)
	}

	if !auth.CheckPasswordHash(req.Password, user.Password) {
		return nil, apperrors.NewInvalidCredentialsError()
	}

	token, err := uc.jwtManager.GenerateToken(user.ID, user.Username, user.Email)
	if err != nil {
		return nil, apperrors.NewInternalServerError(err)
	}

	return &entity.LoginResponse{
		ID:       user.ID,
		Username: user.Username,
		Email:    user.Email,
		Token:    token,
	}, nil
}
