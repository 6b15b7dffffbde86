package usecase

import (
	"context"

	"github.com/director74/order-saga/order-service/internal/entity"
)

// OrderRepository интерфейс хранилища заказов
type OrderRepository interface {
	Create(ctx context.Context, order *entity.Order) error
	GetByID(ctx context.Context, id uint) (*entity.Order, error)
	GetByCorrelationID(ctx context.Context, correlationID string) (*entity.Order, error)
	ListByUser(ctx context.Context, userID uint, limit, offset int) ([]entity.Order, int64, error)
	UpdateStatus(ctx context.Context, correlationID string, status entity.OrderStatus, failureReason string) error
}

// UserRepository интерфейс хранилища пользователей
type UserRepository interface {
	Create(ctx context.Context, user *entity.User) error
	GetByID(ctx context.Context, id uint) (*entity.User, error)
	GetByEmail(ctx context.Context, email string) (*entity.User, error)
	GetByUsername(ctx context.Context, username string) (*entity.User, error)
}

// MessagePublisher интерфейс публикации сообщений
type MessagePublisher interface {
	PublishMessage(exchange, routingKey string, message interface{}) error
	PublishMessageWithRetry(exchange, routingKey string, message interface{}, retries int) error
}
