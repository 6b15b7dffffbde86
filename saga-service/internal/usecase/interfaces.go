package usecase

import (
	"context"
	"time"

	"github.com/director74/order-saga/saga-service/internal/entity"
)

// SagaInstanceRepository интерфейс хранилища экземпляров саг
type SagaInstanceRepository interface {
	Create(ctx context.Context, inst *entity.SagaInstance) error
	GetByCorrelationID(ctx context.Context, correlationID string) (*entity.SagaInstance, error)
	Save(ctx context.Context, inst *entity.SagaInstance, expectedVersion int) error
	FindExpired(ctx context.Context, now time.Time, limit int) ([]entity.SagaInstance, error)
}

// SagaPublisher интерфейс публикации сообщений саги
type SagaPublisher interface {
	PublishMessage(exchange, routingKey string, message interface{}) error
}
