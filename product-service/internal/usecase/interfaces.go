package usecase

import (
	"context"

	"github.com/director74/order-saga/product-service/internal/entity"
)

// ProductRepository интерфейс хранилища товаров
type ProductRepository interface {
	Create(ctx context.Context, product *entity.Product) error
	GetByID(ctx context.Context, id uint) (*entity.Product, error)
	GetBySKU(ctx context.Context, sku string) (*entity.Product, error)
	List(ctx context.Context, limit, offset int) ([]entity.Product, int64, error)
	Update(ctx context.Context, product *entity.Product) error
	Delete(ctx context.Context, id uint) error
	ReserveStock(ctx context.Context, productID uint, quantity int) error
	ReleaseStock(ctx context.Context, productID uint, quantity int) error
}

// MessagePublisher интерфейс публикации сообщений
type MessagePublisher interface {
	PublishMessage(exchange, routingKey string, message interface{}) error
	PublishMessageWithRetry(exchange, routingKey string, message interface{}, retries int) error
}
