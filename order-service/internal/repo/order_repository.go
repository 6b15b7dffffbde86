package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/director74/order-saga/order-service/internal/entity"
)

// OrderRepository реализует доступ к заказам в PostgreSQL
type OrderRepository struct {
	db *gorm.DB
}

// NewOrderRepository создает новый репозиторий заказов
func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// Create создает заказ вместе с позициями в одной транзакции
func (r *OrderRepository) Create(ctx context.Context, order *entity.Order) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(order).Error
	})
}

// GetByID возвращает заказ с позициями
func (r *OrderRepository) GetByID(ctx context.Context, id uint) (*entity.Order, error) {
	var order entity.Order
	err := r.db.WithContext(ctx).Preload("Items").First(&order, id).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetByCorrelationID возвращает заказ по идентификатору корреляции саги
func (r *OrderRepository) GetByCorrelationID(ctx context.Context, correlationID string) (*entity.Order, error) {
	var order entity.Order
	err := r.db.WithContext(ctx).Preload("Items").Where("correlation_id = ?", correlationID).First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// ListByUser возвращает страницу заказов пользователя и общее количество
func (r *OrderRepository) ListByUser(ctx context.Context, userID uint, limit, offset int) ([]entity.Order, int64, error) {
	var orders []entity.Order
	var total int64

	if err := r.db.WithContext(ctx).Model(&entity.Order{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := r.db.WithContext(ctx).Preload("Items").
		Where("user_id = ?", userID).
		Limit(limit).Offset(offset).Order("id DESC").
		Find(&orders).Error
	if err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// UpdateStatus обновляет статус заказа по идентификатору корреляции.
// Повторное применение того же результата саги безвредно.
func (r *OrderRepository) UpdateStatus(ctx context.Context, correlationID string, status entity.OrderStatus, failureReason string) error {
	result := r.db.WithContext(ctx).
		Model(&entity.Order{}).
		Where("correlation_id = ?", correlationID).
		Updates(map[string]interface{}{
			"status":         status,
			"failure_reason": failureReason,
			"updated_at":     time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
