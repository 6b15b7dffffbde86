package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/director74/order-saga/saga-service/internal/entity"
)

// ErrVersionConflict возвращается, когда сохранение не прошло проверку версии:
// экземпляр был изменён конкурентным обработчиком между чтением и записью
var ErrVersionConflict = errors.New("конфликт версий экземпляра саги")

// SagaInstanceRepository реализует доступ к экземплярам саг в PostgreSQL
type SagaInstanceRepository struct {
	db *gorm.DB
}

// NewSagaInstanceRepository создает новый репозиторий экземпляров саг
func NewSagaInstanceRepository(db *gorm.DB) *SagaInstanceRepository {
	return &SagaInstanceRepository{db: db}
}

// Create создает новый экземпляр саги с версией 1
func (r *SagaInstanceRepository) Create(ctx context.Context, inst *entity.SagaInstance) error {
	now := time.Now()
	inst.Version = 1
	inst.CreatedAt = now
	inst.UpdatedAt = now
	return r.db.WithContext(ctx).Create(inst).Error
}

// GetByCorrelationID возвращает экземпляр саги по идентификатору корреляции.
// Если экземпляр не найден, возвращает gorm.ErrRecordNotFound.
func (r *SagaInstanceRepository) GetByCorrelationID(ctx context.Context, correlationID string) (*entity.SagaInstance, error) {
	var inst entity.SagaInstance
	err := r.db.WithContext(ctx).Where("correlation_id = ?", correlationID).First(&inst).Error
	if err != nil {
		return nil, err
	}
	return &inst, nil
}

// Save сохраняет экземпляр при условии, что версия в БД равна expectedVersion.
// Запись увеличивает версию на единицу; если условие не выполнено (запись
// изменена конкурентно), возвращается ErrVersionConflict и вызывающий обязан
// перечитать экземпляр и повторить вычисление перехода.
func (r *SagaInstanceRepository) Save(ctx context.Context, inst *entity.SagaInstance, expectedVersion int) error {
	inst.Version = expectedVersion + 1
	inst.UpdatedAt = time.Now()

	result := r.db.WithContext(ctx).
		Model(&entity.SagaInstance{}).
		Where("correlation_id = ? AND version = ?", inst.CorrelationID, expectedVersion).
		Select("*").
		Omit("correlation_id", "created_at").
		Updates(inst)
	if result.Error != nil {
		return fmt.Errorf("ошибка сохранения экземпляра саги: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrVersionConflict
	}
	return nil
}

// FindExpired возвращает незавершенные экземпляры с истекшим дедлайном
func (r *SagaInstanceRepository) FindExpired(ctx context.Context, now time.Time, limit int) ([]entity.SagaInstance, error) {
	var instances []entity.SagaInstance
	err := r.db.WithContext(ctx).
		Where("current_state IN ? AND deadline IS NOT NULL AND deadline < ?",
			[]entity.SagaState{entity.SagaStateValidatingCustomer, entity.SagaStateReservingStock}, now).
		Order("deadline").
		Limit(limit).
		Find(&instances).Error
	if err != nil {
		return nil, err
	}
	return instances, nil
}
