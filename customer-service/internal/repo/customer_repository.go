package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/director74/order-saga/customer-service/internal/entity"
)

// CustomerRepository реализует доступ к покупателям в PostgreSQL
type CustomerRepository struct {
	db *gorm.DB
}

// NewCustomerRepository создает новый репозиторий покупателей
func NewCustomerRepository(db *gorm.DB) *CustomerRepository {
	return &CustomerRepository{db: db}
}

// Create создает нового покупателя
func (r *CustomerRepository) Create(ctx context.Context, customer *entity.Customer) error {
	return r.db.WithContext(ctx).Create(customer).Error
}

// GetByID возвращает покупателя по идентификатору
func (r *CustomerRepository) GetByID(ctx context.Context, id uint) (*entity.Customer, error) {
	var customer entity.Customer
	err := r.db.WithContext(ctx).First(&customer, id).Error
	if err != nil {
		return nil, err
	}
	return &customer, nil
}

// GetByEmail возвращает покупателя по email
func (r *CustomerRepository) GetByEmail(ctx context.Context, email string) (*entity.Customer, error) {
	var customer entity.Customer
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&customer).Error
	if err != nil {
		return nil, err
	}
	return &customer, nil
}

// List возвращает страницу покупателей и общее количество
func (r *CustomerRepository) List(ctx context.Context, limit, offset int) ([]entity.Customer, int64, error) {
	var customers []entity.Customer
	var total int64

	if err := r.db.WithContext(ctx).Model(&entity.Customer{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := r.db.WithContext(ctx).Limit(limit).Offset(offset).Order("id").Find(&customers).Error
	if err != nil {
		return nil, 0, err
	}
	return customers, total, nil
}

// Update сохраняет изменения покупателя
func (r *CustomerRepository) Update(ctx context.Context, customer *entity.Customer) error {
	return r.db.WithContext(ctx).Save(customer).Error
}

// Delete удаляет покупателя
func (r *CustomerRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&entity.Customer{}, id).Error
}
