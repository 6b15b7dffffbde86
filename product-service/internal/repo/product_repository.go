package repo

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/director74/order-saga/product-service/internal/entity"
)

// InsufficientStockError нехватка товара для резервирования
type InsufficientStockError struct {
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("недостаточно товара: доступно %d, запрошено %d", e.Available, e.Requested)
}

// ProductRepository реализует доступ к товарам в PostgreSQL
type ProductRepository struct {
	db *gorm.DB
}

// NewProductRepository создает новый репозиторий товаров
func NewProductRepository(db *gorm.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// Create создает новый товар
func (r *ProductRepository) Create(ctx context.Context, product *entity.Product) error {
	return r.db.WithContext(ctx).Create(product).Error
}

// GetByID возвращает товар по идентификатору
func (r *ProductRepository) GetByID(ctx context.Context, id uint) (*entity.Product, error) {
	var product entity.Product
	err := r.db.WithContext(ctx).First(&product, id).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// GetBySKU возвращает товар по артикулу
func (r *ProductRepository) GetBySKU(ctx context.Context, sku string) (*entity.Product, error) {
	var product entity.Product
	err := r.db.WithContext(ctx).Where("sku = ?", sku).First(&product).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// List возвращает страницу товаров и общее количество
func (r *ProductRepository) List(ctx context.Context, limit, offset int) ([]entity.Product, int64, error) {
	var products []entity.Product
	var total int64

	if err := r.db.WithContext(ctx).Model(&entity.Product{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := r.db.WithContext(ctx).Limit(limit).Offset(offset).Order("id").Find(&products).Error
	if err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

// Update сохраняет изменения товара
func (r *ProductRepository) Update(ctx context.Context, product *entity.Product) error {
	return r.db.WithContext(ctx).Save(product).Error
}

// Delete удаляет товар
func (r *ProductRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&entity.Product{}, id).Error
}

// ReserveStock атомарно уменьшает остаток при достаточном количестве.
// Условие в UPDATE защищает от ухода остатка в минус при конкурентных
// резервированиях. Возвращает gorm.ErrRecordNotFound для неизвестного товара
// и InsufficientStockError при нехватке остатка.
func (r *ProductRepository) ReserveStock(ctx context.Context, productID uint, quantity int) error {
	result := r.db.WithContext(ctx).
		Model(&entity.Product{}).
		Where("id = ? AND stock >= ?", productID, quantity).
		UpdateColumn("stock", gorm.Expr("stock - ?", quantity))
	if result.Error != nil {
		return fmt.Errorf("ошибка резервирования товара: %w", result.Error)
	}
	if result.RowsAffected > 0 {
		return nil
	}

	product, err := r.GetByID(ctx, productID)
	if err != nil {
		return err
	}
	return &InsufficientStockError{Available: product.Stock, Requested: quantity}
}

// ReleaseStock возвращает количество в остаток (компенсация резерва)
func (r *ProductRepository) ReleaseStock(ctx context.Context, productID uint, quantity int) error {
	result := r.db.WithContext(ctx).
		Model(&entity.Product{}).
		Where("id = ?", productID).
		UpdateColumn("stock", gorm.Expr("stock + ?", quantity))
	if result.Error != nil {
		return fmt.Errorf("ошибка возврата резерва: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
