package usecase

import (
	"context"
	"errors"

	"gorm.io/gorm"

	apperrors "github.com/director74/order-saga/pkg/errors"
	"github.com/director74/order-saga/product-service/internal/entity"
)

// ProductUseCase реализует операции над товарами
type ProductUseCase struct {
	productRepo ProductRepository
}

// NewProductUseCase создает usecase товаров
func NewProductUseCase(productRepo ProductRepository) *ProductUseCase {
	return &ProductUseCase{productRepo: productRepo}
}

// CreateProduct создает товар; артикул должен быть уникален
func (uc *ProductUseCase) CreateProduct(ctx context.Context, req entity.CreateProductRequest) (*entity.ProductResponse, error) {
	if _, err := uc.productRepo.GetBySKU(ctx, req.SKU); err == nil {
		return nil, apperrors.NewAlreadyExistsError("Товар", "sku", req.SKU)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NewInternalServerError(err)
	}

	product := &entity.Product{
		Name:  req.Name,
		SKU:   req.SKU,
		Price: req.Price,
		Stock: req.Stock,
	}
	if err := uc.productRepo.Create(ctx, product); err != nil {
		return nil, apperrors.NewInternalServerError(err)
	}

	return toProductResponse(product), nil
}

// GetProduct возвращает товар по идентификатору
func (uc *ProductUseCase) GetProduct(ctx context.Context, id uint) (*entity.ProductResponse, error) {
	product, err := uc.productRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFoundError("Товар", id)
		}
		return nil, apperrors.NewInternalServerError(err)
	}
	return toProductResponse(product), nil
}

// ListProducts возвращает страницу товаров
func (uc *ProductUseCase) ListProducts(ctx context.Context, limit, offset int) (*entity.ListProductsResponse, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}

	products, total, err := uc.productRepo.List(ctx, limit, offset)
	if err != nil {
		return nil, apperrors.NewInternalServerError(err)
	}

	resp := &entity.ListProductsResponse{
		Products: make([]entity.ProductResponse, 0, len(products)),
		Total:    total,
		Limit:    limit,
		Offset:   offset,
	}
	for i := range products {
		resp.Products = append(resp.Products, *toProductResponse(&products[i]))
	}
	return resp, nil
}

// UpdateProduct изменяет данные товара
func (uc *ProductUseCase) UpdateProduct(ctx context.Context, id uint, req entity.UpdateProductRequest) (*entity.ProductResponse, error) {
	product, err := uc.productRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFoundError("Товар", id)
		}
		return nil, apperrors.NewInternalServerError(err)
	}

	if req.Name != "" {
		product.Name = req.Name
	}
	if req.Price != nil {
		product.Price = *req.Price
	}
	if req.Stock != nil {
		if *req.Stock < 0 {
			return nil, apperrors.NewBadRequestError("остаток не может быть отрицательным")
		}
		product.Stock = *req.Stock
	}

	if err := uc.productRepo.Update(ctx, product); err != nil {
		return nil, apperrors.NewInternalServerError(err)
	}
	return toProductResponse(product), nil
}

// DeleteProduct удаляет товар
func (uc *ProductUseCase) DeleteProduct(ctx context.Context, id uint) error {
	if _, err := uc.productRepo.GetByID(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.NewNotFoundError("Товар", id)
		}
		return apperrors.NewInternalServerError(err)
	}
	if err := uc.productRepo.Delete(ctx, id); err != nil {
		return apperrors.NewInternalServerError(err)
	}
	return nil
}

func toProductResponse(product *entity.Product) *entity.ProductResponse {
	return &entity.ProductResponse{
		ID:        product.ID,
		Name:      product.Name,
		SKU:       product.SKU,
		Price:     product.Price,
		Stock:     product.Stock,
		CreatedAt: product.CreatedAt,
	}
}
