package usecase

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/director74/order-saga/customer-service/internal/entity"
	apperrors "github.com/director74/order-saga/pkg/errors"
)

// CustomerUseCase реализует операции над покупателями
type CustomerUseCase struct {
	customerRepo CustomerRepository
}

// NewCustomerUseCase создает usecase покупателей
func NewCustomerUseCase(customerRepo CustomerRepository) *CustomerUseCase {
	return &CustomerUseCase{customerRepo: customerRepo}
}

// CreateCustomer создает покупателя; email должен быть уникален
func (uc *CustomerUseCase) CreateCustomer(ctx context.Context, req entity.CreateCustomerRequest) (*entity.CustomerResponse, error) {
	if _, err := uc.customerRepo.GetByEmail(ctx, req.Email); err == nil {
		return nil, apperrors.NewAlreadyExistsError("Покупатель", "email", req.Email)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NewInternalServerError(err)
	}

	customer := &entity.Customer{
		Name:     req.Name,
		Email:    req.Email,
		Phone:    req.Phone,
		IsActive: true,
	}
	if err := uc.customerRepo.Create(ctx, customer); err != nil {
		return nil, apperrors.NewInternalServerError(err)
	}

	return toCustomerResponse(customer), nil
}

// GetCustomer возвращает покупателя по идентификатору
func (uc *CustomerUseCase) GetCustomer(ctx context.Context, id uint) (*entity.CustomerResponse, error) {
	customer, err := uc.customerRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFoundError("Покупатель", id)
		}
		return nil, apperrors.NewInternalServerError(err)
	}
	return toCustomerResponse(customer), nil
}

// ListCustomers возвращает страницу покупателей
func (uc *CustomerUseCase) ListCustomers(ctx context.Context, limit, offset int) (*entity.ListCustomersResponse, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}

	customers, total, err := uc.customerRepo.List(ctx, limit, offset)
	if err != nil {
		return nil, apperrors.NewInternalServerError(err)
	}

	resp := &entity.ListCustomersResponse{
		Customers: make([]entity.CustomerResponse, 0, len(customers)),
		Total:     total,
		Limit:     limit,
		Offset:    offset,
	}
	for i := range customers {
		resp.Customers = append(resp.Customers, *toCustomerResponse(&customers[i]))
	}
	return resp, nil
}

// UpdateCustomer изменяет данные покупателя
func (uc *CustomerUseCase) UpdateCustomer(ctx context.Context, id uint, req entity.UpdateCustomerRequest) (*entity.CustomerResponse, error) {
	customer, err := uc.customerRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFoundError("Покупатель", id)
		}
		return nil, apperrors.NewInternalServerError(err)
	}

	if req.Name != "" {
		customer.Name = req.Name
	}
	if req.Phone != "" {
		customer.Phone = req.Phone
	}
	if req.IsActive != nil {
		customer.IsActive = *req.IsActive
	}

	if err := uc.customerRepo.Update(ctx, customer); err != nil {
		return nil, apperrors.NewInternalServerError(err)
	}
	return toCustomerResponse(customer), nil
}

// DeleteCustomer удаляет покупателя
func (uc *CustomerUseCase) DeleteCustomer(ctx context.Context, id uint) error {
	if _, err := uc.customerRepo.GetByID(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.NewNotFoundError("Покупатель", id)
		}
		return apperrors.NewInternalServerError(err)
	}
	if err := uc.customerRepo.Delete(ctx, id); err != nil {
		return apperrors.NewInternalServerError(err)
	}
	return nil
}

func toCustomerResponse(customer *entity.Customer) *entity.CustomerResponse {
	return &entity.CustomerResponse{
		ID:        customer.ID,
		Name:      customer.Name,
		Email:     customer.Email,
		Phone:     customer.Phone,
		IsActive:  customer.IsActive,
		CreatedAt: customer.CreatedAt,
	}
}
