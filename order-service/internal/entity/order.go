package entity

import (
	"time"
)

// OrderStatus статус заказа
type OrderStatus string

const (
	// Заказ принят, сага обработки еще не завершена
	OrderStatusPending OrderStatus = "pending"
	// Сага завершилась успехом: покупатель проверен, товар зарезервирован
	OrderStatusCompleted OrderStatus = "completed"
	// Сага завершилась отказом, причина в failure_reason
	OrderStatusFailed OrderStatus = "failed"
)

// OrderItem позиция заказа
type OrderItem struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	OrderID   uint      `json:"order_id" gorm:"index"`
	ProductID uint      `json:"product_id" gorm:"not null"`
	Name      string    `json:"name" gorm:"size:255"`
	Price     float64   `json:"price" gorm:"not null"`
	Quantity  int       `json:"quantity" gorm:"not null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Order хранит заказ, его позиции и результат саги обработки
type Order struct {
	ID         uint `json:"id" gorm:"primaryKey"`
	UserID     uint `json:"user_id" gorm:"index;not null"`
	CustomerID uint `json:"customer_id" gorm:"index;not null"`
	// Идентификатор корреляции саги, назначается при создании заказа
	CorrelationID string      `json:"correlation_id" gorm:"size:64;uniqueIndex;not null"`
	Items         []OrderItem `json:"items" gorm:"foreignKey:OrderID"`
	Amount        float64     `json:"amount" gorm:"not null"`
	Status        OrderStatus `json:"status" gorm:"size:50;not null;default:pending"`
	FailureReason string      `json:"failure_reason,omitempty" gorm:"type:text"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
	User          User        `json:"-" gorm:"foreignKey:UserID"`
}

// OrderItemRequest позиция в запросе на создание заказа
type OrderItemRequest struct {
	ProductID uint    `json:"product_id" binding:"required"`
	Name      string  `json:"name"`
	Price     float64 `json:"price" binding:"required,gt=0"`
	Quantity  int     `json:"quantity" binding:"required,gt=0"`
}

// CreateOrderRequest запрос на создание заказа
type CreateOrderRequest struct {
	UserID     uint               `json:"-"`
	CustomerID uint               `json:"customer_id" binding:"required"`
	Items      []OrderItemRequest `json:"items" binding:"required,min=1,dive"`
}

// CreateOrderResponse ответ на запрос создания заказа
type CreateOrderResponse struct {
	ID            uint        `json:"id"`
	CorrelationID string      `json:"correlation_id"`
	CustomerID    uint        `json:"customer_id"`
	Items         []OrderItem `json:"items"`
	Amount        float64     `json:"amount"`
	Status        OrderStatus `json:"status"`
	CreatedAt     time.Time   `json:"created_at"`
}

// GetOrderResponse ответ с данными заказа
type GetOrderResponse struct {
	ID            uint        `json:"id"`
	CorrelationID string      `json:"correlation_id"`
	CustomerID    uint        `json:"customer_id"`
	Items         []OrderItem `json:"items"`
	Amount        float64     `json:"amount"`
	Status        OrderStatus `json:"status"`
	FailureReason string      `json:"failure_reason,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// ListOrdersResponse ответ со списком заказов пользователя
type ListOrdersResponse struct {
	Orders []GetOrderResponse `json:"orders"`
	Total  int64              `json:"total"`
}
