package entity

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"gorm.io/datatypes"

	"github.com/director74/order-saga/pkg/saga"
)

// SagaState представляет состояние экземпляра саги
type SagaState string

const (
	SagaStateInitial            SagaState = "initial"
	SagaStateValidatingCustomer SagaState = "validating_customer"
	SagaStateReservingStock     SagaState = "reserving_stock"
	SagaStateCompleted          SagaState = "completed"
	SagaStateFailed             SagaState = "failed"
)

// Terminal сообщает, является ли состояние конечным. Из конечного состояния
// переходы запрещены: любое событие для такой саги — no-op.
func (s SagaState) Terminal() bool {
	return s == SagaStateCompleted || s == SagaStateFailed
}

// SagaInstance представляет экземпляр саги обработки заказа, хранящийся в БД.
// Один экземпляр на correlation_id; поля заказа фиксируются при создании и
// далее не меняются.
type SagaInstance struct {
	CorrelationID string    `gorm:"primaryKey;type:varchar(64)"`
	CurrentState  SagaState `gorm:"not null;type:varchar(50);default:initial;index"`

	// Данные заказа, захваченные из OrderSubmitted
	OrderID     uint           `gorm:"not null;index"`
	CustomerID  uint           `gorm:"not null"`
	TotalAmount float64        `gorm:"not null"`
	SubmittedAt time.Time      `gorm:"not null"`
	LineItems   datatypes.JSON `gorm:"not null;default:'[]'"`

	// Флаги прогресса (пишутся только в true)
	CustomerValidated bool `gorm:"not null;default:false"`
	StockReserved     bool `gorm:"not null;default:false"`

	// Позиции, подтвержденные сервисом товаров: product_id (строкой) -> true.
	// Сага завершается успехом только после подтверждения всех позиций.
	ReservedItems datatypes.JSONMap `gorm:"not null;default:'{}'"`

	// Терминальная информация
	FailureReason string     `gorm:"type:text"`
	CompletedAt   *time.Time `gorm:""`
	FailedAt      *time.Time `gorm:""`

	// Дедлайн ожидания ответа участника в текущем не-терминальном состоянии
	Deadline *time.Time `gorm:"index"`

	// Токен оптимистичной блокировки: save принимается только при совпадении
	// версии, прочитанной обработчиком
	Version int `gorm:"not null;default:1"`

	CreatedAt time.Time `gorm:"not null;default:now()"`
	UpdatedAt time.Time `gorm:"not null;default:now()"`
}

// TableName задает имя таблицы для GORM
func (SagaInstance) TableName() string {
	return "saga_instances"
}

// SetLineItems сериализует позиции заказа в JSON-колонку
func (i *SagaInstance) SetLineItems(items []saga.OrderItemData) error {
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("ошибка сериализации позиций заказа: %w", err)
	}
	i.LineItems = datatypes.JSON(data)
	return nil
}

// LineItemList извлекает позиции заказа из JSON-колонки
func (i *SagaInstance) LineItemList() ([]saga.OrderItemData, error) {
	var items []saga.OrderItemData
	if len(i.LineItems) == 0 {
		return items, nil
	}
	if err := json.Unmarshal(i.LineItems, &items); err != nil {
		return nil, fmt.Errorf("ошибка десериализации позиций заказа: %w", err)
	}
	return items, nil
}

// HasLineItem сообщает, входит ли товар в позиции заказа
func (i *SagaInstance) HasLineItem(productID uint) (bool, error) {
	items, err := i.LineItemList()
	if err != nil {
		return false, err
	}
	for _, item := range items {
		if item.ProductID == productID {
			return true, nil
		}
	}
	return false, nil
}

// MarkItemReserved помечает позицию подтвержденной
func (i *SagaInstance) MarkItemReserved(productID uint) {
	if i.ReservedItems == nil {
		i.ReservedItems = make(datatypes.JSONMap)
	}
	i.ReservedItems[reservedKey(productID)] = true
}

// ItemReserved сообщает, подтверждена ли позиция
func (i *SagaInstance) ItemReserved(productID uint) bool {
	if i.ReservedItems == nil {
		return false
	}
	v, ok := i.ReservedItems[reservedKey(productID)]
	if !ok {
		return false
	}
	b, ok := v.(bool)
	return ok && b
}

// AllItemsReserved проверяет, подтверждены ли все позиции заказа
func (i *SagaInstance) AllItemsReserved() (bool, error) {
	items, err := i.LineItemList()
	if err != nil {
		return false, err
	}
	for _, item := range items {
		if !i.ItemReserved(item.ProductID) {
			return false, nil
		}
	}
	return len(items) > 0, nil
}

// ReservedLineItems возвращает позиции, которые уже были подтверждены
// (для компенсирующего возврата резерва)
func (i *SagaInstance) ReservedLineItems() ([]saga.OrderItemData, error) {
	items, err := i.LineItemList()
	if err != nil {
		return nil, err
	}
	reserved := make([]saga.OrderItemData, 0, len(items))
	for _, item := range items {
		if i.ItemReserved(item.ProductID) {
			reserved = append(reserved, item)
		}
	}
	return reserved, nil
}

func reservedKey(productID uint) string {
	return strconv.FormatUint(uint64(productID), 10)
}
