package saga

import (
	"encoding/json"
	"time"
)

// MessageType тип сообщения саги. Значение одновременно является routing key
// в topic exchange, поэтому формат — "<домен>.<событие>".
type MessageType string

const (
	// Событие, порождающее сагу
	TypeOrderSubmitted MessageType = "order.submitted"

	// Команды участникам
	TypeValidateCustomer MessageType = "customer.validate"
	TypeStockReservation MessageType = "stock.reservation"

	// Ответы участников
	TypeCustomerValidated        MessageType = "customer.validated"
	TypeCustomerValidationFailed MessageType = "customer.validation_failed"
	TypeStockReserved            MessageType = "stock.reserved"
	TypeStockReservationFailed   MessageType = "stock.reservation_failed"

	// Терминальные события саги
	TypeOrderCompleted MessageType = "order.completed"
	TypeOrderFailed    MessageType = "order.failed"
)

// ExchangeName имя topic exchange, через который идут все сообщения саги
const ExchangeName = "saga_events"

// Envelope транспортный конверт сообщения саги. CorrelationID обязателен для
// каждого сообщения, даже если полезная нагрузка его не дублирует (команды
// ValidateCustomer и StockReservation несут корреляцию только в конверте).
type Envelope struct {
	CorrelationID string          `json:"correlation_id"`
	Type          MessageType     `json:"type"`
	Data          json.RawMessage `json:"data"`
	Timestamp     int64           `json:"timestamp"`
}

// OrderItemData позиция заказа, передаваемая в сообщениях саги
type OrderItemData struct {
	ProductID uint    `json:"product_id"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
}

// OrderSubmitted событие о новом заказе, создает экземпляр саги
type OrderSubmitted struct {
	CorrelationID string          `json:"correlation_id"`
	OrderID       uint            `json:"order_id"`
	CustomerID    uint            `json:"customer_id"`
	Items         []OrderItemData `json:"items"`
	TotalAmount   float64         `json:"total_amount"`
	SubmittedAt   time.Time       `json:"submitted_at"`
}

// ValidateCustomer команда сервису покупателей на проверку покупателя
type ValidateCustomer struct {
	CustomerID uint `json:"customer_id"`
	OrderID    uint `json:"order_id"`
}

// CustomerValidated результат проверки покупателя
type CustomerValidated struct {
	CorrelationID string    `json:"correlation_id"`
	CustomerID    uint      `json:"customer_id"`
	IsValid       bool      `json:"is_valid"`
	ValidatedAt   time.Time `json:"validated_at"`
}

// CustomerValidationFailed ошибка проверки покупателя (покупатель не найден и т.п.)
type CustomerValidationFailed struct {
	CorrelationID string `json:"correlation_id"`
	CustomerID    uint   `json:"customer_id"`
	Reason        string `json:"reason"`
}

// StockReservation команда сервису товаров: IsReservation=true — резерв,
// IsReservation=false — возврат резерва (компенсация)
type StockReservation struct {
	ProductID     uint `json:"product_id"`
	Quantity      int  `json:"quantity"`
	IsReservation bool `json:"is_reservation"`
}

// StockReserved подтверждение резервирования одной позиции
type StockReserved struct {
	CorrelationID string    `json:"correlation_id"`
	ProductID     uint      `json:"product_id"`
	Quantity      int       `json:"quantity"`
	ReservedAt    time.Time `json:"reserved_at"`
}

// StockReservationFailed отказ в резервировании позиции
type StockReservationFailed struct {
	CorrelationID string `json:"correlation_id"`
	ProductID     uint   `json:"product_id"`
	Reason        string `json:"reason"`
}

// OrderCompleted терминальное событие успешного завершения саги
type OrderCompleted struct {
	CorrelationID string    `json:"correlation_id"`
	OrderID       uint      `json:"order_id"`
	CompletedAt   time.Time `json:"completed_at"`
}

// OrderFailed терминальное событие неуспешного завершения саги
type OrderFailed struct {
	CorrelationID string    `json:"correlation_id"`
	OrderID       uint      `json:"order_id"`
	Reason        string    `json:"reason"`
	FailedAt      time.Time `json:"failed_at"`
}
