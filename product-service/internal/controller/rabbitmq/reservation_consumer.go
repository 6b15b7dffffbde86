package rabbitmq

import (
	"github.com/director74/order-saga/pkg/messaging"
	"github.com/director74/order-saga/pkg/saga"
	"github.com/director74/order-saga/product-service/internal/usecase"
)

const reservationQueueName = "product_service.reservation"

// ReservationConsumer консьюмер команд резервирования товара
type ReservationConsumer struct {
	broker      messaging.MessageBroker
	reservation *usecase.ReservationUseCase
	exchange    string
}

// NewReservationConsumer создает консьюмер команд резервирования
func NewReservationConsumer(broker messaging.MessageBroker, reservation *usecase.ReservationUseCase, exchange string) *ReservationConsumer {
	return &ReservationConsumer{
		broker:      broker,
		reservation: reservation,
		exchange:    exchange,
	}
}

// Setup объявляет топологию очереди и запускает потребление.
// Резерв и возврат резерва идут одним routing key: направление операции
// закодировано в полезной нагрузке.
func (c *ReservationConsumer) Setup() error {
	exchanges := map[string]string{
		c.exchange: "topic",
	}
	queues := map[string]map[string][]string{
		reservationQueueName: {
			c.exchange: {string(saga.TypeStockReservation)},
		},
	}
	if err := messaging.SetupExchangesAndQueues(c.broker, exchanges, queues); err != nil {
		return err
	}

	return c.broker.ConsumeMessages(reservationQueueName, "product_service", c.reservation.HandleStockReservation)
}
