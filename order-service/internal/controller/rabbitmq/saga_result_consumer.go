package rabbitmq

import (
	"github.com/director74/order-saga/order-service/internal/usecase"
	"github.com/director74/order-saga/pkg/messaging"
	"github.com/director74/order-saga/pkg/saga"
)

const resultQueueName = "order_service.results"

// SagaResultConsumer консьюмер терминальных событий саги
type SagaResultConsumer struct {
	broker   messaging.MessageBroker
	orders   *usecase.OrderUseCase
	exchange string
}

// NewSagaResultConsumer создает консьюмер результатов саги
func NewSagaResultConsumer(broker messaging.MessageBroker, orders *usecase.OrderUseCase, exchange string) *SagaResultConsumer {
	return &SagaResultConsumer{
		broker:   broker,
		orders:   orders,
		exchange: exchange,
	}
}

// Setup объявляет топологию очереди и запускает потребление
func (c *SagaResultConsumer) Setup() error {
	exchanges := map[string]string{
		c.exchange: "topic",
	}
	queues := map[string]map[string][]string{
		resultQueueName: {
			c.exchange: {
				string(saga.TypeOrderCompleted),
				string(saga.TypeOrderFailed),
			},
		},
	}
	if err := messaging.SetupExchangesAndQueues(c.broker, exchanges, queues); err != nil {
		return err
	}

	return c.broker.ConsumeMessages(resultQueueName, "order_service", c.orders.HandleSagaResult)
}
