package rabbitmq

import (
	"github.com/director74/order-saga/pkg/messaging"
	"github.com/director74/order-saga/pkg/saga"
	"github.com/director74/order-saga/saga-service/internal/usecase"
)

const sagaQueueName = "saga_service.events"

// SagaConsumer консьюмер событий саги из RabbitMQ
type SagaConsumer struct {
	broker       messaging.MessageBroker
	orchestrator *usecase.Orchestrator
	exchange     string
}

// NewSagaConsumer создает консьюмер событий саги
func NewSagaConsumer(broker messaging.MessageBroker, orchestrator *usecase.Orchestrator, exchange string) *SagaConsumer {
	return &SagaConsumer{
		broker:       broker,
		orchestrator: orchestrator,
		exchange:     exchange,
	}
}

// Setup объявляет топологию очереди оркестратора и запускает потребление.
// В очередь стекаются запуск саги и все ответы участников.
func (c *SagaConsumer) Setup() error {
	exchanges := map[string]string{
		c.exchange: "topic",
	}
	queues := map[string]map[string][]string{
		sagaQueueName: {
			c.exchange: {
				string(saga.TypeOrderSubmitted),
				string(saga.TypeCustomerValidated),
				string(saga.TypeCustomerValidationFailed),
				string(saga.TypeStockReserved),
				string(saga.TypeStockReservationFailed),
			},
		},
	}
	if err := messaging.SetupExchangesAndQueues(c.broker, exchanges, queues); err != nil {
		return err
	}

	return c.broker.ConsumeMessages(sagaQueueName, "saga_service", c.orchestrator.HandleMessage)
}
