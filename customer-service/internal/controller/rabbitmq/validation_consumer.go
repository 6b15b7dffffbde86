package rabbitmq

import (
	"github.com/director74/order-saga/customer-service/internal/usecase"
	"github.com/director74/order-saga/pkg/messaging"
	"github.com/director74/order-saga/pkg/saga"
)

const validateQueueName = "customer_service.validate"

// ValidationConsumer консьюмер команд проверки покупателя
type ValidationConsumer struct {
	broker    messaging.MessageBroker
	validator *usecase.ValidationUseCase
	exchange  string
}

// NewValidationConsumer создает консьюмер команд проверки
func NewValidationConsumer(broker messaging.MessageBroker, validator *usecase.ValidationUseCase, exchange string) *ValidationConsumer {
	return &ValidationConsumer{
		broker:    broker,
		validator: validator,
		exchange:  exchange,
	}
}

// Setup объявляет топологию очереди и запускает потребление
func (c *ValidationConsumer) Setup() error {
	exchanges := map[string]string{
		c.exchange: "topic",
	}
	queues := map[string]map[string][]string{
		validateQueueName: {
			c.exchange: {string(saga.TypeValidateCustomer)},
		},
	}
	if err := messaging.SetupExchangesAndQueues(c.broker, exchanges, queues); err != nil {
		return err
	}

	return c.broker.ConsumeMessages(validateQueueName, "customer_service", c.validator.HandleValidateCustomer)
}
