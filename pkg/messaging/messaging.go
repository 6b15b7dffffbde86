package messaging

import (
	"log"

	"github.com/director74/order-saga/pkg/config"
	"github.com/director74/order-saga/pkg/rabbitmq"
	"github.com/director74/order-saga/pkg/saga"
)

// MessagePublisher интерфейс для публикации сообщений
type MessagePublisher interface {
	PublishMessage(exchange, routingKey string, message interface{}) error
	PublishMessageWithRetry(exchange, routingKey string, message interface{}, retries int) error
}

// MessageConsumer интерфейс для получения сообщений
type MessageConsumer interface {
	DeclareQueue(name string) error
	BindQueue(queueName, exchangeName, routingKey string) error
	ConsumeMessages(queueName, consumerName string, handler func([]byte) error) error
}

// MessageBroker объединяет функциональность публикации и обработки сообщений
type MessageBroker interface {
	MessagePublisher
	MessageConsumer
	DeclareExchange(name string, kind string) error
	Close() error
}

// InitRabbitMQ инициализирует подключение к RabbitMQ с общими параметрами
func InitRabbitMQ(cfg config.RabbitMQConfig) (*rabbitmq.RabbitMQ, error) {
	rmqCfg := rabbitmq.Config{
		Host:     cfg.Host,
		Port:     cfg.Port,
		User:     cfg.User,
		Password: cfg.Password,
		VHost:    cfg.VHost,
	}

	return rabbitmq.NewRabbitMQ(rmqCfg)
}

// PublishEnvelope упаковывает полезную нагрузку в конверт саги и публикует её.
// Routing key определяется типом сообщения.
func PublishEnvelope(publisher MessagePublisher, exchange, correlationID string, msgType saga.MessageType, payload interface{}) error {
	env, err := saga.NewEnvelope(correlationID, msgType, payload)
	if err != nil {
		return err
	}

	if err := publisher.PublishMessage(exchange, saga.RoutingKey(msgType), env); err != nil {
		log.Printf("Ошибка при публикации сообщения %s (correlation_id=%s): %v", msgType, correlationID, err)
		return err
	}

	return nil
}

// SetupExchangesAndQueues настраивает exchanges и очереди для сервиса
func SetupExchangesAndQueues(broker MessageBroker, exchanges map[string]string, queues map[string]map[string][]string) error {
	// Настраиваем exchanges
	for name, kind := range exchanges {
		if err := broker.DeclareExchange(name, kind); err != nil {
			return err
		}
	}

	// Настраиваем очереди и их привязки (одна очередь может слушать несколько ключей)
	for queueName, bindings := range queues {
		if err := broker.DeclareQueue(queueName); err != nil {
			return err
		}

		for exchangeName, routingKeys := range bindings {
			for _, routingKey := range routingKeys {
				if err := broker.BindQueue(queueName, exchangeName, routingKey); err != nil {
					return err
				}
			}
		}
	}

	return nil
}
