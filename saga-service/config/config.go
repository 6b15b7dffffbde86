package config

import (
	"github.com/director74/order-saga/pkg/config"
)

// Config содержит конфигурацию сервиса оркестратора саги
type Config struct {
	HTTP     config.HTTPConfig
	Postgres config.PostgresConfig
	RabbitMQ config.RabbitMQConfig
	Saga     config.SagaConfig
}

func NewConfig() (*Config, error) {
	commonConfig := config.LoadCommonConfig("saga", "8084")
	sagaConfig := config.LoadSagaConfig()

	return &Config{
		HTTP:     commonConfig.HTTP,
		Postgres: commonConfig.Postgres,
		RabbitMQ: commonConfig.RabbitMQ,
		Saga:     *sagaConfig,
	}, nil
}
