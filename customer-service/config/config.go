package config

import (
	"github.com/director74/order-saga/pkg/config"
)

// Config содержит конфигурацию сервиса покупателей
type Config struct {
	HTTP     config.HTTPConfig
	Postgres config.PostgresConfig
	RabbitMQ config.RabbitMQConfig
	Redis    config.RedisConfig
	Exchange string
}

func NewConfig() (*Config, error) {
	commonConfig := config.LoadCommonConfig("customers", "8081")

	return &Config{
		HTTP:     commonConfig.HTTP,
		Postgres: commonConfig.Postgres,
		RabbitMQ: commonConfig.RabbitMQ,
		Redis:    commonConfig.Redis,
		Exchange: config.GetEnv("SAGA_EXCHANGE", "saga_events"),
	}, nil
}
