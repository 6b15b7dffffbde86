package config

import (
	"github.com/director74/order-saga/pkg/config"
)

// Config содержит конфигурацию сервиса заказов
type Config struct {
	HTTP     config.HTTPConfig
	Postgres config.PostgresConfig
	RabbitMQ config.RabbitMQConfig
	JWT      config.JWTConfig
	Exchange string
}

func NewConfig() (*Config, error) {
	commonConfig := config.LoadCommonConfig("orders", "8080")
	jwtConfig := config.LoadJWTConfig("order-saga")

	return &Config{
		HTTP:     commonConfig.HTTP,
		Postgres: commonConfig.Postgres,
		RabbitMQ: commonConfig.RabbitMQ,
		JWT:      *jwtConfig,
		Exchange: config.GetEnv("SAGA_EXCHANGE", "saga_events"),
	}, nil
}
