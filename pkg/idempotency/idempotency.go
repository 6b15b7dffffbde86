package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/director74/order-saga/pkg/config"
)

// Store журнал обработанных сообщений. При доставке at-least-once участник
// саги проверяет Processed перед выполнением побочного эффекта и вызывает
// MarkProcessed после успешной публикации результата: сбой между ними
// приводит к повторной доставке и полному повтору обработки.
type Store interface {
	// Processed сообщает, был ли ключ помечен обработанным
	Processed(ctx context.Context, key string) (bool, error)
	// MarkProcessed атомарно помечает ключ обработанным. Возвращает false,
	// если ключ уже был помечен ранее (повторная доставка).
	MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Close() error
}

const connectTimeout = 5 * time.Second

type redisStore struct {
	client      *redis.Client
	serviceName string
}

// NewRedisStore создает журнал обработанных сообщений поверх Redis
func NewRedisStore(cfg config.RedisConfig, serviceName string) (Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ошибка подключения к Redis %s: %w", cfg.Addr, err)
	}
	return &redisStore{client: client, serviceName: serviceName}, nil
}

// NewRedisStoreWithClient создает журнал поверх готового клиента (для тестов)
func NewRedisStoreWithClient(client *redis.Client, serviceName string) Store {
	return &redisStore{client: client, serviceName: serviceName}
}

func (s *redisStore) Processed(ctx context.Context, key string) (bool, error) {
	fullKey := fmt.Sprintf("%s:processed:%s", s.serviceName, key)
	n, err := s.client.Exists(ctx, fullKey).Result()
	if err != nil {
		return false, fmt.Errorf("ошибка чтения ключа идемпотентности %s: %w", fullKey, err)
	}
	return n > 0, nil
}

func (s *redisStore) MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	fullKey := fmt.Sprintf("%s:processed:%s", s.serviceName, key)
	ok, err := s.client.SetNX(ctx, fullKey, 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("ошибка записи ключа идемпотентности %s: %w", fullKey, err)
	}
	return ok, nil
}

func (s *redisStore) Close() error {
	return s.client.Close()
}
