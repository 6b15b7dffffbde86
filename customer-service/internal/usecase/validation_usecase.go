package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/director74/order-saga/pkg/idempotency"
	"github.com/director74/order-saga/pkg/messaging"
	"github.com/director74/order-saga/pkg/saga"
)

// processedTTL срок хранения отметки об обработанном сообщении
const processedTTL = 24 * time.Hour

// ValidationUseCase участник саги: проверяет покупателя по команде оркестратора
// и публикует результат. Доставка "минимум один раз", повторы отсеиваются
// журналом обработанных сообщений в Redis.
type ValidationUseCase struct {
	customerRepo CustomerRepository
	publisher    MessagePublisher
	processed    idempotency.Store
	exchange     string
	logger       *log.Logger
}

// NewValidationUseCase создает участника проверки покупателя
func NewValidationUseCase(customerRepo CustomerRepository, publisher MessagePublisher, processed idempotency.Store, exchange string, logger *log.Logger) *ValidationUseCase {
	return &ValidationUseCase{
		customerRepo: customerRepo,
		publisher:    publisher,
		processed:    processed,
		exchange:     exchange,
		logger:       logger,
	}
}

// HandleValidateCustomer обрабатывает команду проверки покупателя.
// Возврат ошибки означает повторную доставку транспортом.
func (uc *ValidationUseCase) HandleValidateCustomer(data []byte) error {
	ctx := context.Background()

	env, err := saga.ParseEnvelope(data)
	if err != nil {
		uc.logger.Printf("[ERROR] Некорректный конверт сообщения: %v", err)
		return nil
	}
	if env.Type != saga.TypeValidateCustomer {
		uc.logger.Printf("[WARN] Неожиданный тип сообщения %s, correlation_id=%s", env.Type, env.CorrelationID)
		return nil
	}

	var cmd saga.ValidateCustomer
	if err := saga.DecodePayload(env, &cmd); err != nil {
		uc.logger.Printf("[ERROR] Некорректная полезная нагрузка %s, correlation_id=%s: %v", env.Type, env.CorrelationID, err)
		return nil
	}

	key := fmt.Sprintf("%s:%s", env.Type, env.CorrelationID)
	seen, err := uc.processed.Processed(ctx, key)
	if err != nil {
		return fmt.Errorf("ошибка журнала обработанных сообщений: %w", err)
	}
	if seen {
		uc.logger.Printf("[Saga] Повторная доставка %s, correlation_id=%s, пропускаем", env.Type, env.CorrelationID)
		return nil
	}

	if err := uc.validate(ctx, env.CorrelationID, cmd); err != nil {
		return err
	}

	// Отметка ставится после публикации результата: временный сбой до этой
	// точки означает повторную доставку и полный повтор проверки. Дубликат
	// ответа оркестратор отсеивает сам.
	if _, err := uc.processed.MarkProcessed(ctx, key, processedTTL); err != nil {
		uc.logger.Printf("[WARN] Не удалось записать отметку об обработке %s: %v", key, err)
	}
	return nil
}

func (uc *ValidationUseCase) validate(ctx context.Context, correlationID string, cmd saga.ValidateCustomer) error {
	customer, err := uc.customerRepo.GetByID(ctx, cmd.CustomerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			uc.logger.Printf("[Saga] Покупатель %d не найден, correlation_id=%s", cmd.CustomerID, correlationID)
			return uc.publishValidationFailed(correlationID, cmd.CustomerID, "Customer not found")
		}
		return fmt.Errorf("ошибка поиска покупателя: %w", err)
	}

	uc.logger.Printf("[Saga] Покупатель %d проверен, активен=%t, correlation_id=%s", customer.ID, customer.IsActive, correlationID)
	return messaging.PublishEnvelope(uc.publisher, uc.exchange, correlationID, saga.TypeCustomerValidated, saga.CustomerValidated{
		CorrelationID: correlationID,
		CustomerID:    customer.ID,
		IsValid:       customer.IsActive,
		ValidatedAt:   time.Now(),
	})
}

func (uc *ValidationUseCase) publishValidationFailed(correlationID string, customerID uint, reason string) error {
	return messaging.PublishEnvelope(uc.publisher, uc.exchange, correlationID, saga.TypeCustomerValidationFailed, saga.CustomerValidationFailed{
		CorrelationID: correlationID,
		CustomerID:    customerID,
		Reason:        reason,
	})
}
