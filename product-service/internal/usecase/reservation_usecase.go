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
	"github.com/director74/order-saga/product-service/internal/repo"
)

// processedTTL срок хранения отметки об обработанном сообщении
const processedTTL = 24 * time.Hour

// ReservationUseCase участник саги: резервирует и возвращает остатки товара
// по командам оркестратора. Команда меняет состояние склада, поэтому журнал
// обработанных сообщений обязателен: повторная доставка не должна списать
// остаток дважды.
type ReservationUseCase struct {
	productRepo ProductRepository
	publisher   MessagePublisher
	processed   idempotency.Store
	exchange    string
	logger      *log.Logger
}

// NewReservationUseCase создает участника резервирования товара
func NewReservationUseCase(productRepo ProductRepository, publisher MessagePublisher, processed idempotency.Store, exchange string, logger *log.Logger) *ReservationUseCase {
	return &ReservationUseCase{
		productRepo: productRepo,
		publisher:   publisher,
		processed:   processed,
		exchange:    exchange,
		logger:      logger,
	}
}

// HandleStockReservation обрабатывает команду резервирования или возврата.
// Возврат ошибки означает повторную доставку транспортом.
func (uc *ReservationUseCase) HandleStockReservation(data []byte) error {
	ctx := context.Background()

	env, err := saga.ParseEnvelope(data)
	if err != nil {
		uc.logger.Printf("[ERROR] Некорректный конверт сообщения: %v", err)
		return nil
	}
	if env.Type != saga.TypeStockReservation {
		uc.logger.Printf("[WARN] Неожиданный тип сообщения %s, correlation_id=%s", env.Type, env.CorrelationID)
		return nil
	}

	var cmd saga.StockReservation
	if err := saga.DecodePayload(env, &cmd); err != nil {
		uc.logger.Printf("[ERROR] Некорректная полезная нагрузка %s, correlation_id=%s: %v", env.Type, env.CorrelationID, err)
		return nil
	}

	// Резерв и возврат одной позиции — разные операции, у каждой свой ключ
	key := fmt.Sprintf("%s:%s:%d:%t", env.Type, env.CorrelationID, cmd.ProductID, cmd.IsReservation)
	seen, err := uc.processed.Processed(ctx, key)
	if err != nil {
		return fmt.Errorf("ошибка журнала обработанных сообщений: %w", err)
	}
	if seen {
		uc.logger.Printf("[Saga] Повторная доставка %s, correlation_id=%s, товар %d, пропускаем", env.Type, env.CorrelationID, cmd.ProductID)
		return nil
	}

	if cmd.IsReservation {
		err = uc.reserve(ctx, env.CorrelationID, cmd)
	} else {
		err = uc.release(ctx, env.CorrelationID, cmd)
	}
	if err != nil {
		return err
	}

	// Отметка ставится после публикации результата: временный сбой до этой
	// точки означает повторную доставку и полный повтор операции. Дубликат
	// ответа оркестратор отсеивает сам.
	if _, err := uc.processed.MarkProcessed(ctx, key, processedTTL); err != nil {
		uc.logger.Printf("[WARN] Не удалось записать отметку об обработке %s: %v", key, err)
	}
	return nil
}

func (uc *ReservationUseCase) reserve(ctx context.Context, correlationID string, cmd saga.StockReservation) error {
	err := uc.productRepo.ReserveStock(ctx, cmd.ProductID, cmd.Quantity)

	var insufficient *repo.InsufficientStockError
	switch {
	case err == nil:
		uc.logger.Printf("[Saga] Товар %d зарезервирован (%d шт.), correlation_id=%s", cmd.ProductID, cmd.Quantity, correlationID)
		return messaging.PublishEnvelope(uc.publisher, uc.exchange, correlationID, saga.TypeStockReserved, saga.StockReserved{
			CorrelationID: correlationID,
			ProductID:     cmd.ProductID,
			Quantity:      cmd.Quantity,
			ReservedAt:    time.Now(),
		})

	case errors.Is(err, gorm.ErrRecordNotFound):
		uc.logger.Printf("[Saga] Товар %d не найден, correlation_id=%s", cmd.ProductID, correlationID)
		return uc.publishReservationFailed(correlationID, cmd.ProductID, "Product not found")

	case errors.As(err, &insufficient):
		uc.logger.Printf("[Saga] Недостаточно товара %d: доступно %d, запрошено %d, correlation_id=%s",
			cmd.ProductID, insufficient.Available, insufficient.Requested, correlationID)
		reason := fmt.Sprintf("Insufficient stock. Available: %d, Requested: %d", insufficient.Available, insufficient.Requested)
		return uc.publishReservationFailed(correlationID, cmd.ProductID, reason)

	default:
		return fmt.Errorf("ошибка резервирования товара %d: %w", cmd.ProductID, err)
	}
}

// release возвращает резерв. Ответное событие не публикуется: компенсация
// выполняется после решения о судьбе саги и оркестратору не интересна.
func (uc *ReservationUseCase) release(ctx context.Context, correlationID string, cmd saga.StockReservation) error {
	err := uc.productRepo.ReleaseStock(ctx, cmd.ProductID, cmd.Quantity)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		uc.logger.Printf("[WARN] Возврат резерва: товар %d не найден, correlation_id=%s", cmd.ProductID, correlationID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("ошибка возврата резерва товара %d: %w", cmd.ProductID, err)
	}

	uc.logger.Printf("[Saga] Резерв товара %d возвращен (%d шт.), correlation_id=%s", cmd.ProductID, cmd.Quantity, correlationID)
	return nil
}

func (uc *ReservationUseCase) publishReservationFailed(correlationID string, productID uint, reason string) error {
	return messaging.PublishEnvelope(uc.publisher, uc.exchange, correlationID, saga.TypeStockReservationFailed, saga.StockReservationFailed{
		CorrelationID: correlationID,
		ProductID:     productID,
		Reason:        reason,
	})
}
