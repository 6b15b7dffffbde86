package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/director74/order-saga/pkg/saga"
	"github.com/director74/order-saga/saga-service/internal/entity"
	"github.com/director74/order-saga/saga-service/internal/repo"
)

// Orchestrator оркестратор саги обработки заказа. Принимает события из
// очереди, вычисляет переход состояния и публикует команды участникам.
// Порядок строгий: сначала сохранение экземпляра, затем публикация.
type Orchestrator struct {
	repo      SagaInstanceRepository
	publisher SagaPublisher
	exchange  string
	cfg       TransitionConfig
	// maxRetries число повторов цикла перечитать-вычислить-сохранить
	// при конфликте версий, прежде чем отдать сообщение транспорту
	maxRetries int
	logger     *log.Logger
}

// NewOrchestrator создает оркестратор саги
func NewOrchestrator(instRepo SagaInstanceRepository, publisher SagaPublisher, exchange string, cfg TransitionConfig, maxRetries int, logger *log.Logger) *Orchestrator {
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &Orchestrator{
		repo:       instRepo,
		publisher:  publisher,
		exchange:   exchange,
		cfg:        cfg,
		maxRetries: maxRetries,
		logger:     logger,
	}
}

// HandleMessage обрабатывает входящее сообщение из очереди оркестратора.
// Возврат ошибки означает nack с повторной доставкой; некорректные сообщения
// поглощаются без ошибки, чтобы не зациклить очередь.
func (o *Orchestrator) HandleMessage(data []byte) error {
	ctx := context.Background()

	env, err := saga.ParseEnvelope(data)
	if err != nil {
		o.logger.Printf("[ERROR] Некорректный конверт сообщения: %v", err)
		return nil
	}

	switch env.Type {
	case saga.TypeOrderSubmitted:
		return o.handleOrderSubmitted(ctx, env)
	case saga.TypeCustomerValidated, saga.TypeCustomerValidationFailed,
		saga.TypeStockReserved, saga.TypeStockReservationFailed:
		payload, perr := decodePayload(env)
		return o.applyEvent(ctx, env.CorrelationID, env.Type, payload, perr)
	default:
		o.logger.Printf("[WARN] Неизвестный тип сообщения %s, correlation_id=%s", env.Type, env.CorrelationID)
		return nil
	}
}

// handleOrderSubmitted создает экземпляр саги и запускает проверку покупателя.
// Повторная доставка OrderSubmitted для существующего correlation_id — no-op.
func (o *Orchestrator) handleOrderSubmitted(ctx context.Context, env saga.Envelope) error {
	var ev saga.OrderSubmitted
	if err := saga.DecodePayload(env, &ev); err != nil {
		o.logger.Printf("[ERROR] Некорректная полезная нагрузка OrderSubmitted, correlation_id=%s: %v", env.CorrelationID, err)
		return nil
	}

	if _, err := o.repo.GetByCorrelationID(ctx, env.CorrelationID); err == nil {
		o.logger.Printf("[Saga] Повторная доставка OrderSubmitted, correlation_id=%s, пропускаем", env.CorrelationID)
		return nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("ошибка проверки существования саги: %w", err)
	}

	inst := &entity.SagaInstance{
		CorrelationID: env.CorrelationID,
		CurrentState:  entity.SagaStateInitial,
		OrderID:       ev.OrderID,
		CustomerID:    ev.CustomerID,
		TotalAmount:   ev.TotalAmount,
		SubmittedAt:   ev.SubmittedAt,
	}
	if err := inst.SetLineItems(ev.Items); err != nil {
		o.logger.Printf("[ERROR] Не удалось сохранить позиции заказа, correlation_id=%s: %v", env.CorrelationID, err)
		return nil
	}

	outcome := Transition(inst, saga.TypeOrderSubmitted, &ev, time.Now(), o.cfg)

	if err := o.repo.Create(ctx, inst); err != nil {
		return fmt.Errorf("ошибка создания экземпляра саги: %w", err)
	}
	o.logger.Printf("[Saga] Сага запущена, correlation_id=%s, order_id=%d, состояние %s",
		inst.CorrelationID, inst.OrderID, inst.CurrentState)

	return o.publishEffects(inst, outcome.Effects)
}

// applyEvent применяет событие к существующему экземпляру с повторами при
// конфликте версий. perr != nil означает, что полезная нагрузка события не
// разобралась: существующая сага при этом принудительно проваливается.
func (o *Orchestrator) applyEvent(ctx context.Context, correlationID string, msgType saga.MessageType, payload interface{}, perr error) error {
	for attempt := 1; attempt <= o.maxRetries; attempt++ {
		inst, err := o.repo.GetByCorrelationID(ctx, correlationID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Событие-сирота: экземпляра нет и не будет
			o.logger.Printf("[WARN] Событие %s для неизвестной саги correlation_id=%s, пропускаем", msgType, correlationID)
			return nil
		}
		if err != nil {
			return fmt.Errorf("ошибка загрузки экземпляра саги: %w", err)
		}

		expected := inst.Version
		now := time.Now()

		var outcome Outcome
		if perr != nil {
			outcome = Fail(inst, now, fmt.Sprintf("некорректная полезная нагрузка %s: %v", msgType, perr))
		} else {
			outcome = Transition(inst, msgType, payload, now, o.cfg)
		}

		if !outcome.Changed {
			o.logger.Printf("[Saga] correlation_id=%s: %s", correlationID, outcome.Note)
			return nil
		}

		err = o.repo.Save(ctx, inst, expected)
		if errors.Is(err, repo.ErrVersionConflict) {
			o.logger.Printf("[WARN] Конфликт версий саги correlation_id=%s (попытка %d/%d), перечитываем",
				correlationID, attempt, o.maxRetries)
			continue
		}
		if err != nil {
			return fmt.Errorf("ошибка сохранения экземпляра саги: %w", err)
		}

		o.logger.Printf("[Saga] correlation_id=%s: событие %s, состояние %s", correlationID, msgType, inst.CurrentState)
		return o.publishEffects(inst, outcome.Effects)
	}

	return fmt.Errorf("конфликт версий саги correlation_id=%s не разрешен за %d попыток", correlationID, o.maxRetries)
}

// publishEffects публикует исходящие сообщения перехода. Экземпляр к этому
// моменту уже сохранен: при ошибке публикации транспорт редоставит входящее
// событие, повторное вычисление будет no-op, а зависшую сагу добьет
// обходчик дедлайнов.
func (o *Orchestrator) publishEffects(inst *entity.SagaInstance, effects []Effect) error {
	for _, effect := range effects {
		env, err := saga.NewEnvelope(inst.CorrelationID, effect.Type, effect.Payload)
		if err != nil {
			o.logger.Printf("[ERROR] Ошибка сборки конверта %s, correlation_id=%s: %v", effect.Type, inst.CorrelationID, err)
			continue
		}
		if err := o.publisher.PublishMessage(o.exchange, saga.RoutingKey(effect.Type), env); err != nil {
			return fmt.Errorf("ошибка публикации %s: %w", effect.Type, err)
		}
	}
	return nil
}

// GetInstance возвращает экземпляр саги для HTTP API
func (o *Orchestrator) GetInstance(ctx context.Context, correlationID string) (*entity.SagaInstance, error) {
	return o.repo.GetByCorrelationID(ctx, correlationID)
}

func decodePayload(env saga.Envelope) (interface{}, error) {
	switch env.Type {
	case saga.TypeCustomerValidated:
		var ev saga.CustomerValidated
		if err := saga.DecodePayload(env, &ev); err != nil {
			return nil, err
		}
		return &ev, nil
	case saga.TypeCustomerValidationFailed:
		var ev saga.CustomerValidationFailed
		if err := saga.DecodePayload(env, &ev); err != nil {
			return nil, err
		}
		return &ev, nil
	case saga.TypeStockReserved:
		var ev saga.StockReserved
		if err := saga.DecodePayload(env, &ev); err != nil {
			return nil, err
		}
		return &ev, nil
	case saga.TypeStockReservationFailed:
		var ev saga.StockReservationFailed
		if err := saga.DecodePayload(env, &ev); err != nil {
			return nil, err
		}
		return &ev, nil
	default:
		return nil, fmt.Errorf("неподдерживаемый тип сообщения %s", env.Type)
	}
}
