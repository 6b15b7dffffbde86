package usecase

import (
	"fmt"
	"time"

	"github.com/director74/order-saga/pkg/saga"
	"github.com/director74/order-saga/saga-service/internal/entity"
)

// typeDeadlineExceeded внутреннее событие обходчика дедлайнов. На транспорт
// не публикуется, существует только между обходчиком и функцией перехода.
const typeDeadlineExceeded saga.MessageType = "saga.deadline_exceeded"

// TransitionConfig параметры дедлайнов переходов
type TransitionConfig struct {
	ValidateTimeout time.Duration
	ReserveTimeout  time.Duration
}

// Effect исходящее сообщение, которое нужно опубликовать после успешного
// сохранения экземпляра
type Effect struct {
	Type    saga.MessageType
	Payload interface{}
}

// Outcome результат вычисления перехода. Если Changed == false, событие
// проигнорировано (дубликат, терминальное состояние или неожидаемый тип)
// и Note объясняет причину.
type Outcome struct {
	Changed bool
	Effects []Effect
	Note    string
}

func ignored(note string) Outcome {
	return Outcome{Note: note}
}

// Transition вычисляет переход экземпляра саги для входного события.
// Функция детерминирована и не имеет побочных эффектов: она мутирует только
// переданный экземпляр и возвращает сообщения к публикации. Сохранение и
// публикация — забота вызывающего.
func Transition(inst *entity.SagaInstance, msgType saga.MessageType, payload interface{}, now time.Time, cfg TransitionConfig) Outcome {
	if inst.CurrentState.Terminal() {
		return ignored(fmt.Sprintf("сага в терминальном состоянии %s, событие %s проигнорировано", inst.CurrentState, msgType))
	}

	switch inst.CurrentState {
	case entity.SagaStateInitial:
		return transitionFromInitial(inst, msgType, now, cfg)
	case entity.SagaStateValidatingCustomer:
		return transitionFromValidating(inst, msgType, payload, now, cfg)
	case entity.SagaStateReservingStock:
		return transitionFromReserving(inst, msgType, payload, now)
	default:
		return ignored(fmt.Sprintf("неизвестное состояние %s", inst.CurrentState))
	}
}

// Fail принудительно переводит экземпляр в failed с диагностической причиной.
// Используется при ошибках бизнес-логики (например, некорректная полезная
// нагрузка события для существующей саги). Для терминальных саг — no-op.
func Fail(inst *entity.SagaInstance, now time.Time, reason string) Outcome {
	if inst.CurrentState.Terminal() {
		return ignored(fmt.Sprintf("сага в терминальном состоянии %s, принудительный отказ проигнорирован", inst.CurrentState))
	}
	effects := releaseEffects(inst)
	effects = append(effects, failEffect(inst, now, reason))
	markFailed(inst, now, reason)
	return Outcome{Changed: true, Effects: effects}
}

func transitionFromInitial(inst *entity.SagaInstance, msgType saga.MessageType, now time.Time, cfg TransitionConfig) Outcome {
	if msgType != saga.TypeOrderSubmitted {
		return ignored(fmt.Sprintf("событие %s не ожидается в состоянии initial", msgType))
	}

	items, err := inst.LineItemList()
	if err != nil {
		return Fail(inst, now, fmt.Sprintf("некорректные позиции заказа: %v", err))
	}
	if len(items) == 0 {
		return Fail(inst, now, "заказ не содержит позиций")
	}

	inst.CurrentState = entity.SagaStateValidatingCustomer
	setDeadline(inst, now, cfg.ValidateTimeout)

	return Outcome{
		Changed: true,
		Effects: []Effect{{
			Type: saga.TypeValidateCustomer,
			Payload: saga.ValidateCustomer{
				CustomerID: inst.CustomerID,
				OrderID:    inst.OrderID,
			},
		}},
	}
}

func transitionFromValidating(inst *entity.SagaInstance, msgType saga.MessageType, payload interface{}, now time.Time, cfg TransitionConfig) Outcome {
	switch msgType {
	case saga.TypeCustomerValidated:
		ev, ok := payload.(*saga.CustomerValidated)
		if !ok {
			return Fail(inst, now, fmt.Sprintf("неожиданный тип полезной нагрузки для %s", msgType))
		}
		if !ev.IsValid {
			return Fail(inst, now, "Customer validation failed")
		}
		return startReservation(inst, now, cfg)

	case saga.TypeCustomerValidationFailed:
		reason := "Customer validation failed"
		if ev, ok := payload.(*saga.CustomerValidationFailed); ok && ev.Reason != "" {
			reason = ev.Reason
		}
		return Fail(inst, now, reason)

	case typeDeadlineExceeded:
		if !deadlinePassed(inst, now) {
			return ignored("дедлайн еще не наступил")
		}
		return Fail(inst, now, "истек срок ожидания проверки покупателя")

	default:
		return ignored(fmt.Sprintf("событие %s не ожидается в состоянии validating_customer", msgType))
	}
}

func startReservation(inst *entity.SagaInstance, now time.Time, cfg TransitionConfig) Outcome {
	items, err := inst.LineItemList()
	if err != nil {
		return Fail(inst, now, fmt.Sprintf("некорректные позиции заказа: %v", err))
	}

	inst.CustomerValidated = true
	inst.CurrentState = entity.SagaStateReservingStock
	setDeadline(inst, now, cfg.ReserveTimeout)

	effects := make([]Effect, 0, len(items))
	for _, item := range items {
		effects = append(effects, Effect{
			Type: saga.TypeStockReservation,
			Payload: saga.StockReservation{
				ProductID:     item.ProductID,
				Quantity:      item.Quantity,
				IsReservation: true,
			},
		})
	}
	return Outcome{Changed: true, Effects: effects}
}

func transitionFromReserving(inst *entity.SagaInstance, msgType saga.MessageType, payload interface{}, now time.Time) Outcome {
	switch msgType {
	case saga.TypeStockReserved:
		ev, ok := payload.(*saga.StockReserved)
		if !ok {
			return Fail(inst, now, fmt.Sprintf("неожиданный тип полезной нагрузки для %s", msgType))
		}
		if inst.ItemReserved(ev.ProductID) {
			return ignored(fmt.Sprintf("повторное подтверждение резерва товара %d", ev.ProductID))
		}
		known, err := inst.HasLineItem(ev.ProductID)
		if err != nil {
			return Fail(inst, now, fmt.Sprintf("некорректные позиции заказа: %v", err))
		}
		if !known {
			return ignored(fmt.Sprintf("подтверждение резерва товара %d вне позиций заказа", ev.ProductID))
		}
		inst.MarkItemReserved(ev.ProductID)

		done, err := inst.AllItemsReserved()
		if err != nil {
			return Fail(inst, now, fmt.Sprintf("некорректные позиции заказа: %v", err))
		}
		if !done {
			return Outcome{Changed: true}
		}

		inst.StockReserved = true
		inst.CurrentState = entity.SagaStateCompleted
		completedAt := now
		inst.CompletedAt = &completedAt
		inst.Deadline = nil
		return Outcome{
			Changed: true,
			Effects: []Effect{{
				Type: saga.TypeOrderCompleted,
				Payload: saga.OrderCompleted{
					CorrelationID: inst.CorrelationID,
					OrderID:       inst.OrderID,
					CompletedAt:   now,
				},
			}},
		}

	case saga.TypeStockReservationFailed:
		reason := "недостаточно товара на складе"
		if ev, ok := payload.(*saga.StockReservationFailed); ok && ev.Reason != "" {
			reason = ev.Reason
		}
		return Fail(inst, now, reason)

	case typeDeadlineExceeded:
		if !deadlinePassed(inst, now) {
			return ignored("дедлайн еще не наступил")
		}
		return Fail(inst, now, "истек срок ожидания резервирования товара")

	default:
		return ignored(fmt.Sprintf("событие %s не ожидается в состоянии reserving_stock", msgType))
	}
}

// releaseEffects компенсирующие сообщения возврата уже подтвержденных
// резервов. Нечитаемые позиции заказа резервов не имели, поэтому молча
// пропускаются.
func releaseEffects(inst *entity.SagaInstance) []Effect {
	reserved, err := inst.ReservedLineItems()
	if err != nil {
		return nil
	}
	effects := make([]Effect, 0, len(reserved))
	for _, item := range reserved {
		effects = append(effects, Effect{
			Type: saga.TypeStockReservation,
			Payload: saga.StockReservation{
				ProductID:     item.ProductID,
				Quantity:      item.Quantity,
				IsReservation: false,
			},
		})
	}
	return effects
}

func failEffect(inst *entity.SagaInstance, now time.Time, reason string) Effect {
	return Effect{
		Type: saga.TypeOrderFailed,
		Payload: saga.OrderFailed{
			CorrelationID: inst.CorrelationID,
			OrderID:       inst.OrderID,
			Reason:        reason,
			FailedAt:      now,
		},
	}
}

func markFailed(inst *entity.SagaInstance, now time.Time, reason string) {
	inst.CurrentState = entity.SagaStateFailed
	inst.FailureReason = reason
	failedAt := now
	inst.FailedAt = &failedAt
	inst.Deadline = nil
}

// deadlinePassed защищает от гонки обходчика с обычным переходом: между
// выборкой просроченных саг и применением события сага могла перейти в
// следующее состояние с новым дедлайном
func deadlinePassed(inst *entity.SagaInstance, now time.Time) bool {
	return inst.Deadline != nil && !inst.Deadline.After(now)
}

func setDeadline(inst *entity.SagaInstance, now time.Time, timeout time.Duration) {
	if timeout <= 0 {
		inst.Deadline = nil
		return
	}
	deadline := now.Add(timeout)
	inst.Deadline = &deadline
}
