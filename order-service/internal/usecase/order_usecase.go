package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/director74/order-saga/order-service/internal/entity"
	apperrors "github.com/director74/order-saga/pkg/errors"
	"github.com/director74/order-saga/pkg/saga"
)

// publishRetries число повторов публикации OrderSubmitted
const publishRetries = 3

// OrderUseCase реализует операции над заказами. Создание заказа запускает
// сагу: заказ сначала сохраняется со статусом pending, затем публикуется
// событие OrderSubmitted. Итоговый статус приходит событием саги.
type OrderUseCase struct {
	orderRepo OrderRepository
	userRepo  UserRepository
	publisher MessagePublisher
	exchange  string
	logger    *log.Logger
}

// NewOrderUseCase создает usecase заказов
func NewOrderUseCase(orderRepo OrderRepository, userRepo UserRepository, publisher MessagePublisher, exchange string, logger *log.Logger) *OrderUseCase {
	return &OrderUseCase{
		orderRepo: orderRepo,
		userRepo:  userRepo,
		publisher: publisher,
		exchange:  exchange,
		logger:    logger,
	}
}

// CreateOrder создает заказ и запускает сагу его обработки.
// Порядок строгий: сначала заказ в БД, затем событие в очередь.
func (uc *OrderUseCase) CreateOrder(ctx context.Context, req entity.CreateOrderRequest) (*entity.CreateOrderResponse, error) {
	if _, err := uc.userRepo.GetByID(ctx, req.UserID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFoundError("Пользователь", req.UserID)
		}
		return nil, apperrors.NewInternalServerError(err)
	}

	items := make([]entity.OrderItem, 0, len(req.Items))
	var amount float64
	for _, item := range req.Items {
		items = append(items, entity.OrderItem{
			ProductID: item.ProductID,
			Name:      item.Name,
			Price:     item.Price,
			Quantity:  item.Quantity,
		})
		amount += item.Price * float64(item.Quantity)
	}

	order := &entity.Order{
		UserID:        req.UserID,
		CustomerID:    req.CustomerID,
		CorrelationID: uuid.NewString(),
		Items:         items,
		Amount:        amount,
		Status:        entity.OrderStatusPending,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}
	if err := uc.orderRepo.Create(ctx, order); err != nil {
		return nil, apperrors.NewInternalServerError(err)
	}

	if err := uc.publishOrderSubmitted(order); err != nil {
		// Заказ уже сохранен; без события сага не стартует, поэтому
		// сразу фиксируем отказ вместо вечного pending
		uc.logger.Printf("[ERROR] Не удалось опубликовать OrderSubmitted, correlation_id=%s: %v", order.CorrelationID, err)
		if updErr := uc.orderRepo.UpdateStatus(ctx, order.CorrelationID, entity.OrderStatusFailed, "не удалось запустить обработку заказа"); updErr != nil {
			uc.logger.Printf("[ERROR] Не удалось пометить заказ %d неуспешным: %v", order.ID, updErr)
		}
		return nil, apperrors.NewInternalServerError(err)
	}

	uc.logger.Printf("[Saga] Заказ %d создан, сага запущена, correlation_id=%s", order.ID, order.CorrelationID)
	return &entity.CreateOrderResponse{
		ID:            order.ID,
		CorrelationID: order.CorrelationID,
		CustomerID:    order.CustomerID,
		Items:         order.Items,
		Amount:        order.Amount,
		Status:        order.Status,
		CreatedAt:     order.CreatedAt,
	}, nil
}

func (uc *OrderUseCase) publishOrderSubmitted(order *entity.Order) error {
	items := make([]saga.OrderItemData, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, saga.OrderItemData{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.Price,
		})
	}

	env, err := saga.NewEnvelope(order.CorrelationID, saga.TypeOrderSubmitted, saga.OrderSubmitted{
		CorrelationID: order.CorrelationID,
		OrderID:       order.ID,
		CustomerID:    order.CustomerID,
		Items:         items,
		TotalAmount:   order.Amount,
		SubmittedAt:   order.CreatedAt,
	})
	if err != nil {
		return err
	}
	return uc.publisher.PublishMessageWithRetry(uc.exchange, saga.RoutingKey(saga.TypeOrderSubmitted), env, publishRetries)
}

// GetOrder возвращает заказ по идентификатору
func (uc *OrderUseCase) GetOrder(ctx context.Context, id uint) (*entity.GetOrderResponse, error) {
	order, err := uc.orderRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFoundError("Заказ", id)
		}
		return nil, apperrors.NewInternalServerError(err)
	}
	return toGetOrderResponse(order), nil
}

// ListUserOrders возвращает страницу заказов пользователя
func (uc *OrderUseCase) ListUserOrders(ctx context.Context, userID uint, limit, offset int) (*entity.ListOrdersResponse, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}

	orders, total, err := uc.orderRepo.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, apperrors.NewInternalServerError(err)
	}

	resp := &entity.ListOrdersResponse{
		Orders: make([]entity.GetOrderResponse, 0, len(orders)),
		Total:  total,
	}
	for i := range orders {
		resp.Orders = append(resp.Orders, *toGetOrderResponse(&orders[i]))
	}
	return resp, nil
}

// HandleSagaResult обрабатывает терминальное событие саги и фиксирует итоговый
// статус заказа. Обновление идемпотентно, повторная доставка безвредна.
func (uc *OrderUseCase) HandleSagaResult(data []byte) error {
	ctx := context.Background()

	env, err := saga.ParseEnvelope(data)
	if err != nil {
		uc.logger.Printf("[ERROR] Некорректный конверт сообщения: %v", err)
		return nil
	}

	var status entity.OrderStatus
	var failureReason string

	switch env.Type {
	case saga.TypeOrderCompleted:
		var ev saga.OrderCompleted
		if err := saga.DecodePayload(env, &ev); err != nil {
			uc.logger.Printf("[ERROR] Некорректная полезная нагрузка %s, correlation_id=%s: %v", env.Type, env.CorrelationID, err)
			return nil
		}
		status = entity.OrderStatusCompleted

	case saga.TypeOrderFailed:
		var ev saga.OrderFailed
		if err := saga.DecodePayload(env, &ev); err != nil {
			uc.logger.Printf("[ERROR] Некорректная полезная нагрузка %s, correlation_id=%s: %v", env.Type, env.CorrelationID, err)
			return nil
		}
		status = entity.OrderStatusFailed
		failureReason = ev.Reason

	default:
		uc.logger.Printf("[WARN] Неожиданный тип сообщения %s, correlation_id=%s", env.Type, env.CorrelationID)
		return nil
	}

	err = uc.orderRepo.UpdateStatus(ctx, env.CorrelationID, status, failureReason)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		uc.logger.Printf("[WARN] Результат саги для неизвестного заказа, correlation_id=%s", env.CorrelationID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("ошибка обновления статуса заказа: %w", err)
	}

	uc.logger.Printf("[Saga] Заказ correlation_id=%s переведен в статус %s", env.CorrelationID, status)
	return nil
}

func toGetOrderResponse(order *entity.Order) *entity.GetOrderResponse {
	return &entity.GetOrderResponse{
		ID:            order.ID,
		CorrelationID: order.CorrelationID,
		CustomerID:    order.CustomerID,
		Items:         order.Items,
		Amount:        order.Amount,
		Status:        order.Status,
		FailureReason: order.FailureReason,
		CreatedAt:     order.CreatedAt,
		UpdatedAt:     order.UpdatedAt,
	}
}
