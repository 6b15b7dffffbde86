package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"gorm.io/gorm"

	"github.com/director74/order-saga/pkg/idempotency"
	"github.com/director74/order-saga/pkg/saga"
	"github.com/director74/order-saga/product-service/internal/entity"
	"github.com/director74/order-saga/product-service/internal/repo"
)

// MockProductRepository мок репозитория товаров
type MockProductRepository struct {
	mock.Mock
}

func (m *MockProductRepository) Create(ctx context.Context, product *entity.Product) error {
	args := m.Called(ctx, product)
	return args.Error(0)
}

func (m *MockProductRepository) GetByID(ctx context.Context, id uint) (*entity.Product, error) {
	args := m.Called(ctx, id)
	if product := args.Get(0); product != nil {
		return product.(*entity.Product), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockProductRepository) GetBySKU(ctx context.Context, sku string) (*entity.Product, error) {
	args := m.Called(ctx, sku)
	if product := args.Get(0); product != nil {
		return product.(*entity.Product), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockProductRepository) List(ctx context.Context, limit, offset int) ([]entity.Product, int64, error) {
	args := m.Called(ctx, limit, offset)
	if products := args.Get(0); products != nil {
		return products.([]entity.Product), args.Get(1).(int64), args.Error(2)
	}
	return nil, 0, args.Error(2)
}

func (m *MockProductRepository) Update(ctx context.Context, product *entity.Product) error {
	args := m.Called(ctx, product)
	return args.Error(0)
}

func (m *MockProductRepository) Delete(ctx context.Context, id uint) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockProductRepository) ReserveStock(ctx context.Context, productID uint, quantity int) error {
	args := m.Called(ctx, productID, quantity)
	return args.Error(0)
}

func (m *MockProductRepository) ReleaseStock(ctx context.Context, productID uint, quantity int) error {
	args := m.Called(ctx, productID, quantity)
	return args.Error(0)
}

// MockPublisher мок издателя сообщений
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishMessage(exchange, routingKey string, message interface{}) error {
	args := m.Called(exchange, routingKey, message)
	return args.Error(0)
}

func (m *MockPublisher) PublishMessageWithRetry(exchange, routingKey string, message interface{}, retries int) error {
	args := m.Called(exchange, routingKey, message, retries)
	return args.Error(0)
}

func newTestReservation(t *testing.T, productRepo *MockProductRepository, publisher *MockPublisher) *ReservationUseCase {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	processed := idempotency.NewRedisStoreWithClient(client, "product_service")

	logger := log.New(io.Discard, "", 0)
	return NewReservationUseCase(productRepo, publisher, processed, saga.ExchangeName, logger)
}

func reservationCommandBytes(t *testing.T, correlationID string, productID uint, quantity int, isReservation bool) []byte {
	t.Helper()

	env, err := saga.NewEnvelope(correlationID, saga.TypeStockReservation, saga.StockReservation{
		ProductID:     productID,
		Quantity:      quantity,
		IsReservation: isReservation,
	})
	assert.NoError(t, err)
	data, err := json.Marshal(env)
	assert.NoError(t, err)
	return data
}

func TestHandleStockReservation_Success(t *testing.T) {
	productRepo := new(MockProductRepository)
	publisher := new(MockPublisher)
	reservation := newTestReservation(t, productRepo, publisher)

	productRepo.On("ReserveStock", mock.Anything, uint(42), 2).Return(nil)
	publisher.On("PublishMessage", saga.ExchangeName, string(saga.TypeStockReserved),
		mock.MatchedBy(func(msg interface{}) bool {
			env, ok := msg.(saga.Envelope)
			if !ok || env.CorrelationID != "corr-1" {
				return false
			}
			var ev saga.StockReserved
			return saga.DecodePayload(env, &ev) == nil && ev.ProductID == 42 && ev.Quantity == 2
		})).Return(nil)

	err := reservation.HandleStockReservation(reservationCommandBytes(t, "corr-1", 42, 2, true))

	assert.NoError(t, err)
	productRepo.AssertExpectations(t)
	publisher.AssertExpectations(t)
}

func TestHandleStockReservation_InsufficientStock(t *testing.T) {
	productRepo := new(MockProductRepository)
	publisher := new(MockPublisher)
	reservation := newTestReservation(t, productRepo, publisher)

	productRepo.On("ReserveStock", mock.Anything, uint(42), 5).
		Return(&repo.InsufficientStockError{Available: 3, Requested: 5})
	publisher.On("PublishMessage", saga.ExchangeName, string(saga.TypeStockReservationFailed),
		mock.MatchedBy(func(msg interface{}) bool {
			env, ok := msg.(saga.Envelope)
			if !ok {
				return false
			}
			var ev saga.StockReservationFailed
			return saga.DecodePayload(env, &ev) == nil &&
				ev.Reason == "Insufficient stock. Available: 3, Requested: 5"
		})).Return(nil)

	err := reservation.HandleStockReservation(reservationCommandBytes(t, "corr-2", 42, 5, true))

	assert.NoError(t, err)
	publisher.AssertExpectations(t)
}

func TestHandleStockReservation_ProductNotFound(t *testing.T) {
	productRepo := new(MockProductRepository)
	publisher := new(MockPublisher)
	reservation := newTestReservation(t, productRepo, publisher)

	productRepo.On("ReserveStock", mock.Anything, uint(99), 1).Return(gorm.ErrRecordNotFound)
	publisher.On("PublishMessage", saga.ExchangeName, string(saga.TypeStockReservationFailed),
		mock.MatchedBy(func(msg interface{}) bool {
			env, ok := msg.(saga.Envelope)
			if !ok {
				return false
			}
			var ev saga.StockReservationFailed
			return saga.DecodePayload(env, &ev) == nil && ev.Reason == "Product not found"
		})).Return(nil)

	err := reservation.HandleStockReservation(reservationCommandBytes(t, "corr-3", 99, 1, true))

	assert.NoError(t, err)
	publisher.AssertExpectations(t)
}

func TestHandleStockReservation_ReleaseWithoutReply(t *testing.T) {
	productRepo := new(MockProductRepository)
	publisher := new(MockPublisher)
	reservation := newTestReservation(t, productRepo, publisher)

	productRepo.On("ReleaseStock", mock.Anything, uint(42), 2).Return(nil)

	err := reservation.HandleStockReservation(reservationCommandBytes(t, "corr-4", 42, 2, false))

	assert.NoError(t, err)
	productRepo.AssertExpectations(t)
	publisher.AssertNotCalled(t, "PublishMessage", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleStockReservation_RedeliveryDoesNotDoubleReserve(t *testing.T) {
	productRepo := new(MockProductRepository)
	publisher := new(MockPublisher)
	reservation := newTestReservation(t, productRepo, publisher)

	productRepo.On("ReserveStock", mock.Anything, uint(42), 2).Return(nil).Once()
	publisher.On("PublishMessage", saga.ExchangeName, string(saga.TypeStockReserved), mock.Anything).Return(nil).Once()

	msg := reservationCommandBytes(t, "corr-5", 42, 2, true)

	assert.NoError(t, reservation.HandleStockReservation(msg))
	assert.NoError(t, reservation.HandleStockReservation(msg))

	productRepo.AssertNumberOfCalls(t, "ReserveStock", 1)
	publisher.AssertNumberOfCalls(t, "PublishMessage", 1)
}

// Временный сбой до публикации результата не должен помечать команду
// обработанной: повторная доставка обязана довести резервирование до ответа
func TestHandleStockReservation_TransientErrorRetried(t *testing.T) {
	productRepo := new(MockProductRepository)
	publisher := new(MockPublisher)
	reservation := newTestReservation(t, productRepo, publisher)

	productRepo.On("ReserveStock", mock.Anything, uint(42), 2).Return(errors.New("соединение с БД потеряно")).Once()
	productRepo.On("ReserveStock", mock.Anything, uint(42), 2).Return(nil).Once()
	publisher.On("PublishMessage", saga.ExchangeName, string(saga.TypeStockReserved), mock.Anything).Return(nil).Once()

	msg := reservationCommandBytes(t, "corr-7", 42, 2, true)

	assert.Error(t, reservation.HandleStockReservation(msg))
	assert.NoError(t, reservation.HandleStockReservation(msg))

	publisher.AssertNumberOfCalls(t, "PublishMessage", 1)
}

func TestHandleStockReservation_ReserveAndReleaseAreDistinct(t *testing.T) {
	productRepo := new(MockProductRepository)
	publisher := new(MockPublisher)
	reservation := newTestReservation(t, productRepo, publisher)

	productRepo.On("ReserveStock", mock.Anything, uint(42), 2).Return(nil).Once()
	productRepo.On("ReleaseStock", mock.Anything, uint(42), 2).Return(nil).Once()
	publisher.On("PublishMessage", saga.ExchangeName, string(saga.TypeStockReserved), mock.Anything).Return(nil).Once()

	assert.NoError(t, reservation.HandleStockReservation(reservationCommandBytes(t, "corr-6", 42, 2, true)))
	assert.NoError(t, reservation.HandleStockReservation(reservationCommandBytes(t, "corr-6", 42, 2, false)))

	productRepo.AssertExpectations(t)
}
