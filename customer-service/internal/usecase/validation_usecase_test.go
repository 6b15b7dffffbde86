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

	"github.com/director74/order-saga/customer-service/internal/entity"
	"github.com/director74/order-saga/pkg/idempotency"
	"github.com/director74/order-saga/pkg/saga"
)

// MockCustomerRepository мок репозитория покупателей
type MockCustomerRepository struct {
	mock.Mock
}

func (m *MockCustomerRepository) Create(ctx context.Context, customer *entity.Customer) error {
	args := m.Called(ctx, customer)
	return args.Error(0)
}

func (m *MockCustomerRepository) GetByID(ctx context.Context, id uint) (*entity.Customer, error) {
	args := m.Called(ctx, id)
	if customer := args.Get(0); customer != nil {
		return customer.(*entity.Customer), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockCustomerRepository) GetByEmail(ctx context.Context, email string) (*entity.Customer, error) {
	args := m.Called(ctx, email)
	if customer := args.Get(0); customer != nil {
		return customer.(*entity.Customer), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockCustomerRepository) List(ctx context.Context, limit, offset int) ([]entity.Customer, int64, error) {
	args := m.Called(ctx, limit, offset)
	if customers := args.Get(0); customers != nil {
		return customers.([]entity.Customer), args.Get(1).(int64), args.Error(2)
	}
	return nil, 0, args.Error(2)
}

func (m *MockCustomerRepository) Update(ctx context.Context, customer *entity.Customer) error {
	args := m.Called(ctx, customer)
	return args.Error(0)
}

func (m *MockCustomerRepository) Delete(ctx context.Context, id uint) error {
	args := m.Called(ctx, id)
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

func newTestValidator(t *testing.T, customerRepo *MockCustomerRepository, publisher *MockPublisher) *ValidationUseCase {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	processed := idempotency.NewRedisStoreWithClient(client, "customer_service")

	logger := log.New(io.Discard, "", 0)
	return NewValidationUseCase(customerRepo, publisher, processed, saga.ExchangeName, logger)
}

func validateCommandBytes(t *testing.T, correlationID string, customerID uint) []byte {
	t.Helper()

	env, err := saga.NewEnvelope(correlationID, saga.TypeValidateCustomer, saga.ValidateCustomer{
		CustomerID: customerID,
		OrderID:    10,
	})
	assert.NoError(t, err)
	data, err := json.Marshal(env)
	assert.NoError(t, err)
	return data
}

func envelopeOfType(msgType saga.MessageType) interface{} {
	return mock.MatchedBy(func(msg interface{}) bool {
		env, ok := msg.(saga.Envelope)
		return ok && env.Type == msgType
	})
}

func TestHandleValidateCustomer_ActiveCustomer(t *testing.T) {
	customerRepo := new(MockCustomerRepository)
	publisher := new(MockPublisher)
	validator := newTestValidator(t, customerRepo, publisher)

	customerRepo.On("GetByID", mock.Anything, uint(7)).Return(&entity.Customer{
		ID: 7, Name: "Иван Петров", Email: "ivan@example.com", IsActive: true,
	}, nil)
	publisher.On("PublishMessage", saga.ExchangeName, string(saga.TypeCustomerValidated),
		mock.MatchedBy(func(msg interface{}) bool {
			env, ok := msg.(saga.Envelope)
			if !ok || env.Type != saga.TypeCustomerValidated {
				return false
			}
			var ev saga.CustomerValidated
			return saga.DecodePayload(env, &ev) == nil && ev.IsValid && ev.CustomerID == 7
		})).Return(nil)

	err := validator.HandleValidateCustomer(validateCommandBytes(t, "corr-1", 7))

	assert.NoError(t, err)
	customerRepo.AssertExpectations(t)
	publisher.AssertExpectations(t)
}

func TestHandleValidateCustomer_InactiveCustomer(t *testing.T) {
	customerRepo := new(MockCustomerRepository)
	publisher := new(MockPublisher)
	validator := newTestValidator(t, customerRepo, publisher)

	customerRepo.On("GetByID", mock.Anything, uint(8)).Return(&entity.Customer{
		ID: 8, Name: "Заблокированный", Email: "blocked@example.com", IsActive: false,
	}, nil)
	publisher.On("PublishMessage", saga.ExchangeName, string(saga.TypeCustomerValidated),
		mock.MatchedBy(func(msg interface{}) bool {
			env, ok := msg.(saga.Envelope)
			if !ok {
				return false
			}
			var ev saga.CustomerValidated
			return saga.DecodePayload(env, &ev) == nil && !ev.IsValid
		})).Return(nil)

	err := validator.HandleValidateCustomer(validateCommandBytes(t, "corr-2", 8))

	assert.NoError(t, err)
	publisher.AssertExpectations(t)
}

func TestHandleValidateCustomer_NotFound(t *testing.T) {
	customerRepo := new(MockCustomerRepository)
	publisher := new(MockPublisher)
	validator := newTestValidator(t, customerRepo, publisher)

	customerRepo.On("GetByID", mock.Anything, uint(99)).Return(nil, gorm.ErrRecordNotFound)
	publisher.On("PublishMessage", saga.ExchangeName, string(saga.TypeCustomerValidationFailed),
		mock.MatchedBy(func(msg interface{}) bool {
			env, ok := msg.(saga.Envelope)
			if !ok {
				return false
			}
			var ev saga.CustomerValidationFailed
			return saga.DecodePayload(env, &ev) == nil && ev.Reason == "Customer not found"
		})).Return(nil)

	err := validator.HandleValidateCustomer(validateCommandBytes(t, "corr-3", 99))

	assert.NoError(t, err)
	publisher.AssertExpectations(t)
}

func TestHandleValidateCustomer_RedeliverySkipped(t *testing.T) {
	customerRepo := new(MockCustomerRepository)
	publisher := new(MockPublisher)
	validator := newTestValidator(t, customerRepo, publisher)

	customerRepo.On("GetByID", mock.Anything, uint(7)).Return(&entity.Customer{
		ID: 7, IsActive: true,
	}, nil).Once()
	publisher.On("PublishMessage", saga.ExchangeName, string(saga.TypeCustomerValidated), envelopeOfType(saga.TypeCustomerValidated)).Return(nil).Once()

	msg := validateCommandBytes(t, "corr-4", 7)

	assert.NoError(t, validator.HandleValidateCustomer(msg))
	assert.NoError(t, validator.HandleValidateCustomer(msg))

	customerRepo.AssertNumberOfCalls(t, "GetByID", 1)
	publisher.AssertNumberOfCalls(t, "PublishMessage", 1)
}

// Временный сбой до публикации результата не должен помечать команду
// обработанной: повторная доставка обязана довести проверку до ответа
func TestHandleValidateCustomer_TransientRepoErrorRetried(t *testing.T) {
	customerRepo := new(MockCustomerRepository)
	publisher := new(MockPublisher)
	validator := newTestValidator(t, customerRepo, publisher)

	customerRepo.On("GetByID", mock.Anything, uint(7)).Return(nil, errors.New("соединение с БД потеряно")).Once()
	customerRepo.On("GetByID", mock.Anything, uint(7)).Return(&entity.Customer{
		ID: 7, IsActive: true,
	}, nil).Once()
	publisher.On("PublishMessage", saga.ExchangeName, string(saga.TypeCustomerValidated), envelopeOfType(saga.TypeCustomerValidated)).Return(nil).Once()

	msg := validateCommandBytes(t, "corr-5", 7)

	assert.Error(t, validator.HandleValidateCustomer(msg))
	assert.NoError(t, validator.HandleValidateCustomer(msg))

	publisher.AssertNumberOfCalls(t, "PublishMessage", 1)
}

func TestHandleValidateCustomer_PublishFailureRetried(t *testing.T) {
	customerRepo := new(MockCustomerRepository)
	publisher := new(MockPublisher)
	validator := newTestValidator(t, customerRepo, publisher)

	customerRepo.On("GetByID", mock.Anything, uint(7)).Return(&entity.Customer{
		ID: 7, IsActive: true,
	}, nil).Twice()
	publisher.On("PublishMessage", saga.ExchangeName, string(saga.TypeCustomerValidated), mock.Anything).
		Return(errors.New("брокер недоступен")).Once()
	publisher.On("PublishMessage", saga.ExchangeName, string(saga.TypeCustomerValidated), mock.Anything).
		Return(nil).Once()

	msg := validateCommandBytes(t, "corr-6", 7)

	assert.Error(t, validator.HandleValidateCustomer(msg))
	assert.NoError(t, validator.HandleValidateCustomer(msg))

	publisher.AssertNumberOfCalls(t, "PublishMessage", 2)
}

func TestHandleValidateCustomer_MalformedEnvelopeAbsorbed(t *testing.T) {
	customerRepo := new(MockCustomerRepository)
	publisher := new(MockPublisher)
	validator := newTestValidator(t, customerRepo, publisher)

	err := validator.HandleValidateCustomer([]byte(`не json`))

	assert.NoError(t, err)
	customerRepo.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
	publisher.AssertNotCalled(t, "PublishMessage", mock.Anything, mock.Anything, mock.Anything)
}
