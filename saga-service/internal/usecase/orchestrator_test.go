package usecase

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"gorm.io/gorm"

	"github.com/director74/order-saga/pkg/saga"
	"github.com/director74/order-saga/saga-service/internal/entity"
	"github.com/director74/order-saga/saga-service/internal/repo"
)

// MockSagaInstanceRepository мок репозитория экземпляров саг
type MockSagaInstanceRepository struct {
	mock.Mock
}

func (m *MockSagaInstanceRepository) Create(ctx context.Context, inst *entity.SagaInstance) error {
	args := m.Called(ctx, inst)
	return args.Error(0)
}

func (m *MockSagaInstanceRepository) GetByCorrelationID(ctx context.Context, correlationID string) (*entity.SagaInstance, error) {
	args := m.Called(ctx, correlationID)
	if inst := args.Get(0); inst != nil {
		return inst.(*entity.SagaInstance), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockSagaInstanceRepository) Save(ctx context.Context, inst *entity.SagaInstance, expectedVersion int) error {
	args := m.Called(ctx, inst, expectedVersion)
	return args.Error(0)
}

func (m *MockSagaInstanceRepository) FindExpired(ctx context.Context, now time.Time, limit int) ([]entity.SagaInstance, error) {
	args := m.Called(ctx, now, limit)
	if instances := args.Get(0); instances != nil {
		return instances.([]entity.SagaInstance), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockPublisher мок издателя сообщений
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishMessage(exchange, routingKey string, message interface{}) error {
	args := m.Called(exchange, routingKey, message)
	return args.Error(0)
}

func newTestOrchestrator(instRepo *MockSagaInstanceRepository, publisher *MockPublisher) *Orchestrator {
	logger := log.New(io.Discard, "", 0)
	return NewOrchestrator(instRepo, publisher, saga.ExchangeName, testCfg, 3, logger)
}

func mustEnvelopeBytes(t *testing.T, correlationID string, msgType saga.MessageType, payload interface{}) []byte {
	t.Helper()

	env, err := saga.NewEnvelope(correlationID, msgType, payload)
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

func TestHandleMessage_OrderSubmitted_CreatesSaga(t *testing.T) {
	instRepo := new(MockSagaInstanceRepository)
	publisher := new(MockPublisher)
	orchestrator := newTestOrchestrator(instRepo, publisher)

	instRepo.On("GetByCorrelationID", mock.Anything, "corr-1").Return(nil, gorm.ErrRecordNotFound)
	instRepo.On("Create", mock.Anything, mock.AnythingOfType("*entity.SagaInstance")).Return(nil)
	publisher.On("PublishMessage", saga.ExchangeName, string(saga.TypeValidateCustomer), envelopeOfType(saga.TypeValidateCustomer)).Return(nil)

	msg := mustEnvelopeBytes(t, "corr-1", saga.TypeOrderSubmitted, saga.OrderSubmitted{
		CorrelationID: "corr-1",
		OrderID:       10,
		CustomerID:    7,
		Items:         twoItems(),
		TotalAmount:   250.50,
		SubmittedAt:   time.Now(),
	})

	err := orchestrator.HandleMessage(msg)

	assert.NoError(t, err)
	instRepo.AssertExpectations(t)
	publisher.AssertExpectations(t)

	created := instRepo.Calls[1].Arguments.Get(1).(*entity.SagaInstance)
	assert.Equal(t, entity.SagaStateValidatingCustomer, created.CurrentState)
	assert.Equal(t, uint(10), created.OrderID)
	assert.NotNil(t, created.Deadline)
}

func TestHandleMessage_OrderSubmitted_DuplicateIgnored(t *testing.T) {
	instRepo := new(MockSagaInstanceRepository)
	publisher := new(MockPublisher)
	orchestrator := newTestOrchestrator(instRepo, publisher)

	existing := newTestInstance(t, entity.SagaStateValidatingCustomer, twoItems())
	instRepo.On("GetByCorrelationID", mock.Anything, "corr-1").Return(existing, nil)

	msg := mustEnvelopeBytes(t, "corr-1", saga.TypeOrderSubmitted, saga.OrderSubmitted{
		CorrelationID: "corr-1", OrderID: 10, CustomerID: 7, Items: twoItems(),
	})

	err := orchestrator.HandleMessage(msg)

	assert.NoError(t, err)
	instRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	publisher.AssertNotCalled(t, "PublishMessage", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleMessage_OrphanEventIgnored(t *testing.T) {
	instRepo := new(MockSagaInstanceRepository)
	publisher := new(MockPublisher)
	orchestrator := newTestOrchestrator(instRepo, publisher)

	instRepo.On("GetByCorrelationID", mock.Anything, "corr-unknown").Return(nil, gorm.ErrRecordNotFound)

	msg := mustEnvelopeBytes(t, "corr-unknown", saga.TypeCustomerValidated, saga.CustomerValidated{
		CorrelationID: "corr-unknown", CustomerID: 7, IsValid: true,
	})

	err := orchestrator.HandleMessage(msg)

	assert.NoError(t, err)
	instRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything, mock.Anything)
	publisher.AssertNotCalled(t, "PublishMessage", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleMessage_CustomerValidated_SavesThenPublishes(t *testing.T) {
	instRepo := new(MockSagaInstanceRepository)
	publisher := new(MockPublisher)
	orchestrator := newTestOrchestrator(instRepo, publisher)

	inst := newTestInstance(t, entity.SagaStateValidatingCustomer, twoItems())
	inst.Version = 4
	instRepo.On("GetByCorrelationID", mock.Anything, "corr-1").Return(inst, nil)
	instRepo.On("Save", mock.Anything, inst, 4).Return(nil)
	publisher.On("PublishMessage", saga.ExchangeName, string(saga.TypeStockReservation), envelopeOfType(saga.TypeStockReservation)).Return(nil).Times(2)

	msg := mustEnvelopeBytes(t, "corr-1", saga.TypeCustomerValidated, saga.CustomerValidated{
		CorrelationID: "corr-1", CustomerID: 7, IsValid: true,
	})

	err := orchestrator.HandleMessage(msg)

	assert.NoError(t, err)
	instRepo.AssertExpectations(t)
	publisher.AssertExpectations(t)
	assert.Equal(t, entity.SagaStateReservingStock, inst.CurrentState)
}

func TestHandleMessage_VersionConflict_RetriesWithReload(t *testing.T) {
	instRepo := new(MockSagaInstanceRepository)
	publisher := new(MockPublisher)
	orchestrator := newTestOrchestrator(instRepo, publisher)

	first := newTestInstance(t, entity.SagaStateReservingStock, twoItems())
	first.Version = 2
	second := newTestInstance(t, entity.SagaStateReservingStock, twoItems())
	second.Version = 3
	second.MarkItemReserved(43)

	instRepo.On("GetByCorrelationID", mock.Anything, "corr-1").Return(first, nil).Once()
	instRepo.On("Save", mock.Anything, first, 2).Return(repo.ErrVersionConflict).Once()
	instRepo.On("GetByCorrelationID", mock.Anything, "corr-1").Return(second, nil).Once()
	instRepo.On("Save", mock.Anything, second, 3).Return(nil).Once()
	publisher.On("PublishMessage", saga.ExchangeName, string(saga.TypeOrderCompleted), envelopeOfType(saga.TypeOrderCompleted)).Return(nil)

	msg := mustEnvelopeBytes(t, "corr-1", saga.TypeStockReserved, saga.StockReserved{
		CorrelationID: "corr-1", ProductID: 42, Quantity: 2,
	})

	err := orchestrator.HandleMessage(msg)

	assert.NoError(t, err)
	instRepo.AssertExpectations(t)
	publisher.AssertExpectations(t)
	assert.Equal(t, entity.SagaStateCompleted, second.CurrentState)
}

func TestHandleMessage_VersionConflict_Exhausted(t *testing.T) {
	instRepo := new(MockSagaInstanceRepository)
	publisher := new(MockPublisher)
	orchestrator := newTestOrchestrator(instRepo, publisher)

	for i := 0; i < 3; i++ {
		inst := newTestInstance(t, entity.SagaStateValidatingCustomer, twoItems())
		inst.Version = i + 1
		instRepo.On("GetByCorrelationID", mock.Anything, "corr-1").Return(inst, nil).Once()
		instRepo.On("Save", mock.Anything, inst, i+1).Return(repo.ErrVersionConflict).Once()
	}

	msg := mustEnvelopeBytes(t, "corr-1", saga.TypeCustomerValidated, saga.CustomerValidated{
		CorrelationID: "corr-1", CustomerID: 7, IsValid: true,
	})

	err := orchestrator.HandleMessage(msg)

	// Ошибка отдает сообщение транспорту на повторную доставку
	assert.Error(t, err)
	instRepo.AssertExpectations(t)
	publisher.AssertNotCalled(t, "PublishMessage", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleMessage_TerminalSaga_NoSaveNoPublish(t *testing.T) {
	instRepo := new(MockSagaInstanceRepository)
	publisher := new(MockPublisher)
	orchestrator := newTestOrchestrator(instRepo, publisher)

	inst := newTestInstance(t, entity.SagaStateCompleted, twoItems())
	instRepo.On("GetByCorrelationID", mock.Anything, "corr-1").Return(inst, nil)

	msg := mustEnvelopeBytes(t, "corr-1", saga.TypeStockReserved, saga.StockReserved{
		CorrelationID: "corr-1", ProductID: 42, Quantity: 2,
	})

	err := orchestrator.HandleMessage(msg)

	assert.NoError(t, err)
	instRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything, mock.Anything)
	publisher.AssertNotCalled(t, "PublishMessage", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleMessage_MalformedPayload_FailsSaga(t *testing.T) {
	instRepo := new(MockSagaInstanceRepository)
	publisher := new(MockPublisher)
	orchestrator := newTestOrchestrator(instRepo, publisher)

	inst := newTestInstance(t, entity.SagaStateValidatingCustomer, twoItems())
	instRepo.On("GetByCorrelationID", mock.Anything, "corr-1").Return(inst, nil)
	instRepo.On("Save", mock.Anything, inst, 1).Return(nil)
	publisher.On("PublishMessage", saga.ExchangeName, string(saga.TypeOrderFailed), envelopeOfType(saga.TypeOrderFailed)).Return(nil)

	// Полезная нагрузка не соответствует схеме события
	env := saga.Envelope{
		CorrelationID: "corr-1",
		Type:          saga.TypeCustomerValidated,
		Data:          json.RawMessage(`{"is_valid": "not-a-bool"}`),
		Timestamp:     time.Now().Unix(),
	}
	msg, err := json.Marshal(env)
	assert.NoError(t, err)

	err = orchestrator.HandleMessage(msg)

	assert.NoError(t, err)
	instRepo.AssertExpectations(t)
	publisher.AssertExpectations(t)
	assert.Equal(t, entity.SagaStateFailed, inst.CurrentState)
	assert.Contains(t, inst.FailureReason, "некорректная полезная нагрузка")
}

func TestHandleMessage_MalformedEnvelopeAbsorbed(t *testing.T) {
	instRepo := new(MockSagaInstanceRepository)
	publisher := new(MockPublisher)
	orchestrator := newTestOrchestrator(instRepo, publisher)

	err := orchestrator.HandleMessage([]byte(`не json`))

	assert.NoError(t, err)
	instRepo.AssertNotCalled(t, "GetByCorrelationID", mock.Anything, mock.Anything)
}

func TestHandleMessage_UnknownTypeIgnored(t *testing.T) {
	instRepo := new(MockSagaInstanceRepository)
	publisher := new(MockPublisher)
	orchestrator := newTestOrchestrator(instRepo, publisher)

	msg := mustEnvelopeBytes(t, "corr-1", saga.MessageType("billing.charged"), map[string]int{"amount": 1})

	err := orchestrator.HandleMessage(msg)

	assert.NoError(t, err)
	instRepo.AssertNotCalled(t, "GetByCorrelationID", mock.Anything, mock.Anything)
}

func TestExpireDeadlines_FailsStuckSagas(t *testing.T) {
	instRepo := new(MockSagaInstanceRepository)
	publisher := new(MockPublisher)
	orchestrator := newTestOrchestrator(instRepo, publisher)

	now := time.Now()
	deadline := now.Add(-time.Minute)

	expired := newTestInstance(t, entity.SagaStateValidatingCustomer, twoItems())
	expired.Deadline = &deadline

	reloaded := newTestInstance(t, entity.SagaStateValidatingCustomer, twoItems())
	reloaded.Deadline = &deadline

	instRepo.On("FindExpired", mock.Anything, now, 100).Return([]entity.SagaInstance{*expired}, nil)
	instRepo.On("GetByCorrelationID", mock.Anything, "corr-1").Return(reloaded, nil)
	instRepo.On("Save", mock.Anything, reloaded, 1).Return(nil)
	publisher.On("PublishMessage", saga.ExchangeName, string(saga.TypeOrderFailed), envelopeOfType(saga.TypeOrderFailed)).Return(nil)

	err := orchestrator.ExpireDeadlines(context.Background(), now)

	assert.NoError(t, err)
	instRepo.AssertExpectations(t)
	publisher.AssertExpectations(t)
	assert.Equal(t, entity.SagaStateFailed, reloaded.CurrentState)
}

func TestExpireDeadlines_RaceWithFreshDeadline(t *testing.T) {
	instRepo := new(MockSagaInstanceRepository)
	publisher := new(MockPublisher)
	orchestrator := newTestOrchestrator(instRepo, publisher)

	now := time.Now()
	pastDeadline := now.Add(-time.Minute)
	freshDeadline := now.Add(4 * time.Minute)

	expired := newTestInstance(t, entity.SagaStateValidatingCustomer, twoItems())
	expired.Deadline = &pastDeadline

	// К моменту применения события сага ушла дальше с новым дедлайном
	reloaded := newTestInstance(t, entity.SagaStateReservingStock, twoItems())
	reloaded.Deadline = &freshDeadline
	reloaded.Version = 2

	instRepo.On("FindExpired", mock.Anything, now, 100).Return([]entity.SagaInstance{*expired}, nil)
	instRepo.On("GetByCorrelationID", mock.Anything, "corr-1").Return(reloaded, nil)

	err := orchestrator.ExpireDeadlines(context.Background(), now)

	assert.NoError(t, err)
	instRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything, mock.Anything)
	assert.Equal(t, entity.SagaStateReservingStock, reloaded.CurrentState)
}
