package idempotency

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func newTestStore(t *testing.T) (Store, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewRedisStoreWithClient(client, "test_service"), mr
}

// TestMarkProcessed_FirstDelivery первая доставка помечается успешно
func TestMarkProcessed_FirstDelivery(t *testing.T) {
	store, _ := newTestStore(t)

	first, err := store.MarkProcessed(context.Background(), "customer.validate:corr-1", time.Minute)
	assert.NoError(t, err)
	assert.True(t, first)
}

// TestMarkProcessed_Redelivery повторная доставка того же ключа распознается
func TestMarkProcessed_Redelivery(t *testing.T) {
	store, _ := newTestStore(t)

	first, err := store.MarkProcessed(context.Background(), "stock.reservation:corr-1:42", time.Minute)
	assert.NoError(t, err)
	assert.True(t, first)

	second, err := store.MarkProcessed(context.Background(), "stock.reservation:corr-1:42", time.Minute)
	assert.NoError(t, err)
	assert.False(t, second)
}

// TestProcessed_ReflectsMark ключ считается обработанным только после отметки
func TestProcessed_ReflectsMark(t *testing.T) {
	store, _ := newTestStore(t)

	seen, err := store.Processed(context.Background(), "customer.validate:corr-9")
	assert.NoError(t, err)
	assert.False(t, seen)

	_, err = store.MarkProcessed(context.Background(), "customer.validate:corr-9", time.Minute)
	assert.NoError(t, err)

	seen, err = store.Processed(context.Background(), "customer.validate:corr-9")
	assert.NoError(t, err)
	assert.True(t, seen)
}

// TestMarkProcessed_DifferentKeys разные ключи не пересекаются
func TestMarkProcessed_DifferentKeys(t *testing.T) {
	store, _ := newTestStore(t)

	first, err := store.MarkProcessed(context.Background(), "stock.reservation:corr-1:42", time.Minute)
	assert.NoError(t, err)
	assert.True(t, first)

	other, err := store.MarkProcessed(context.Background(), "stock.reservation:corr-1:43", time.Minute)
	assert.NoError(t, err)
	assert.True(t, other)
}

// TestMarkProcessed_TTLExpiry после истечения TTL ключ снова свободен
func TestMarkProcessed_TTLExpiry(t *testing.T) {
	store, mr := newTestStore(t)

	first, err := store.MarkProcessed(context.Background(), "customer.validate:corr-2", time.Minute)
	assert.NoError(t, err)
	assert.True(t, first)

	mr.FastForward(2 * time.Minute)

	again, err := store.MarkProcessed(context.Background(), "customer.validate:corr-2", time.Minute)
	assert.NoError(t, err)
	assert.True(t, again)
}
