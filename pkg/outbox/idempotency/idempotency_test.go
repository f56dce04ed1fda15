package idempotency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	values   map[string]string
	getError error
	setError error
	lastKey  string
	lastTTL  time.Duration
}

func newFakeStore() *fakeStore {
	return &fakeStore{values: map[string]string{}}
}

func (f *fakeStore) Get(_ context.Context, key string) (string, error) {
	if f.getError != nil {
		return "", f.getError
	}
	value, ok := f.values[key]
	if !ok {
		return "", goredis.Nil
	}
	return value, nil
}

func (f *fakeStore) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	f.lastKey = key
	f.lastTTL = ttl
	if f.setError != nil {
		return false, f.setError
	}
	if _, ok := f.values[key]; ok {
		return false, nil
	}
	f.values[key] = value.(string)
	return true, nil
}

func (f *fakeStore) IdempotencyKey(scope, id string) string {
	return "stl:idempotency:" + scope + ":" + id
}

func (f *fakeStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.values, key)
	}
	return nil
}

func TestEventMarkedOnlyWhenAsked(t *testing.T) {
	store := newFakeStore()
	manager, err := NewManager(store, 24*time.Hour)
	require.NoError(t, err)
	ctx := context.Background()
	eventID := uuid.New()

	done, err := manager.EventProcessed(ctx, "notifications-worker", eventID)
	require.NoError(t, err)
	assert.False(t, done)

	done, err = manager.EventProcessed(ctx, "notifications-worker", eventID)
	require.NoError(t, err)
	assert.False(t, done, "checking twice does not mark")

	require.NoError(t, manager.MarkEventProcessed(ctx, "notifications-worker", eventID))
	assert.Equal(t, "stl:idempotency:evt:notifications-worker:"+eventID.String(), store.lastKey)
	assert.Equal(t, 24*time.Hour, store.lastTTL)

	done, err = manager.EventProcessed(ctx, "notifications-worker", eventID)
	require.NoError(t, err)
	assert.True(t, done)

	done, err = manager.EventProcessed(ctx, "analytics-worker", eventID)
	require.NoError(t, err)
	assert.False(t, done, "marks are per consumer")
}

func TestMarkTwiceIsHarmless(t *testing.T) {
	manager, err := NewManager(newFakeStore(), time.Hour)
	require.NoError(t, err)

	require.NoError(t, manager.MarkProcessed(context.Background(), "stripe-webhook", "evt_9"))
	require.NoError(t, manager.MarkProcessed(context.Background(), "stripe-webhook", "evt_9"))

	done, err := manager.Processed(context.Background(), "stripe-webhook", "evt_9")
	require.NoError(t, err)
	assert.True(t, done)
}

func TestRejectsNilEvent(t *testing.T) {
	manager, err := NewManager(newFakeStore(), time.Hour)
	require.NoError(t, err)

	_, err = manager.EventProcessed(context.Background(), "notifications-worker", uuid.Nil)
	assert.Error(t, err)
	assert.Error(t, manager.MarkEventProcessed(context.Background(), "notifications-worker", uuid.Nil))
}

func TestStoreErrorsSurface(t *testing.T) {
	store := newFakeStore()
	store.getError = errors.New("boom")
	store.setError = errors.New("boom")
	manager, err := NewManager(store, time.Hour)
	require.NoError(t, err)

	_, err = manager.Processed(context.Background(), "stripe-webhook", "evt_123")
	assert.Error(t, err)
	assert.Error(t, manager.MarkProcessed(context.Background(), "stripe-webhook", "evt_123"))
}

func TestRequiresConsumerAndDeliveryID(t *testing.T) {
	manager, err := NewManager(newFakeStore(), time.Hour)
	require.NoError(t, err)

	_, err = manager.Processed(context.Background(), " ", "evt_123")
	assert.Error(t, err)
	assert.Error(t, manager.MarkProcessed(context.Background(), "stripe-webhook", ""))
}

func TestNewManagerValidation(t *testing.T) {
	_, err := NewManager(nil, time.Hour)
	assert.Error(t, err)
	_, err = NewManager(newFakeStore(), -time.Second)
	assert.Error(t, err)
}
