package idempotency

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/angelmondragon/settlement-backend/pkg/redis"
)

// Manager records which deliveries a consumer has already handled.
// Keys follow the `stl:idempotency:evt:<consumer>:<delivery_id>` pattern.
type Manager struct {
	store redis.IdempotencyStore
	ttl   time.Duration
}

// NewManager builds a guard whose marks expire after ttl.
func NewManager(store redis.IdempotencyStore, ttl time.Duration) (*Manager, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	return &Manager{store: store, ttl: ttl}, nil
}

// Processed reports whether consumer already finished handling delivery id.
func (m *Manager) Processed(ctx context.Context, consumer, deliveryID string) (bool, error) {
	key, err := m.key(consumer, deliveryID)
	if err != nil {
		return false, err
	}
	_, err = m.store.Get(ctx, key)
	switch {
	case errors.Is(err, goredis.Nil):
		return false, nil
	case err != nil:
		return false, err
	}
	return true, nil
}

// MarkProcessed records a finished delivery. Call it only after the side
// effects succeeded so a crash or failure leaves the delivery retryable.
func (m *Manager) MarkProcessed(ctx context.Context, consumer, deliveryID string) error {
	key, err := m.key(consumer, deliveryID)
	if err != nil {
		return err
	}
	_, err = m.store.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), m.ttl)
	return err
}

// EventProcessed is Processed keyed by an outbox event id.
func (m *Manager) EventProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error) {
	if eventID == uuid.Nil {
		return false, errors.New("event id is required")
	}
	return m.Processed(ctx, consumer, eventID.String())
}

// MarkEventProcessed is MarkProcessed keyed by an outbox event id.
func (m *Manager) MarkEventProcessed(ctx context.Context, consumer string, eventID uuid.UUID) error {
	if eventID == uuid.Nil {
		return errors.New("event id is required")
	}
	return m.MarkProcessed(ctx, consumer, eventID.String())
}

func (m *Manager) key(consumer, deliveryID string) (string, error) {
	consumer = strings.TrimSpace(consumer)
	deliveryID = strings.TrimSpace(deliveryID)
	if consumer == "" {
		return "", errors.New("consumer name is required")
	}
	if deliveryID == "" {
		return "", errors.New("delivery id is required")
	}
	return m.store.IdempotencyKey(fmt.Sprintf("evt:%s", consumer), deliveryID), nil
}
