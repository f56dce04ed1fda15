package stripewebhook

import (
	"context"
	"errors"

	"github.com/angelmondragon/settlement-backend/pkg/outbox/idempotency"
)

// EventGuard short-circuits redelivered provider events by event id. It is a
// fast path only; the reconciler stays correct without it.
type EventGuard struct {
	manager *idempotency.Manager
	scope   string
}

func NewEventGuard(manager *idempotency.Manager, scope string) (*EventGuard, error) {
	if manager == nil {
		return nil, errors.New("idempotency manager is required")
	}
	if scope == "" {
		return nil, errors.New("scope is required")
	}
	return &EventGuard{manager: manager, scope: scope}, nil
}

// Processed reports whether eventID was already reconciled.
func (g *EventGuard) Processed(ctx context.Context, eventID string) (bool, error) {
	if eventID == "" {
		return false, errors.New("event id is required")
	}
	return g.manager.Processed(ctx, g.scope, eventID)
}

// MarkProcessed records a successfully reconciled event.
func (g *EventGuard) MarkProcessed(ctx context.Context, eventID string) error {
	if eventID == "" {
		return errors.New("event id is required")
	}
	return g.manager.MarkProcessed(ctx, g.scope, eventID)
}
