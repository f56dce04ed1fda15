// Package router maps order lifecycle events onto settlement_facts rows.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/angelmondragon/settlement-backend/internal/analytics/types"
	"github.com/angelmondragon/settlement-backend/pkg/enums"
	"github.com/angelmondragon/settlement-backend/pkg/logger"
)

var ErrUnsupportedEventType = errors.New("unsupported analytics event type")

// Writer delivers settlement rows produced by the handlers.
type Writer interface {
	InsertSettlement(ctx context.Context, row types.SettlementRow) error
}

type route func(ctx context.Context, envelope types.Envelope) error

// Router dispatches analytics envelopes by event type.
type Router struct {
	routes map[enums.OutboxEventType]route
}

func NewRouter(writer Writer, logg *logger.Logger) (*Router, error) {
	if writer == nil {
		return nil, errors.New("writer is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	rows := &settlementRows{writer: writer, logg: logg}
	return &Router{
		routes: map[enums.OutboxEventType]route{
			enums.EventOrderCreated:   decoded(rows.orderCreated),
			enums.EventOrderPaid:      decoded(rows.orderPaid),
			enums.EventOrderConfirmed: decoded(rows.orderConfirmed),
			enums.EventOrderFailed:    decoded(rows.orderFailed),
		},
	}, nil
}

// Events lists the event types that produce settlement rows.
func (r *Router) Events() []enums.OutboxEventType {
	events := make([]enums.OutboxEventType, 0, len(r.routes))
	for event := range r.routes {
		events = append(events, event)
	}
	slices.Sort(events)
	return events
}

func (r *Router) Handle(ctx context.Context, envelope types.Envelope) error {
	handle, ok := r.routes[envelope.EventType]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedEventType, envelope.EventType)
	}
	return handle(ctx, envelope)
}

// decoded unmarshals the envelope payload into T before calling handle.
func decoded[T any](handle func(context.Context, types.Envelope, *T) error) route {
	return func(ctx context.Context, envelope types.Envelope) error {
		if len(envelope.Payload) == 0 {
			return fmt.Errorf("empty payload for %s", envelope.EventType)
		}
		event := new(T)
		if err := json.Unmarshal(envelope.Payload, event); err != nil {
			return fmt.Errorf("decode %s payload: %w", envelope.EventType, err)
		}
		return handle(ctx, envelope, event)
	}
}
