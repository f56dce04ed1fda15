// Package worker consumes the analytics subscription and feeds settlement rows to BigQuery.
package worker

import (
	"context"
	"errors"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/angelmondragon/settlement-backend/internal/analytics/router"
	"github.com/angelmondragon/settlement-backend/internal/analytics/types"
	"github.com/angelmondragon/settlement-backend/pkg/logger"
	"github.com/angelmondragon/settlement-backend/pkg/tracing"
)

const consumerName = "analytics"

type Handler interface {
	Handle(ctx context.Context, envelope types.Envelope) error
}

type receiver interface {
	Receive(ctx context.Context, f func(context.Context, *gcppubsub.Message)) error
}

type idempotencyChecker interface {
	EventProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	MarkEventProcessed(ctx context.Context, consumer string, eventID uuid.UUID) error
}

// Service acks malformed and unsupported deliveries and nacks anything that
// may succeed on redelivery. An event id is marked in Redis only after its
// row was recorded.
type Service struct {
	subscription receiver
	handler      Handler
	claims       idempotencyChecker
	logg         *logger.Logger
	tracer       trace.Tracer
}

func NewService(subscription *gcppubsub.Subscriber, handler Handler, claims idempotencyChecker, logg *logger.Logger) (*Service, error) {
	switch {
	case subscription == nil:
		return nil, errors.New("analytics subscription is required")
	case handler == nil:
		return nil, errors.New("analytics handler is required")
	case claims == nil:
		return nil, errors.New("idempotency manager is required")
	case logg == nil:
		return nil, errors.New("logger is required")
	}
	return &Service{
		subscription: subscription,
		handler:      handler,
		claims:       claims,
		logg:         logg,
		tracer:       tracing.Tracer(),
	}, nil
}

// Run blocks until ctx is canceled or the subscription fails.
func (s *Service) Run(ctx context.Context) error {
	return s.subscription.Receive(ctx, func(ctx context.Context, msg *gcppubsub.Message) {
		if s.process(ctx, msg.ID, msg.Attributes, msg.Data) {
			msg.Ack()
			return
		}
		msg.Nack()
	})
}

// process reports whether the delivery should be acked.
func (s *Service) process(ctx context.Context, messageID string, attrs map[string]string, data []byte) (ack bool) {
	ctx, span := s.tracer.Start(tracing.Extract(ctx, attrs), "analytics.consume",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.message.id", messageID),
			attribute.String("settlement.event_type", attrs["event_type"]),
		),
	)
	var spanErr error
	defer func() { tracing.End(span, spanErr) }()

	ctx = s.logg.WithField(ctx, "message_id", messageID)

	envelope, err := types.DecodeEnvelope(attrs, data)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "dropping malformed analytics delivery")
		return true
	}
	ctx = s.logg.WithFields(ctx, envelope.LogFields())

	done, err := s.claims.EventProcessed(ctx, consumerName, envelope.EventID)
	if err != nil {
		spanErr = err
		s.logg.Error(ctx, "idempotency check failed", err)
		return false
	}
	if done {
		s.logg.Info(ctx, "event already processed")
		return true
	}

	err = s.handler.Handle(ctx, envelope)
	switch {
	case err == nil:
		s.logg.Info(ctx, "settlement fact recorded")
		if markErr := s.claims.MarkEventProcessed(ctx, consumerName, envelope.EventID); markErr != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", markErr.Error()), "failed to mark event processed")
		}
		return true
	case errors.Is(err, router.ErrUnsupportedEventType):
		s.logg.Debug(ctx, "event not tracked by analytics")
		return true
	}

	spanErr = err
	s.logg.Error(ctx, "analytics handler failed", err)
	return false
}
