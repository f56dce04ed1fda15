package worker

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/angelmondragon/settlement-backend/internal/analytics/router"
	"github.com/angelmondragon/settlement-backend/internal/analytics/types"
	"github.com/angelmondragon/settlement-backend/pkg/logger"
	"github.com/angelmondragon/settlement-backend/pkg/outbox"
)

type delivery struct {
	id    string
	attrs map[string]string
	data  []byte
}

func orderDelivery(t *testing.T, eventID uuid.UUID) delivery {
	t.Helper()
	data, err := json.Marshal(outbox.PayloadEnvelope{
		EventID:    eventID.String(),
		OccurredAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Data:       json.RawMessage(`{"order_id":"abc"}`),
	})
	require.NoError(t, err)
	return delivery{
		id:   "msg-1",
		data: data,
		attrs: map[string]string{
			"event_type":     "order_created",
			"aggregate_type": "order",
			"aggregate_id":   "abc-123",
		},
	}
}

func newTestService(handler Handler, claims *stubClaims) (*Service, *tracetest.SpanRecorder) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	return &Service{
		handler: handler,
		claims:  claims,
		logg:    logger.New(logger.Options{ServiceName: "analytics-test", Output: io.Discard}),
		tracer:  provider.Tracer("test"),
	}, recorder
}

func (s *Service) deliver(d delivery) bool {
	return s.process(context.Background(), d.id, d.attrs, d.data)
}

func TestProcessHandsDecodedEnvelopeToHandler(t *testing.T) {
	handler := &stubHandler{}
	claims := &stubClaims{}
	svc, recorder := newTestService(handler, claims)
	eventID := uuid.New()

	assert.True(t, svc.deliver(orderDelivery(t, eventID)))
	require.True(t, handler.called)
	assert.Equal(t, eventID, handler.envelope.EventID)
	assert.Equal(t, "abc-123", handler.envelope.AggregateID)
	assert.Equal(t, []uuid.UUID{eventID}, claims.marked)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "analytics.consume", spans[0].Name())
}

func TestProcessSkipsAlreadyProcessed(t *testing.T) {
	claims := &stubClaims{already: true}
	handler := &stubHandler{}
	svc, _ := newTestService(handler, claims)

	assert.True(t, svc.deliver(orderDelivery(t, uuid.New())))
	assert.False(t, handler.called)
	assert.Len(t, claims.checked, 1)
}

func TestProcessHandlerErrorLeavesEventUnmarked(t *testing.T) {
	claims := &stubClaims{}
	handler := &stubHandler{err: errors.New("boom")}
	svc, recorder := newTestService(handler, claims)
	eventID := uuid.New()

	assert.False(t, svc.deliver(orderDelivery(t, eventID)))
	assert.Equal(t, []uuid.UUID{eventID}, claims.checked)
	assert.Empty(t, claims.marked)
	require.Len(t, recorder.Ended(), 1)
	assert.NotEmpty(t, recorder.Ended()[0].Events())
}

func TestProcessClaimErrorNacks(t *testing.T) {
	handler := &stubHandler{}
	svc, _ := newTestService(handler, &stubClaims{checkErr: errors.New("redis down")})

	assert.False(t, svc.deliver(orderDelivery(t, uuid.New())))
	assert.False(t, handler.called)
}

func TestProcessAcksMalformedDelivery(t *testing.T) {
	claims := &stubClaims{}
	handler := &stubHandler{}
	svc, _ := newTestService(handler, claims)

	assert.True(t, svc.deliver(delivery{id: "bad", data: []byte("invalid json")}))
	assert.False(t, handler.called)
	assert.Empty(t, claims.checked)
}

func TestProcessAcksUnsupportedEvent(t *testing.T) {
	claims := &stubClaims{}
	svc, _ := newTestService(&stubHandler{err: router.ErrUnsupportedEventType}, claims)

	assert.True(t, svc.deliver(orderDelivery(t, uuid.New())))
	assert.Empty(t, claims.marked)
}

func TestNewServiceValidatesDependencies(t *testing.T) {
	_, err := NewService(nil, &stubHandler{}, &stubClaims{}, logger.New(logger.Options{Output: io.Discard}))
	assert.EqualError(t, err, "analytics subscription is required")

	_, err = NewService(&gcppubsub.Subscriber{}, nil, &stubClaims{}, logger.New(logger.Options{Output: io.Discard}))
	assert.EqualError(t, err, "analytics handler is required")
}

type stubHandler struct {
	called   bool
	envelope types.Envelope
	err      error
}

func (h *stubHandler) Handle(_ context.Context, envelope types.Envelope) error {
	h.called = true
	h.envelope = envelope
	return h.err
}

type stubClaims struct {
	already  bool
	checkErr error
	checked  []uuid.UUID
	marked   []uuid.UUID
}

func (s *stubClaims) EventProcessed(_ context.Context, _ string, eventID uuid.UUID) (bool, error) {
	s.checked = append(s.checked, eventID)
	return s.already, s.checkErr
}

func (s *stubClaims) MarkEventProcessed(_ context.Context, _ string, eventID uuid.UUID) error {
	s.marked = append(s.marked, eventID)
	return nil
}
