package outbox

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/settlement-backend/pkg/enums"
)

func TestNewEnvelopeDefaults(t *testing.T) {
	id := uuid.New()
	envelope, err := newEnvelope(id, DomainEvent{
		EventType: enums.EventOrderCreated,
		Data:      map[string]string{"order_id": "o-1"},
	})
	require.NoError(t, err)
	assert.Equal(t, EnvelopeVersion, envelope.Version)
	assert.Equal(t, id.String(), envelope.EventID)
	assert.False(t, envelope.OccurredAt.IsZero())
	assert.Equal(t, time.UTC, envelope.OccurredAt.Location())
	assert.JSONEq(t, `{"order_id":"o-1"}`, string(envelope.Data))
}

func TestNewEnvelopeRejectsUnencodableData(t *testing.T) {
	_, err := newEnvelope(uuid.New(), DomainEvent{EventType: enums.EventOrderCreated, Data: make(chan int)})
	require.Error(t, err)
}

func TestDecodeEnvelopeData(t *testing.T) {
	id := uuid.New()
	raw := []byte(`{"version":1,"eventId":"` + id.String() + `","occurredAt":"2026-03-01T10:00:00Z","data":{"order_id":"o-9"}}`)

	envelope, err := DecodeEnvelope(raw)
	require.NoError(t, err)
	parsed, err := envelope.ParseEventID()
	require.NoError(t, err)
	assert.Equal(t, id, parsed)

	var payload struct {
		OrderID string `json:"order_id"`
	}
	require.NoError(t, envelope.DecodeData(&payload))
	assert.Equal(t, "o-9", payload.OrderID)
}

func TestEnvelopeRejectsMissingPieces(t *testing.T) {
	for name, raw := range map[string]string{
		"null data":   `{"eventId":"` + uuid.NewString() + `","data":null}`,
		"absent data": `{"eventId":"` + uuid.NewString() + `"}`,
	} {
		t.Run(name, func(t *testing.T) {
			envelope, err := DecodeEnvelope([]byte(raw))
			require.NoError(t, err)
			var dst map[string]any
			assert.ErrorIs(t, envelope.DecodeData(&dst), ErrMissingData)
		})
	}

	_, err := DecodeEnvelope([]byte(`not json`))
	assert.Error(t, err)

	_, err = PayloadEnvelope{EventID: uuid.Nil.String()}.ParseEventID()
	assert.ErrorIs(t, err, ErrInvalidEventID)
	_, err = PayloadEnvelope{EventID: "evt-1"}.ParseEventID()
	assert.ErrorIs(t, err, ErrInvalidEventID)
}
