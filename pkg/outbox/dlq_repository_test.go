package outbox

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/settlement-backend/pkg/db/dbtest"
	"github.com/angelmondragon/settlement-backend/pkg/db/models"
	"github.com/angelmondragon/settlement-backend/pkg/enums"
)

func parked(eventID uuid.UUID, failedAt time.Time, msg string) models.OutboxDLQ {
	return models.OutboxDLQ{
		EventID:       eventID,
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`{"data":{}}`),
		ErrorReason:   enums.OutboxDLQReasonMaxAttempts,
		ErrorMessage:  &msg,
		AttemptCount:  10,
		FailedAt:      failedAt,
	}
}

func TestDLQInsertKeepsFirstEntryAndTruncates(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewDLQRepository(conn)
	eventID := uuid.New()

	require.NoError(t, repo.InsertTx(conn, parked(eventID, time.Now().UTC(), strings.Repeat("x", maxLastErrorLen+50))))
	require.NoError(t, repo.InsertTx(conn, parked(eventID, time.Now().UTC(), "second")))

	var rows []models.OutboxDLQ
	require.NoError(t, conn.Find(&rows).Error)
	require.Len(t, rows, 1)
	require.NotNil(t, rows[0].ErrorMessage)
	assert.Len(t, *rows[0].ErrorMessage, maxLastErrorLen)
}

func TestDLQInsertRequiresTransaction(t *testing.T) {
	repo := NewDLQRepository(dbtest.Open(t))
	assert.Error(t, repo.InsertTx(nil, parked(uuid.New(), time.Now(), "boom")))
}

func TestDLQDeleteFailedBefore(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewDLQRepository(conn)
	now := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, repo.InsertTx(conn, parked(uuid.New(), now.AddDate(0, -7, 0), "old")))
	keep := uuid.New()
	require.NoError(t, repo.InsertTx(conn, parked(keep, now.AddDate(0, 0, -1), "recent")))

	deleted, err := repo.DeleteFailedBefore(context.Background(), nil, now.AddDate(0, -6, 0))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	var rows []models.OutboxDLQ
	require.NoError(t, conn.Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, keep, rows[0].EventID)
}
