package notifications

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/settlement-backend/pkg/db/dbtest"
	"github.com/angelmondragon/settlement-backend/pkg/db/models"
	"github.com/angelmondragon/settlement-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/settlement-backend/pkg/errors"
)

func seedInbox(t *testing.T, conn *gorm.DB, sellerID uuid.UUID, n int) []models.Notification {
	t.Helper()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rows := make([]models.Notification, 0, n)
	for i := 0; i < n; i++ {
		orderID := uuid.New()
		row := models.Notification{
			SellerID:  sellerID,
			OrderID:   &orderID,
			Type:      enums.NotificationTypeOrderReceived,
			Title:     "New order received",
			Message:   "1 item(s)",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, conn.Create(&row).Error)
		rows = append(rows, row)
	}
	return rows
}

func TestListPagesNewestFirst(t *testing.T) {
	conn := dbtest.Open(t)
	svc, err := NewService(NewRepository(conn))
	require.NoError(t, err)
	seller := uuid.New()
	rows := seedInbox(t, conn, seller, 3)
	seedInbox(t, conn, uuid.New(), 2)

	page, err := svc.List(context.Background(), ListParams{SellerID: seller, Limit: 2})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, rows[2].ID, page.Items[0].ID)
	assert.Equal(t, rows[1].ID, page.Items[1].ID)
	require.NotEmpty(t, page.NextCursor)

	next, err := svc.List(context.Background(), ListParams{SellerID: seller, Limit: 2, Cursor: page.NextCursor})
	require.NoError(t, err)
	require.Len(t, next.Items, 1)
	assert.Equal(t, rows[0].ID, next.Items[0].ID)
	assert.Empty(t, next.NextCursor)
}

func TestListRejectsBadInput(t *testing.T) {
	svc, err := NewService(NewRepository(dbtest.Open(t)))
	require.NoError(t, err)

	_, err = svc.List(context.Background(), ListParams{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = svc.List(context.Background(), ListParams{SellerID: uuid.New(), Cursor: "%%%"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestMarkReadIsScopedToSeller(t *testing.T) {
	conn := dbtest.Open(t)
	svc, err := NewService(NewRepository(conn))
	require.NoError(t, err)
	seller := uuid.New()
	rows := seedInbox(t, conn, seller, 2)

	err = svc.MarkRead(context.Background(), uuid.New(), rows[0].ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	require.NoError(t, svc.MarkRead(context.Background(), seller, rows[0].ID))
	require.NoError(t, svc.MarkRead(context.Background(), seller, rows[0].ID), "marking twice is fine")

	page, err := svc.List(context.Background(), ListParams{SellerID: seller, UnreadOnly: true})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, rows[1].ID, page.Items[0].ID)

	count, err := svc.MarkAllRead(context.Background(), seller)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestDeleteReadBeforeKeepsUnread(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	seller := uuid.New()
	rows := seedInbox(t, conn, seller, 2)
	_, err := repo.MarkRead(context.Background(), seller, rows[0].ID, time.Now().UTC())
	require.NoError(t, err)

	deleted, err := repo.DeleteReadBefore(context.Background(), time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC), 0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, deleted)

	var remaining int64
	require.NoError(t, conn.Model(&models.Notification{}).Count(&remaining).Error)
	assert.EqualValues(t, 1, remaining)
}

func TestDeleteReadBeforeHonoursLimit(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	seller := uuid.New()
	rows := seedInbox(t, conn, seller, 3)
	for _, row := range rows {
		_, err := repo.MarkRead(context.Background(), seller, row.ID, time.Now().UTC())
		require.NoError(t, err)
	}
	cutoff := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)

	deleted, err := repo.DeleteReadBefore(context.Background(), cutoff, 2)
	require.NoError(t, err)
	assert.EqualValues(t, 2, deleted)

	deleted, err = repo.DeleteReadBefore(context.Background(), cutoff, 2)
	require.NoError(t, err)
	assert.EqualValues(t, 1, deleted)
}

func TestPushDestinationLifecycle(t *testing.T) {
	conn := dbtest.Open(t)
	svc, err := NewService(NewRepository(conn))
	require.NoError(t, err)
	sellerA, sellerB := uuid.New(), uuid.New()

	_, err = svc.RegisterDestination(context.Background(), sellerA, "tok", "pager")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = svc.RegisterDestination(context.Background(), sellerA, " tok ", enums.PushPlatformIOS)
	require.NoError(t, err)
	_, err = svc.RegisterDestination(context.Background(), sellerB, "tok", enums.PushPlatformIOS)
	require.NoError(t, err)

	var rows []models.PushDestination
	require.NoError(t, conn.Find(&rows).Error)
	require.Len(t, rows, 1, "a token belongs to one seller")
	assert.Equal(t, sellerB, rows[0].SellerID)

	err = svc.RemoveDestination(context.Background(), sellerA, "tok")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
	require.NoError(t, svc.RemoveDestination(context.Background(), sellerB, "tok"))
}

type erroringRepo struct {
	Repository
}

func (erroringRepo) MarkAllRead(context.Context, uuid.UUID, time.Time) (int64, error) {
	return 0, errors.New("db down")
}

func TestMarkAllReadWrapsRepositoryErrors(t *testing.T) {
	svc, err := NewService(erroringRepo{})
	require.NoError(t, err)

	_, err = svc.MarkAllRead(context.Background(), uuid.New())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
}
