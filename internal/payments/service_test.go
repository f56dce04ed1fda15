package payments

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/settlement-backend/internal/orders"
	"github.com/angelmondragon/settlement-backend/pkg/config"
	"github.com/angelmondragon/settlement-backend/pkg/db"
	"github.com/angelmondragon/settlement-backend/pkg/db/dbtest"
	"github.com/angelmondragon/settlement-backend/pkg/db/models"
	"github.com/angelmondragon/settlement-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/settlement-backend/pkg/errors"
	"github.com/angelmondragon/settlement-backend/pkg/outbox"
	pkgstripe "github.com/angelmondragon/settlement-backend/pkg/stripe"
)

type fakeProvider struct {
	calls    int
	requests []pkgstripe.HandleRequest
	err      error
	before   func()
}

func (f *fakeProvider) CreatePaymentHandle(ctx context.Context, req pkgstripe.HandleRequest) (pkgstripe.Handle, error) {
	f.calls++
	f.requests = append(f.requests, req)
	if _, ok := ctx.Deadline(); !ok {
		return pkgstripe.Handle{}, errors.New("provider call without deadline")
	}
	if f.before != nil {
		f.before()
	}
	if f.err != nil {
		return pkgstripe.Handle{}, f.err
	}
	return pkgstripe.Handle{ID: "cs_" + req.OrderID.String()[:8], Kind: req.Kind, ClientPayload: "https://pay.test/" + req.OrderID.String()}, nil
}

func seedPendingOrder(t *testing.T, conn *gorm.DB, buyerID uuid.UUID) *models.Order {
	t.Helper()
	order := &models.Order{
		BuyerID:            buyerID,
		Currency:           "usd",
		ShippingMethod:     "standard",
		SubtotalMinorUnits: 2500,
		ShippingMinorUnits: 300,
		TotalMinorUnits:    2800,
		Status:             enums.OrderStatusPending,
		InventoryStatus:    enums.InventoryStatusPending,
	}
	lines := []models.OrderLine{{CatalogItemID: uuid.New(), SellerID: uuid.New(), Title: "A", Quantity: 1, PriceMinorUnits: 2500, LineTotal: 2500}}
	mirrors := []models.SellerOrder{{SellerID: lines[0].SellerID, BuyerID: buyerID, Currency: "usd", SellerSubtotalMinorUnits: 2500, ItemCount: 1, Status: enums.OrderStatusPending}}
	require.NoError(t, orders.NewRepository(conn).CreateOrder(context.Background(), order, lines, mirrors))
	return order
}

func newIssuer(t *testing.T, conn *gorm.DB, provider Provider, mode string) Issuer {
	t.Helper()
	svc, err := NewIssuer(
		db.Wrap(conn),
		orders.NewRepository(conn),
		provider,
		outbox.NewService(outbox.NewRepository(conn), nil),
		config.PaymentsConfig{Mode: mode, ProviderTimeout: time.Second, SuccessURL: "https://shop.test/{ORDER_ID}", CancelURL: "https://shop.test/cancel"},
		nil,
		nil,
	)
	require.NoError(t, err)
	return svc
}

func TestIssueIsIdempotent(t *testing.T) {
	conn := dbtest.Open(t)
	provider := &fakeProvider{}
	svc := newIssuer(t, conn, provider, "session")
	buyer := uuid.New()
	order := seedPendingOrder(t, conn, buyer)

	first, err := svc.Issue(context.Background(), buyer, order.ID)
	require.NoError(t, err)
	assert.False(t, first.Reused)
	require.NotNil(t, first.Reference.HandleID)
	assert.Equal(t, enums.PaymentHandleSession, first.Reference.HandleKind)
	assert.Equal(t, orders.IdempotencyKey(order.ID), first.Reference.IdempotencyKey)

	second, err := svc.Issue(context.Background(), buyer, order.ID)
	require.NoError(t, err)
	assert.True(t, second.Reused)
	assert.Equal(t, *first.Reference.HandleID, *second.Reference.HandleID)
	assert.Equal(t, first.ClientPayload, second.ClientPayload)

	assert.Equal(t, 1, provider.calls)
	assert.EqualValues(t, 2800, provider.requests[0].AmountMinor)
	assert.Equal(t, orders.IdempotencyKey(order.ID), provider.requests[0].IdempotencyKey)

	var events int64
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Where("event_type = ?", enums.EventPaymentIssued).Count(&events).Error)
	assert.EqualValues(t, 1, events)

	mirrors, err := orders.NewRepository(conn).FindSellerOrders(context.Background(), order.ID)
	require.NoError(t, err)
	require.NotNil(t, mirrors[0].PaymentHandleID)
	assert.Equal(t, *first.Reference.HandleID, *mirrors[0].PaymentHandleID)
}

func TestIssueProviderErrorLeavesOrderPending(t *testing.T) {
	conn := dbtest.Open(t)
	provider := &fakeProvider{err: errors.New("stripe: 503")}
	svc := newIssuer(t, conn, provider, "intent")
	buyer := uuid.New()
	order := seedPendingOrder(t, conn, buyer)

	_, err := svc.Issue(context.Background(), buyer, order.ID)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodePaymentProvider))
	assert.True(t, pkgerrors.MetadataFor(pkgerrors.CodePaymentProvider).Retryable)

	stored, err := orders.NewRepository(conn).FindByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPending, stored.Status)
	assert.False(t, stored.Payment.Issued())

	provider.err = nil
	result, err := svc.Issue(context.Background(), buyer, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentHandleIntent, result.Reference.HandleKind)
	assert.Equal(t, 2, provider.calls)
}

func TestIssueConcurrentWinnerIsReturned(t *testing.T) {
	conn := dbtest.Open(t)
	buyer := uuid.New()
	order := seedPendingOrder(t, conn, buyer)
	winner := "cs_winner"
	provider := &fakeProvider{before: func() {
		_, err := orders.NewRepository(conn).SetPaymentReference(context.Background(), order.ID, models.PaymentReference{
			Provider: enums.PaymentProviderStripe, HandleKind: enums.PaymentHandleSession, HandleID: &winner,
			IdempotencyKey: orders.IdempotencyKey(order.ID), ClientPayload: "https://pay.test/winner",
		})
		require.NoError(t, err)
	}}
	svc := newIssuer(t, conn, provider, "session")

	result, err := svc.Issue(context.Background(), buyer, order.ID)
	require.NoError(t, err)
	assert.True(t, result.Reused)
	assert.Equal(t, winner, *result.Reference.HandleID)
	assert.Equal(t, "https://pay.test/winner", result.ClientPayload)

	var events int64
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Count(&events).Error)
	assert.Zero(t, events)
}

func TestIssuePreconditions(t *testing.T) {
	conn := dbtest.Open(t)
	provider := &fakeProvider{}
	svc := newIssuer(t, conn, provider, "session")
	buyer := uuid.New()
	order := seedPendingOrder(t, conn, buyer)

	_, err := svc.Issue(context.Background(), uuid.New(), order.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = svc.Issue(context.Background(), buyer, uuid.New())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	now := time.Now().UTC()
	require.NoError(t, orders.NewRepository(conn).UpdateStatus(context.Background(), order.ID, enums.OrderStatusPending, enums.OrderStatusPaid, orders.Stamps{PaidAt: &now}))
	_, err = svc.Issue(context.Background(), buyer, order.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	assert.Zero(t, provider.calls)
}

func TestNewIssuerRejectsUnknownMode(t *testing.T) {
	conn := dbtest.Open(t)
	_, err := NewIssuer(db.Wrap(conn), orders.NewRepository(conn), &fakeProvider{}, outbox.NewService(outbox.NewRepository(conn), nil),
		config.PaymentsConfig{Mode: "invoice"}, nil, nil)
	assert.Error(t, err)
}
