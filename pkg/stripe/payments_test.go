package stripe

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/settlement-backend/pkg/enums"
)

func TestCreateSessionCarriesOrderMetadata(t *testing.T) {
	orderID := uuid.New()
	var captured *stripe.CheckoutSessionParams
	handles := &PaymentHandles{
		newSession: func(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
			captured = params
			return &stripe.CheckoutSession{ID: "cs_test_1", URL: "https://checkout.stripe.test/cs_test_1"}, nil
		},
	}

	handle, err := handles.CreatePaymentHandle(context.Background(), HandleRequest{
		OrderID:        orderID,
		AmountMinor:    2800,
		Currency:       "USD",
		IdempotencyKey: "order:" + orderID.String() + ":payment",
		Kind:           enums.PaymentHandleSession,
		SuccessURL:     "https://shop.test/orders/{ORDER_ID}/success",
		CancelURL:      "https://shop.test/orders/{ORDER_ID}/cancel",
	})
	require.NoError(t, err)
	assert.Equal(t, "cs_test_1", handle.ID)
	assert.Equal(t, enums.PaymentHandleSession, handle.Kind)
	assert.Equal(t, "https://checkout.stripe.test/cs_test_1", handle.ClientPayload)

	require.NotNil(t, captured)
	assert.Equal(t, orderID.String(), captured.Metadata[MetadataOrderID])
	assert.Equal(t, orderID.String(), captured.PaymentIntentData.Metadata[MetadataOrderID])
	require.NotNil(t, captured.IdempotencyKey)
	assert.Equal(t, "order:"+orderID.String()+":payment", *captured.IdempotencyKey)
	assert.Equal(t, "https://shop.test/orders/"+orderID.String()+"/success", *captured.SuccessURL)
	assert.EqualValues(t, 2800, *captured.LineItems[0].PriceData.UnitAmount)
	assert.Equal(t, "usd", *captured.LineItems[0].PriceData.Currency)
}

func TestCreateIntentReturnsClientSecret(t *testing.T) {
	orderID := uuid.New()
	var captured *stripe.PaymentIntentParams
	handles := &PaymentHandles{
		newIntent: func(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
			captured = params
			return &stripe.PaymentIntent{ID: "pi_test_1", ClientSecret: "pi_test_1_secret"}, nil
		},
	}

	handle, err := handles.CreatePaymentHandle(context.Background(), HandleRequest{
		OrderID: orderID, AmountMinor: 500, Currency: "usd", IdempotencyKey: "k", Kind: enums.PaymentHandleIntent,
	})
	require.NoError(t, err)
	assert.Equal(t, "pi_test_1", handle.ID)
	assert.Equal(t, "pi_test_1_secret", handle.ClientPayload)
	assert.Equal(t, orderID.String(), captured.Metadata[MetadataOrderID])
	assert.EqualValues(t, 500, *captured.Amount)
}

func TestCreatePaymentHandleValidation(t *testing.T) {
	handles := &PaymentHandles{
		newSession: func(*stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
			return nil, errors.New("should not be called")
		},
	}
	base := HandleRequest{OrderID: uuid.New(), AmountMinor: 100, Currency: "usd", IdempotencyKey: "k", Kind: enums.PaymentHandleSession}

	noAmount := base
	noAmount.AmountMinor = 0
	_, err := handles.CreatePaymentHandle(context.Background(), noAmount)
	assert.Error(t, err)

	noKey := base
	noKey.IdempotencyKey = " "
	_, err = handles.CreatePaymentHandle(context.Background(), noKey)
	assert.Error(t, err)

	badKind := base
	badKind.Kind = "invoice"
	_, err = handles.CreatePaymentHandle(context.Background(), badKind)
	assert.Error(t, err)

	var nilHandles *PaymentHandles
	_, err = nilHandles.CreatePaymentHandle(context.Background(), base)
	assert.Error(t, err)
}

func TestExpandOrderURL(t *testing.T) {
	id := uuid.MustParse("0b6f8d5e-1c1a-4a56-9d8e-3f0f7c0e2a11")
	assert.Equal(t, "https://x.test/o/0b6f8d5e-1c1a-4a56-9d8e-3f0f7c0e2a11", ExpandOrderURL("https://x.test/o/{ORDER_ID}", id))
	assert.Equal(t, "https://x.test/plain", ExpandOrderURL("https://x.test/plain", id))
}
