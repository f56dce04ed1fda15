package stripe

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/checkout/session"
	"github.com/stripe/stripe-go/v84/paymentintent"

	"github.com/angelmondragon/settlement-backend/pkg/enums"
)

// MetadataOrderID is the metadata key the reconciler reads the order id from.
const MetadataOrderID = "order_id"

const orderIDPlaceholder = "{ORDER_ID}"

// HandleRequest describes the payment handle to create for one order.
type HandleRequest struct {
	OrderID        uuid.UUID
	AmountMinor    int64
	Currency       string
	IdempotencyKey string
	Kind           enums.PaymentHandleKind
	SuccessURL     string
	CancelURL      string
	Description    string
}

// Handle is what the provider returned. ClientPayload is the redirect URL for
// sessions and the client secret for intents.
type Handle struct {
	ID            string
	Kind          enums.PaymentHandleKind
	ClientPayload string
}

type sessionCreator func(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)

type intentCreator func(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)

// PaymentHandles creates Checkout Sessions and PaymentIntents.
type PaymentHandles struct {
	newSession sessionCreator
	newIntent  intentCreator
}

// NewPaymentHandles binds the stripe-go resource packages. The client must have
// been built first so the package key is set.
func NewPaymentHandles(api *Client) *PaymentHandles {
	if api == nil {
		return nil
	}
	return &PaymentHandles{newSession: session.New, newIntent: paymentintent.New}
}

func (p *PaymentHandles) CreatePaymentHandle(ctx context.Context, req HandleRequest) (Handle, error) {
	if p == nil {
		return Handle{}, errors.New("stripe payment handles not configured")
	}
	if req.OrderID == uuid.Nil {
		return Handle{}, errors.New("order id required")
	}
	if req.AmountMinor <= 0 {
		return Handle{}, fmt.Errorf("amount must be positive, got %d", req.AmountMinor)
	}
	if strings.TrimSpace(req.IdempotencyKey) == "" {
		return Handle{}, errors.New("idempotency key required")
	}

	switch req.Kind {
	case enums.PaymentHandleSession:
		return p.createSession(ctx, req)
	case enums.PaymentHandleIntent:
		return p.createIntent(ctx, req)
	default:
		return Handle{}, fmt.Errorf("unsupported payment handle kind %q", req.Kind)
	}
}

func (p *PaymentHandles) createSession(ctx context.Context, req HandleRequest) (Handle, error) {
	orderID := req.OrderID.String()
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		ClientReferenceID: stripe.String(orderID),
		SuccessURL:        stripe.String(ExpandOrderURL(req.SuccessURL, req.OrderID)),
		CancelURL:         stripe.String(ExpandOrderURL(req.CancelURL, req.OrderID)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			Quantity: stripe.Int64(1),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(strings.ToLower(req.Currency)),
				UnitAmount: stripe.Int64(req.AmountMinor),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(description(req)),
				},
			},
		}},
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: map[string]string{MetadataOrderID: orderID},
		},
	}
	params.AddMetadata(MetadataOrderID, orderID)
	params.SetIdempotencyKey(req.IdempotencyKey)
	params.Context = ctx

	created, err := p.newSession(params)
	if err != nil {
		return Handle{}, err
	}
	return Handle{ID: created.ID, Kind: enums.PaymentHandleSession, ClientPayload: created.URL}, nil
}

func (p *PaymentHandles) createIntent(ctx context.Context, req HandleRequest) (Handle, error) {
	orderID := req.OrderID.String()
	params := &stripe.PaymentIntentParams{
		Amount:      stripe.Int64(req.AmountMinor),
		Currency:    stripe.String(strings.ToLower(req.Currency)),
		Description: stripe.String(description(req)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.AddMetadata(MetadataOrderID, orderID)
	params.SetIdempotencyKey(req.IdempotencyKey)
	params.Context = ctx

	created, err := p.newIntent(params)
	if err != nil {
		return Handle{}, err
	}
	return Handle{ID: created.ID, Kind: enums.PaymentHandleIntent, ClientPayload: created.ClientSecret}, nil
}

// ExpandOrderURL substitutes the order id into a configured redirect URL.
func ExpandOrderURL(template string, orderID uuid.UUID) string {
	return strings.ReplaceAll(template, orderIDPlaceholder, orderID.String())
}

func description(req HandleRequest) string {
	if strings.TrimSpace(req.Description) != "" {
		return req.Description
	}
	return "Order " + req.OrderID.String()
}
