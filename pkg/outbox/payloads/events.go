package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/settlement-backend/pkg/enums"
)

// OrderLineSnapshot is the priced line as it was persisted at checkout.
type OrderLineSnapshot struct {
	CatalogItemID   uuid.UUID `json:"catalog_item_id"`
	SellerID        uuid.UUID `json:"seller_id"`
	Title           string    `json:"title"`
	Quantity        int       `json:"quantity"`
	PriceMinorUnits int64     `json:"price_minor_units"`
}

// OrderCreatedEvent is emitted with the order and mirror writes; it drives seller fan-out.
type OrderCreatedEvent struct {
	OrderID            uuid.UUID           `json:"order_id"`
	BuyerID            uuid.UUID           `json:"buyer_id"`
	Currency           string              `json:"currency"`
	SubtotalMinorUnits int64               `json:"subtotal_minor_units"`
	ShippingMinorUnits int64               `json:"shipping_minor_units"`
	TotalMinorUnits    int64               `json:"total_minor_units"`
	Lines              []OrderLineSnapshot `json:"lines"`
	CreatedAt          time.Time           `json:"created_at"`
}

// SellerIDs returns the distinct sellers in line order.
func (e OrderCreatedEvent) SellerIDs() []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(e.Lines))
	out := make([]uuid.UUID, 0, len(e.Lines))
	for _, line := range e.Lines {
		if _, ok := seen[line.SellerID]; ok {
			continue
		}
		seen[line.SellerID] = struct{}{}
		out = append(out, line.SellerID)
	}
	return out
}

// LinesForSeller returns the lines sold by sellerID.
func (e OrderCreatedEvent) LinesForSeller(sellerID uuid.UUID) []OrderLineSnapshot {
	var out []OrderLineSnapshot
	for _, line := range e.Lines {
		if line.SellerID == sellerID {
			out = append(out, line)
		}
	}
	return out
}

// PaymentIssuedEvent records the first provider handle created for an order.
type PaymentIssuedEvent struct {
	OrderID         uuid.UUID               `json:"order_id"`
	Provider        enums.PaymentProvider   `json:"provider"`
	HandleKind      enums.PaymentHandleKind `json:"handle_kind"`
	HandleID        string                  `json:"handle_id"`
	TotalMinorUnits int64                   `json:"total_minor_units"`
	Currency        string                  `json:"currency"`
}

// OrderPaidEvent is emitted on the pending to paid transition.
type OrderPaidEvent struct {
	OrderID         uuid.UUID   `json:"order_id"`
	BuyerID         uuid.UUID   `json:"buyer_id"`
	SellerIDs       []uuid.UUID `json:"seller_ids"`
	TotalMinorUnits int64       `json:"total_minor_units"`
	Currency        string      `json:"currency"`
	PaidAt          time.Time   `json:"paid_at"`
	ProviderEventID string      `json:"provider_event_id,omitempty"`
}

// OrderConfirmedEvent is emitted on the paid to confirmed transition.
type OrderConfirmedEvent struct {
	OrderID         uuid.UUID `json:"order_id"`
	TotalMinorUnits int64     `json:"total_minor_units"`
	Currency        string    `json:"currency"`
	ConfirmedAt     time.Time `json:"confirmed_at"`
	ProviderEventID string    `json:"provider_event_id,omitempty"`
}

// OrderFailedEvent is emitted when the provider reports a terminal payment failure.
type OrderFailedEvent struct {
	OrderID         uuid.UUID `json:"order_id"`
	TotalMinorUnits int64     `json:"total_minor_units"`
	Currency        string    `json:"currency"`
	FailedAt        time.Time `json:"failed_at"`
	Reason          string    `json:"reason,omitempty"`
	ProviderEventID string    `json:"provider_event_id,omitempty"`
}

// SellerAccountUpdatedEvent mirrors provider account state changes for a seller.
type SellerAccountUpdatedEvent struct {
	SellerID           uuid.UUID                `json:"seller_id"`
	SubscriptionStatus enums.SubscriptionStatus `json:"subscription_status"`
	Entitled           bool                     `json:"entitled"`
	ChargesEnabled     bool                     `json:"charges_enabled"`
	PayoutsEnabled     bool                     `json:"payouts_enabled"`
}
