package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/settlement-backend/pkg/db/models"
	"github.com/angelmondragon/settlement-backend/pkg/money"
)

// OrderDTO is the buyer-facing view of an order.
type OrderDTO struct {
	ID                 uuid.UUID      `json:"id"`
	Status             string         `json:"status"`
	Currency           string         `json:"currency"`
	ShippingMethod     string         `json:"shipping_method"`
	SubtotalMinorUnits int64          `json:"subtotal_minor_units"`
	ShippingMinorUnits int64          `json:"shipping_minor_units"`
	TotalMinorUnits    int64          `json:"total_minor_units"`
	TotalDisplay       string         `json:"total_display"`
	PaymentHandleKind  string         `json:"payment_handle_kind,omitempty"`
	PaymentIssued      bool           `json:"payment_issued"`
	Lines              []OrderLineDTO `json:"lines"`
	PaidAt             *time.Time     `json:"paid_at,omitempty"`
	ConfirmedAt        *time.Time     `json:"confirmed_at,omitempty"`
	FailedAt           *time.Time     `json:"failed_at,omitempty"`
	CreatedAt          time.Time      `json:"created_at"`
}

type OrderLineDTO struct {
	CatalogItemID   uuid.UUID `json:"catalog_item_id"`
	SellerID        uuid.UUID `json:"seller_id"`
	Title           string    `json:"title"`
	Quantity        int       `json:"quantity"`
	PriceMinorUnits int64     `json:"price_minor_units"`
	LineTotal       int64     `json:"line_total_minor_units"`
}

// SellerOrderDTO is one row of a seller's order list.
type SellerOrderDTO struct {
	OrderID                  uuid.UUID  `json:"order_id"`
	BuyerID                  uuid.UUID  `json:"buyer_id"`
	Status                   string     `json:"status"`
	Currency                 string     `json:"currency"`
	SellerSubtotalMinorUnits int64      `json:"seller_subtotal_minor_units"`
	SubtotalDisplay          string     `json:"subtotal_display"`
	ItemCount                int        `json:"item_count"`
	PaidAt                   *time.Time `json:"paid_at,omitempty"`
	CreatedAt                time.Time  `json:"created_at"`
}

func NewOrderDTO(order models.Order) OrderDTO {
	dto := OrderDTO{
		ID:                 order.ID,
		Status:             order.Status.String(),
		Currency:           order.Currency,
		ShippingMethod:     order.ShippingMethod,
		SubtotalMinorUnits: order.SubtotalMinorUnits,
		ShippingMinorUnits: order.ShippingMinorUnits,
		TotalMinorUnits:    order.TotalMinorUnits,
		TotalDisplay:       money.Format(order.TotalMinorUnits, order.Currency),
		PaymentHandleKind:  string(order.Payment.HandleKind),
		PaymentIssued:      order.Payment.Issued(),
		Lines:              make([]OrderLineDTO, 0, len(order.Lines)),
		PaidAt:             order.PaidAt,
		ConfirmedAt:        order.ConfirmedAt,
		FailedAt:           order.FailedAt,
		CreatedAt:          order.CreatedAt,
	}
	for _, line := range order.Lines {
		dto.Lines = append(dto.Lines, OrderLineDTO{
			CatalogItemID:   line.CatalogItemID,
			SellerID:        line.SellerID,
			Title:           line.Title,
			Quantity:        line.Quantity,
			PriceMinorUnits: line.PriceMinorUnits,
			LineTotal:       line.LineTotal,
		})
	}
	return dto
}

func NewSellerOrderDTOs(rows []models.SellerOrder) []SellerOrderDTO {
	out := make([]SellerOrderDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, SellerOrderDTO{
			OrderID:                  row.OrderID,
			BuyerID:                  row.BuyerID,
			Status:                   row.Status.String(),
			Currency:                 row.Currency,
			SellerSubtotalMinorUnits: row.SellerSubtotalMinorUnits,
			SubtotalDisplay:          money.Format(row.SellerSubtotalMinorUnits, row.Currency),
			ItemCount:                row.ItemCount,
			PaidAt:                   row.PaidAt,
			CreatedAt:                row.CreatedAt,
		})
	}
	return out
}
