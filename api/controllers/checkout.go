package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/settlement-backend/api/responses"
	"github.com/angelmondragon/settlement-backend/api/validators"
	checkoutsvc "github.com/angelmondragon/settlement-backend/internal/checkout"
	"github.com/angelmondragon/settlement-backend/internal/orders"
	pkgerrors "github.com/angelmondragon/settlement-backend/pkg/errors"
	"github.com/angelmondragon/settlement-backend/pkg/logger"
)

// Checkout prices the submitted cart against the catalog and creates a pending order.
func Checkout(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		buyerID, err := buyerIDFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Execute(r.Context(), buyerID, payload.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, orders.NewOrderDTO(*order))
	}
}

type checkoutRequest struct {
	Lines          []checkoutLineRequest `json:"lines" validate:"required,min=1,dive"`
	ShippingMethod string                `json:"shipping_method" validate:"required"`
	Currency       string                `json:"currency,omitempty" validate:"omitempty,len=3"`
}

// UnitPrice is accepted from older clients and ignored.
type checkoutLineRequest struct {
	LineKey    string    `json:"line_key,omitempty" validate:"omitempty,max=128"`
	CatalogRef uuid.UUID `json:"catalog_ref" validate:"required"`
	Quantity   int       `json:"quantity" validate:"required,min=1"`
	UnitPrice  *int64    `json:"unit_price,omitempty"`
}

func (c checkoutRequest) toInput() checkoutsvc.Input {
	lines := make([]checkoutsvc.CartLine, 0, len(c.Lines))
	for _, line := range c.Lines {
		lines = append(lines, checkoutsvc.CartLine{
			LineKey:             line.LineKey,
			CatalogRef:          line.CatalogRef,
			Quantity:            line.Quantity,
			ClientSuppliedPrice: line.UnitPrice,
		})
	}
	return checkoutsvc.Input{
		Lines:          lines,
		ShippingMethod: c.ShippingMethod,
		Currency:       c.Currency,
	}
}
