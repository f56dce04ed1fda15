package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/settlement-backend/api/responses"
	"github.com/angelmondragon/settlement-backend/api/validators"
	"github.com/angelmondragon/settlement-backend/internal/payments"
	pkgerrors "github.com/angelmondragon/settlement-backend/pkg/errors"
	"github.com/angelmondragon/settlement-backend/pkg/logger"
)

type paymentResponse struct {
	OrderID       uuid.UUID `json:"order_id"`
	Provider      string    `json:"provider"`
	HandleKind    string    `json:"handle_kind"`
	HandleID      string    `json:"handle_id"`
	ClientPayload string    `json:"client_payload"`
	Reused        bool      `json:"reused"`
}

// IssuePayment returns the order's payment handle, creating it on first call.
// Repeat calls return the stored handle with 200; a fresh handle is a 201.
func IssuePayment(issuer payments.Issuer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if issuer == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment issuer unavailable"))
			return
		}

		buyerID, err := buyerIDFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := issuer.Issue(r.Context(), buyerID, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp := paymentResponse{
			OrderID:       result.OrderID,
			Provider:      string(result.Reference.Provider),
			HandleKind:    string(result.Reference.HandleKind),
			ClientPayload: result.ClientPayload,
			Reused:        result.Reused,
		}
		if result.Reference.HandleID != nil {
			resp.HandleID = *result.Reference.HandleID
		}

		status := http.StatusCreated
		if result.Reused {
			status = http.StatusOK
		}
		responses.WriteSuccessStatus(w, status, resp)
	}
}
