package webhooks

import (
	"context"
	"io"
	"net/http"

	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/settlement-backend/api/responses"
	stripewebhook "github.com/angelmondragon/settlement-backend/internal/webhooks/stripe"
	pkgerrors "github.com/angelmondragon/settlement-backend/pkg/errors"
	"github.com/angelmondragon/settlement-backend/pkg/logger"
)

// Stripe rejects webhook bodies larger than this.
const maxBodyBytes = 65536

type StripeReconciler interface {
	Handle(ctx context.Context, event stripe.Event) (stripewebhook.Result, error)
}

type stripeEventVerifier interface {
	ConstructEvent(payload []byte, signature string) (stripe.Event, error)
}

type stripeWebhookGuard interface {
	Processed(ctx context.Context, eventID string) (bool, error)
	MarkProcessed(ctx context.Context, eventID string) error
}

type ackResponse struct {
	Received bool   `json:"received"`
	Kind     string `json:"kind,omitempty"`
	Outcome  string `json:"outcome,omitempty"`
}

// StripeWebhook verifies a Stripe delivery and reconciles it.
// guard may be nil; reconciliation is idempotent on its own.
func StripeWebhook(svc StripeReconciler, verifier stripeEventVerifier, guard stripeWebhookGuard, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil || verifier == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook reconciler unavailable"))
			return
		}

		payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
			return
		}

		sigHeader := r.Header.Get("Stripe-Signature")
		if sigHeader == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeSignature, "stripe signature missing"))
			return
		}

		event, err := verifier.ConstructEvent(payload, sigHeader)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeSignature, err, "verify signature"))
			return
		}

		if guard != nil {
			done, err := guard.Processed(ctx, event.ID)
			if err != nil && logg != nil {
				logg.Warn(logg.WithField(ctx, "stripe_event_id", event.ID), "webhook event guard unavailable; reconciling anyway")
			}
			if err == nil && done {
				responses.WriteSuccess(w, ackResponse{Received: true, Outcome: "duplicate"})
				return
			}
		}

		result, err := svc.Handle(ctx, event)
		if pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
			// A malformed payload fails the same way on every retry.
			if logg != nil {
				logg.Error(logg.WithFields(ctx, map[string]any{
					"stripe_event_id":   event.ID,
					"stripe_event_type": string(event.Type),
				}), "stripe event payload rejected; acknowledging", err)
			}
			responses.WriteSuccess(w, ackResponse{Received: true, Kind: result.Kind.String(), Outcome: "rejected"})
			return
		}
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reconcile stripe event"))
			return
		}

		if guard != nil {
			if err := guard.MarkProcessed(ctx, event.ID); err != nil && logg != nil {
				logg.Warn(logg.WithField(ctx, "stripe_event_id", event.ID), "failed to mark stripe event processed")
			}
		}

		if logg != nil {
			fields := map[string]any{
				"stripe_event_id": event.ID,
				"event_kind":      result.Kind.String(),
				"outcome":         string(result.Outcome),
			}
			if result.Degraded != nil {
				fields["degraded"] = result.Degraded.Error()
			}
			logg.Info(logg.WithFields(ctx, fields), "stripe event processed")
		}
		responses.WriteSuccess(w, ackResponse{Received: true, Kind: result.Kind.String(), Outcome: string(result.Outcome)})
	}
}
