package stripewebhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/angelmondragon/settlement-backend/internal/billing"
	"github.com/angelmondragon/settlement-backend/internal/inventory"
	"github.com/angelmondragon/settlement-backend/internal/orders"
	"github.com/angelmondragon/settlement-backend/pkg/db/models"
	"github.com/angelmondragon/settlement-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/settlement-backend/pkg/errors"
	"github.com/angelmondragon/settlement-backend/pkg/logger"
	"github.com/angelmondragon/settlement-backend/pkg/metrics"
	pkgstripe "github.com/angelmondragon/settlement-backend/pkg/stripe"
)

const defaultTimeout = 25 * time.Second

// Outcome reports what a delivery changed.
type Outcome string

const (
	OutcomeApplied       Outcome = "applied"
	OutcomeNoOp          Outcome = "no_op"
	OutcomeOrderNotFound Outcome = "order_not_found"
	OutcomeIgnored       Outcome = "ignored"
)

// ErrPaidAfterFailure reports a captured payment on an order already failed.
var ErrPaidAfterFailure = errors.New("payment captured for a failed order")

// Result is returned for every acknowledged delivery. Degraded carries a
// post-payment problem that must not fail the delivery: an
// *inventory.DegradedError or ErrPaidAfterFailure.
type Result struct {
	Kind     EventKind
	Outcome  Outcome
	OrderID  uuid.UUID
	Degraded error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type transitioner interface {
	Transition(ctx context.Context, tx *gorm.DB, order *models.Order, to enums.OrderStatus, meta orders.TransitionMeta) (bool, error)
}

type inventoryLedger interface {
	Apply(ctx context.Context, orderID uuid.UUID) (inventory.Outcome, error)
}

type ServiceParams struct {
	TransactionRunner txRunner
	OrdersRepo        orders.Repository
	Orders            transitioner
	Ledger            inventoryLedger
	Billing           billing.Service
	Timeout           time.Duration
	Metrics           *metrics.Settlement
	Logger            *logger.Logger
}

// Reconciler applies verified Stripe events to orders and seller accounts.
type Reconciler struct {
	tx      txRunner
	repo    orders.Repository
	orders  transitioner
	ledger  inventoryLedger
	billing billing.Service
	timeout time.Duration
	metrics *metrics.Settlement
	logg    *logger.Logger
}

func NewReconciler(params ServiceParams) (*Reconciler, error) {
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	if params.OrdersRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "orders repo required")
	}
	if params.Orders == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "orders service required")
	}
	if params.Ledger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "inventory ledger required")
	}
	if params.Billing == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "billing service required")
	}
	timeout := params.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Reconciler{
		tx:      params.TransactionRunner,
		repo:    params.OrdersRepo,
		orders:  params.Orders,
		ledger:  params.Ledger,
		billing: params.Billing,
		timeout: timeout,
		metrics: params.Metrics,
		logg:    params.Logger,
	}, nil
}

// Handle dispatches one verified event. Replays and events for unknown orders
// are acknowledged; an error means the provider should redeliver.
func (r *Reconciler) Handle(ctx context.Context, event stripe.Event) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	kind := ParseEventKind(event.Type)
	if r.logg != nil {
		ctx = r.logg.WithFields(ctx, map[string]any{
			"stripe_event_id":   event.ID,
			"stripe_event_type": string(event.Type),
		})
	}

	result, err := r.dispatch(ctx, kind, event)
	result.Kind = kind
	if err != nil {
		r.metrics.WebhookEvent(kind.String(), "error")
		return result, err
	}
	r.metrics.WebhookEvent(kind.String(), string(result.Outcome))
	if result.Degraded != nil {
		r.metrics.WebhookEvent(kind.String(), "degraded")
	}
	return result, nil
}

func (r *Reconciler) dispatch(ctx context.Context, kind EventKind, event stripe.Event) (Result, error) {
	if kind != KindUnknown && (event.Data == nil || len(event.Data.Raw) == 0) {
		return Result{}, pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}

	switch kind {
	case KindCheckoutCompleted:
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return Result{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode checkout session")
		}
		if session.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
			r.info(ctx, "checkout completed without payment; waiting for async result")
			return Result{Outcome: OutcomeNoOp}, nil
		}
		return r.markPaid(ctx, session.Metadata, event.ID)
	case KindCheckoutAsyncSucceeded:
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return Result{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode checkout session")
		}
		return r.markPaid(ctx, session.Metadata, event.ID)
	case KindCheckoutAsyncFailed:
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return Result{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode checkout session")
		}
		return r.markFailed(ctx, session.Metadata, event.ID, "async payment failed")
	case KindIntentSucceeded:
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
			return Result{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode payment intent")
		}
		return r.confirm(ctx, intent.Metadata, event.ID)
	case KindIntentFailed:
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
			return Result{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode payment intent")
		}
		return r.attemptFailed(ctx, intent), nil
	case KindIntentCanceled:
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
			return Result{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode payment intent")
		}
		reason := "payment intent canceled"
		if intent.CancellationReason != "" {
			reason += ": " + string(intent.CancellationReason)
		}
		return r.markFailed(ctx, intent.Metadata, event.ID, reason)
	case KindSubscriptionChanged:
		return r.syncSubscription(ctx, event.Data.Raw)
	case KindAccountUpdated:
		return r.syncAccount(ctx, event.Data.Raw)
	default:
		r.info(ctx, "stripe event acknowledged and ignored")
		return Result{Outcome: OutcomeIgnored}, nil
	}
}

// markPaid moves a pending order to paid and then runs the inventory ledger.
// A replay on a settled order only retries an unfinished ledger run.
func (r *Reconciler) markPaid(ctx context.Context, metadata map[string]string, eventID string) (Result, error) {
	orderID, ok := r.orderIDFrom(ctx, metadata)
	if !ok {
		return Result{Outcome: OutcomeOrderNotFound}, nil
	}
	result := Result{OrderID: orderID, Outcome: OutcomeNoOp}
	meta := orders.TransitionMeta{ProviderEventID: eventID}

	order, found, err := r.inLockedOrder(ctx, orderID, func(tx *gorm.DB, order *models.Order) error {
		if order.Status != enums.OrderStatusPending {
			return nil
		}
		changed, err := r.orders.Transition(ctx, tx, order, enums.OrderStatusPaid, meta)
		if changed {
			result.Outcome = OutcomeApplied
		}
		return err
	})
	if err != nil {
		return Result{OrderID: orderID}, err
	}
	if !found {
		result.Outcome = OutcomeOrderNotFound
		return result, nil
	}
	if order.Status == enums.OrderStatusFailed {
		return r.paidAfterFailure(ctx, result), nil
	}
	return r.applyInventory(ctx, order, result)
}

// confirm finalizes a paid order. In intent mode the intent is the only
// payment signal, so a pending order is paid and confirmed in one pass.
func (r *Reconciler) confirm(ctx context.Context, metadata map[string]string, eventID string) (Result, error) {
	orderID, ok := r.orderIDFrom(ctx, metadata)
	if !ok {
		return Result{Outcome: OutcomeOrderNotFound}, nil
	}
	result := Result{OrderID: orderID, Outcome: OutcomeNoOp}
	meta := orders.TransitionMeta{ProviderEventID: eventID}

	order, found, err := r.inLockedOrder(ctx, orderID, func(tx *gorm.DB, order *models.Order) error {
		if order.Status == enums.OrderStatusPending && order.Payment.HandleKind == enums.PaymentHandleIntent {
			if _, err := r.orders.Transition(ctx, tx, order, enums.OrderStatusPaid, meta); err != nil {
				return err
			}
		}
		if order.Status != enums.OrderStatusPaid {
			return nil
		}
		changed, err := r.orders.Transition(ctx, tx, order, enums.OrderStatusConfirmed, meta)
		if changed {
			result.Outcome = OutcomeApplied
		}
		return err
	})
	if err != nil {
		return Result{OrderID: orderID}, err
	}
	if !found {
		result.Outcome = OutcomeOrderNotFound
		return result, nil
	}
	if order.Status == enums.OrderStatusFailed {
		return r.paidAfterFailure(ctx, result), nil
	}
	if !order.Status.Settled() {
		return result, nil
	}
	return r.applyInventory(ctx, order, result)
}

// attemptFailed records a declined attempt. The intent stays open for a retry,
// so the order is left pending until the session or intent reaches a terminal state.
func (r *Reconciler) attemptFailed(ctx context.Context, intent stripe.PaymentIntent) Result {
	result := Result{Outcome: OutcomeNoOp}
	if id, err := uuid.Parse(strings.TrimSpace(intent.Metadata[pkgstripe.MetadataOrderID])); err == nil {
		result.OrderID = id
	}
	if r.logg != nil {
		fields := map[string]any{"order_id": result.OrderID.String()}
		if intent.LastPaymentError != nil && intent.LastPaymentError.Msg != "" {
			fields["decline_reason"] = intent.LastPaymentError.Msg
		}
		r.logg.Warn(r.logg.WithFields(ctx, fields), "payment attempt failed; order stays pending")
	}
	return result
}

// paidAfterFailure leaves the order failed and reports the captured payment
// so it can be refunded or reinstated by hand.
func (r *Reconciler) paidAfterFailure(ctx context.Context, result Result) Result {
	r.metrics.PaymentAfterFailure()
	result.Degraded = fmt.Errorf("order %s: %w", result.OrderID, ErrPaidAfterFailure)
	if r.logg != nil {
		r.logg.Error(r.logg.WithOrderID(ctx, result.OrderID.String()), "payment captured for a failed order", ErrPaidAfterFailure)
	}
	return result
}

func (r *Reconciler) markFailed(ctx context.Context, metadata map[string]string, eventID, reason string) (Result, error) {
	orderID, ok := r.orderIDFrom(ctx, metadata)
	if !ok {
		return Result{Outcome: OutcomeOrderNotFound}, nil
	}
	result := Result{OrderID: orderID, Outcome: OutcomeNoOp}
	meta := orders.TransitionMeta{ProviderEventID: eventID, Reason: reason}

	_, found, err := r.inLockedOrder(ctx, orderID, func(tx *gorm.DB, order *models.Order) error {
		if order.Status != enums.OrderStatusPending {
			return nil
		}
		changed, err := r.orders.Transition(ctx, tx, order, enums.OrderStatusFailed, meta)
		if changed {
			result.Outcome = OutcomeApplied
		}
		return err
	})
	if err != nil {
		return Result{OrderID: orderID}, err
	}
	if !found {
		result.Outcome = OutcomeOrderNotFound
	}
	return result, nil
}

// inLockedOrder runs fn against the row-locked order inside one transaction and
// returns the order as fn left it.
func (r *Reconciler) inLockedOrder(ctx context.Context, orderID uuid.UUID, fn func(tx *gorm.DB, order *models.Order) error) (*models.Order, bool, error) {
	var locked *models.Order
	err := r.tx.WithTx(ctx, func(tx *gorm.DB) error {
		order, err := r.repo.WithTx(tx).FindByIDForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		locked = order
		return fn(tx, order)
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		r.warn(ctx, orderID, "stripe event references unknown order")
		return nil, false, nil
	}
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, true, err
		}
		return nil, true, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reconcile order")
	}
	return locked, true, nil
}

func (r *Reconciler) applyInventory(ctx context.Context, order *models.Order, result Result) (Result, error) {
	if order.InventoryStatus == enums.InventoryStatusApplied {
		return result, nil
	}
	_, err := r.ledger.Apply(ctx, order.ID)
	if err == nil {
		return result, nil
	}
	if degraded, ok := inventory.AsDegraded(err); ok {
		result.Degraded = degraded
		return result, nil
	}
	return result, err
}

func (r *Reconciler) syncSubscription(ctx context.Context, raw json.RawMessage) (Result, error) {
	var sub stripe.Subscription
	if err := json.Unmarshal(raw, &sub); err != nil {
		return Result{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode subscription")
	}
	if sub.Customer == nil || sub.Customer.ID == "" {
		r.info(ctx, "subscription event without customer ignored")
		return Result{Outcome: OutcomeIgnored}, nil
	}
	status, err := enums.ParseSubscriptionStatus(string(sub.Status))
	if err != nil {
		r.info(ctx, "subscription event with unsupported status ignored")
		return Result{Outcome: OutcomeIgnored}, nil
	}
	applied, err := r.billing.SyncSubscription(ctx, billing.SubscriptionSnapshot{
		CustomerID:     sub.Customer.ID,
		SubscriptionID: sub.ID,
		Status:         status,
	})
	if err != nil {
		return Result{}, err
	}
	return Result{Outcome: appliedOutcome(applied)}, nil
}

func (r *Reconciler) syncAccount(ctx context.Context, raw json.RawMessage) (Result, error) {
	var account stripe.Account
	if err := json.Unmarshal(raw, &account); err != nil {
		return Result{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode account")
	}
	applied, err := r.billing.SyncAccount(ctx, billing.AccountSnapshot{
		AccountID:      account.ID,
		ChargesEnabled: account.ChargesEnabled,
		PayoutsEnabled: account.PayoutsEnabled,
	})
	if err != nil {
		return Result{}, err
	}
	return Result{Outcome: appliedOutcome(applied)}, nil
}

func appliedOutcome(applied bool) Outcome {
	if applied {
		return OutcomeApplied
	}
	return OutcomeNoOp
}

func (r *Reconciler) orderIDFrom(ctx context.Context, metadata map[string]string) (uuid.UUID, bool) {
	raw := strings.TrimSpace(metadata[pkgstripe.MetadataOrderID])
	id, err := uuid.Parse(raw)
	if err != nil {
		if r.logg != nil {
			r.logg.Warn(r.logg.WithField(ctx, "metadata_order_id", raw), "stripe event without a usable order id")
		}
		return uuid.Nil, false
	}
	return id, true
}

func (r *Reconciler) info(ctx context.Context, msg string) {
	if r.logg != nil {
		r.logg.Info(ctx, msg)
	}
}

func (r *Reconciler) warn(ctx context.Context, orderID uuid.UUID, msg string) {
	if r.logg != nil {
		r.logg.Warn(r.logg.WithOrderID(ctx, orderID.String()), msg)
	}
}
