package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/settlement-backend/internal/orders"
	"github.com/angelmondragon/settlement-backend/pkg/config"
	"github.com/angelmondragon/settlement-backend/pkg/db/models"
	"github.com/angelmondragon/settlement-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/settlement-backend/pkg/errors"
	"github.com/angelmondragon/settlement-backend/pkg/logger"
	"github.com/angelmondragon/settlement-backend/pkg/metrics"
	"github.com/angelmondragon/settlement-backend/pkg/outbox"
	"github.com/angelmondragon/settlement-backend/pkg/outbox/payloads"
	pkgstripe "github.com/angelmondragon/settlement-backend/pkg/stripe"
)

const defaultProviderTimeout = 20 * time.Second

// Provider creates payment handles. The Stripe implementation is pkgstripe.PaymentHandles.
type Provider interface {
	CreatePaymentHandle(ctx context.Context, req pkgstripe.HandleRequest) (pkgstripe.Handle, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Result is the payment reference handed back to the buyer.
type Result struct {
	OrderID       uuid.UUID
	Reference     models.PaymentReference
	ClientPayload string
	Reused        bool
}

// Issuer creates at most one provider payment handle per order.
type Issuer interface {
	Issue(ctx context.Context, buyerID, orderID uuid.UUID) (*Result, error)
}

type issuer struct {
	tx       txRunner
	orders   orders.Repository
	provider Provider
	outbox   outboxPublisher
	cfg      config.PaymentsConfig
	kind     enums.PaymentHandleKind
	metrics  *metrics.Settlement
	logg     *logger.Logger
}

// NewIssuer wires the payment issuer.
func NewIssuer(
	tx txRunner,
	ordersRepo orders.Repository,
	provider Provider,
	publisher outboxPublisher,
	cfg config.PaymentsConfig,
	settlementMetrics *metrics.Settlement,
	logg *logger.Logger,
) (Issuer, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if provider == nil {
		return nil, fmt.Errorf("payment provider required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	kind, err := enums.ParsePaymentHandleKind(cfg.Mode)
	if err != nil {
		return nil, err
	}
	if cfg.ProviderTimeout <= 0 {
		cfg.ProviderTimeout = defaultProviderTimeout
	}
	return &issuer{
		tx:       tx,
		orders:   ordersRepo,
		provider: provider,
		outbox:   publisher,
		cfg:      cfg,
		kind:     kind,
		metrics:  settlementMetrics,
		logg:     logg,
	}, nil
}

func (s *issuer) Issue(ctx context.Context, buyerID, orderID uuid.UUID) (*Result, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order.BuyerID != buyerID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if err := requirePending(order); err != nil {
		return nil, err
	}
	if order.Payment.Issued() {
		return s.reused(ctx, order), nil
	}

	handle, err := s.createHandle(ctx, order)
	if err != nil {
		return nil, err
	}

	ref := models.PaymentReference{
		Provider:       enums.PaymentProviderStripe,
		HandleKind:     handle.Kind,
		HandleID:       &handle.ID,
		IdempotencyKey: orders.IdempotencyKey(order.ID),
		ClientPayload:  handle.ClientPayload,
	}

	var result *Result
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.orders.WithTx(tx)
		locked, err := repo.FindByIDForUpdate(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock order")
		}
		if err := requirePending(locked); err != nil {
			return err
		}
		if locked.Payment.Issued() {
			result = resultFor(locked, true)
			return nil
		}

		stored, err := repo.SetPaymentReference(ctx, order.ID, ref)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist payment reference")
		}
		if !stored {
			current, err := repo.FindByID(ctx, order.ID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order")
			}
			result = resultFor(current, true)
			return nil
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentIssued,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: buyerID, Role: string(enums.MemberRoleBuyer)},
			Data: payloads.PaymentIssuedEvent{
				OrderID:         order.ID,
				Provider:        ref.Provider,
				HandleKind:      ref.HandleKind,
				HandleID:        handle.ID,
				TotalMinorUnits: order.TotalMinorUnits,
				Currency:        order.Currency,
			},
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit payment issued")
		}

		locked.Payment = ref
		result = resultFor(locked, false)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.PaymentIssued(string(s.kind), result.Reused)
	if s.logg != nil {
		logCtx := s.logg.WithFields(s.logg.WithOrderID(ctx, order.ID.String()), map[string]any{
			"handle_kind": result.Reference.HandleKind,
			"reused":      result.Reused,
		})
		s.logg.Info(logCtx, "payment handle issued")
	}
	return result, nil
}

func (s *issuer) createHandle(ctx context.Context, order *models.Order) (pkgstripe.Handle, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.cfg.ProviderTimeout)
	defer cancel()

	handle, err := s.provider.CreatePaymentHandle(callCtx, pkgstripe.HandleRequest{
		OrderID:        order.ID,
		AmountMinor:    order.TotalMinorUnits,
		Currency:       order.Currency,
		IdempotencyKey: orders.IdempotencyKey(order.ID),
		Kind:           s.kind,
		SuccessURL:     s.cfg.SuccessURL,
		CancelURL:      s.cfg.CancelURL,
	})
	if err != nil {
		if s.logg != nil {
			s.logg.Error(s.logg.WithOrderID(ctx, order.ID.String()), "payment provider call failed", err)
		}
		return pkgstripe.Handle{}, pkgerrors.Wrap(pkgerrors.CodePaymentProvider, err, "payment provider unavailable")
	}
	if handle.ID == "" {
		return pkgstripe.Handle{}, pkgerrors.New(pkgerrors.CodePaymentProvider, "payment provider returned no handle")
	}
	return handle, nil
}

func (s *issuer) reused(ctx context.Context, order *models.Order) *Result {
	s.metrics.PaymentIssued(string(order.Payment.HandleKind), true)
	if s.logg != nil {
		s.logg.Info(s.logg.WithOrderID(ctx, order.ID.String()), "payment handle reused")
	}
	return resultFor(order, true)
}

func requirePending(order *models.Order) error {
	if order.Status != enums.OrderStatusPending {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "order is not awaiting payment").
			WithDetails(map[string]any{"status": order.Status})
	}
	return nil
}

func resultFor(order *models.Order, reused bool) *Result {
	return &Result{
		OrderID:       order.ID,
		Reference:     order.Payment,
		ClientPayload: order.Payment.ClientPayload,
		Reused:        reused,
	}
}
