package orders

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/settlement-backend/pkg/db/models"
	"github.com/angelmondragon/settlement-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/settlement-backend/pkg/errors"
	"github.com/angelmondragon/settlement-backend/pkg/outbox"
	"github.com/angelmondragon/settlement-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/settlement-backend/pkg/pagination"
)

// transitionEmitter queues at most one event per type for an order.
type transitionEmitter interface {
	EmitOnce(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// TransitionMeta carries the provider context of a status change.
type TransitionMeta struct {
	ProviderEventID string
	Reason          string
	At              time.Time
}

// Service exposes order reads and the guarded status transition shared by settlement writers.
type Service interface {
	Get(ctx context.Context, buyerID, orderID uuid.UUID) (*models.Order, error)
	ListForBuyer(ctx context.Context, buyerID uuid.UUID, limit int) ([]models.Order, error)
	ListForSeller(ctx context.Context, sellerID uuid.UUID, params pagination.Params) (*pagination.Page[models.SellerOrder], error)
	Transition(ctx context.Context, tx *gorm.DB, order *models.Order, to enums.OrderStatus, meta TransitionMeta) (bool, error)
}

type service struct {
	repo   Repository
	outbox transitionEmitter
}

// NewService wires order dependencies.
func NewService(repo Repository, emitter transitionEmitter) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "orders repository required")
	}
	if emitter == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "outbox emitter required")
	}
	return &service{repo: repo, outbox: emitter}, nil
}

// Get returns the order with its lines. Orders owned by another buyer read as not found.
func (s *service) Get(ctx context.Context, buyerID, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order.BuyerID != buyerID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}

func (s *service) ListForBuyer(ctx context.Context, buyerID uuid.UUID, limit int) ([]models.Order, error) {
	rows, err := s.repo.FindByBuyer(ctx, buyerID, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list buyer orders")
	}
	return rows, nil
}

func (s *service) ListForSeller(ctx context.Context, sellerID uuid.UUID, params pagination.Params) (*pagination.Page[models.SellerOrder], error) {
	if sellerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "seller id required")
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	rows, err := s.repo.ListBySeller(ctx, sellerID, params.Limit, cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list seller orders")
	}
	page := pagination.Paginate(rows, params.Limit, func(row models.SellerOrder) pagination.Cursor {
		return pagination.Cursor{CreatedAt: row.CreatedAt, ID: row.OrderID}
	})
	return &page, nil
}

// Transition moves a locked order to `to` on both projections and queues the matching event in tx.
// It returns false without writing when the order is already at or past `to`.
func (s *service) Transition(ctx context.Context, tx *gorm.DB, order *models.Order, to enums.OrderStatus, meta TransitionMeta) (bool, error) {
	if tx == nil {
		return false, pkgerrors.New(pkgerrors.CodeInternal, "transition requires a transaction")
	}
	if Reached(order.Status, to) {
		return false, nil
	}
	if !CanTransition(order.Status, to) {
		return false, pkgerrors.New(pkgerrors.CodeStateConflict, "illegal order transition").
			WithDetails(map[string]any{"from": order.Status, "to": to})
	}

	at := meta.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	var stamps Stamps
	switch to {
	case enums.OrderStatusPaid:
		stamps.PaidAt = &at
	case enums.OrderStatusConfirmed:
		stamps.ConfirmedAt = &at
	case enums.OrderStatusFailed:
		stamps.FailedAt = &at
	}

	repo := s.repo.WithTx(tx)
	if err := repo.UpdateStatus(ctx, order.ID, order.Status, to, stamps); err != nil {
		if errors.Is(err, ErrStaleTransition) {
			return false, pkgerrors.Wrap(pkgerrors.CodeStateConflict, err, "order status changed concurrently")
		}
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
	}

	event, err := s.transitionEvent(ctx, repo, order, to, at, meta)
	if err != nil {
		return false, err
	}
	if err := s.outbox.EmitOnce(ctx, tx, event); err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit order transition event")
	}

	order.Status = to
	switch to {
	case enums.OrderStatusPaid:
		order.PaidAt = &at
	case enums.OrderStatusConfirmed:
		order.ConfirmedAt = &at
	case enums.OrderStatusFailed:
		order.FailedAt = &at
	}
	return true, nil
}

func (s *service) transitionEvent(ctx context.Context, repo Repository, order *models.Order, to enums.OrderStatus, at time.Time, meta TransitionMeta) (outbox.DomainEvent, error) {
	event := outbox.DomainEvent{
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		OccurredAt:    at,
	}
	switch to {
	case enums.OrderStatusPaid:
		mirrors, err := repo.FindSellerOrders(ctx, order.ID)
		if err != nil {
			return event, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load seller orders")
		}
		sellerIDs := make([]uuid.UUID, 0, len(mirrors))
		for _, m := range mirrors {
			sellerIDs = append(sellerIDs, m.SellerID)
		}
		event.EventType = enums.EventOrderPaid
		event.Data = payloads.OrderPaidEvent{
			OrderID:         order.ID,
			BuyerID:         order.BuyerID,
			SellerIDs:       sellerIDs,
			TotalMinorUnits: order.TotalMinorUnits,
			Currency:        order.Currency,
			PaidAt:          at,
			ProviderEventID: meta.ProviderEventID,
		}
	case enums.OrderStatusConfirmed:
		event.EventType = enums.EventOrderConfirmed
		event.Data = payloads.OrderConfirmedEvent{
			OrderID:         order.ID,
			TotalMinorUnits: order.TotalMinorUnits,
			Currency:        order.Currency,
			ConfirmedAt:     at,
			ProviderEventID: meta.ProviderEventID,
		}
	case enums.OrderStatusFailed:
		event.EventType = enums.EventOrderFailed
		event.Data = payloads.OrderFailedEvent{
			OrderID:         order.ID,
			TotalMinorUnits: order.TotalMinorUnits,
			Currency:        order.Currency,
			FailedAt:        at,
			Reason:          meta.Reason,
			ProviderEventID: meta.ProviderEventID,
		}
	default:
		return event, pkgerrors.New(pkgerrors.CodeInternal, "no event for order status "+to.String())
	}
	return event, nil
}
