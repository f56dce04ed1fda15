package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/settlement-backend/internal/catalog"
	"github.com/angelmondragon/settlement-backend/internal/orders"
	"github.com/angelmondragon/settlement-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/settlement-backend/pkg/errors"
	"github.com/angelmondragon/settlement-backend/pkg/logger"
	"github.com/angelmondragon/settlement-backend/pkg/metrics"
)

// Outcome reports what Apply did.
type Outcome string

const (
	OutcomeApplied        Outcome = "applied"
	OutcomeAlreadyApplied Outcome = "already_applied"
	OutcomeDegraded       Outcome = "degraded"
)

// DegradedError is a post-payment failure. The order keeps its paid status and
// the stock decrement is left to the reconcile job.
type DegradedError struct {
	OrderID uuid.UUID
	Err     error
}

func (e *DegradedError) Error() string {
	return fmt.Sprintf("inventory degraded for order %s: %v", e.OrderID, e.Err)
}

func (e *DegradedError) Unwrap() error {
	return e.Err
}

// AsDegraded extracts a DegradedError from err.
func AsDegraded(err error) (*DegradedError, bool) {
	var degraded *DegradedError
	if errors.As(err, &degraded) {
		return degraded, true
	}
	return nil, false
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Ledger applies the stock decrement of a paid order exactly once.
type Ledger struct {
	tx      txRunner
	orders  orders.Repository
	catalog catalog.Repository
	metrics *metrics.Settlement
	logg    *logger.Logger
	now     func() time.Time
}

func NewLedger(tx txRunner, ordersRepo orders.Repository, catalogRepo catalog.Repository, settlementMetrics *metrics.Settlement, logg *logger.Logger) (*Ledger, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if catalogRepo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	return &Ledger{
		tx:      tx,
		orders:  ordersRepo,
		catalog: catalogRepo,
		metrics: settlementMetrics,
		logg:    logg,
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

// Apply decrements stock for every distinct item in the order inside one
// transaction, guarded by the order's inventory_status. A failed transaction
// is recorded on the order and returned as *DegradedError.
func (l *Ledger) Apply(ctx context.Context, orderID uuid.UUID) (Outcome, error) {
	outcome := OutcomeApplied
	err := l.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ordersRepo := l.orders.WithTx(tx)
		catalogRepo := l.catalog.WithTx(tx)

		order, err := ordersRepo.FindByIDForUpdate(ctx, orderID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		if err != nil {
			return err
		}
		if order.InventoryStatus == enums.InventoryStatusApplied {
			outcome = OutcomeAlreadyApplied
			return nil
		}
		if !order.Status.Settled() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "inventory applies to settled orders only").
				WithDetails(map[string]any{"status": order.Status})
		}

		lines, err := ordersRepo.FindLines(ctx, orderID)
		if err != nil {
			return err
		}
		for _, need := range aggregate(lines) {
			item, err := catalogRepo.FindByIDForUpdate(ctx, need.catalogRef)
			if err != nil {
				return err
			}
			if item == nil {
				l.warnMissing(ctx, orderID, need.catalogRef)
				continue
			}
			stock := catalog.Decrement(item.Stock, need.quantity)
			if err := catalogRepo.UpdateStock(ctx, item, stock, catalog.StockStatus(stock, item.AlertThreshold)); err != nil {
				return err
			}
		}
		return ordersRepo.SetInventoryApplied(ctx, orderID, l.now())
	})
	if err == nil {
		if l.logg != nil && outcome == OutcomeApplied {
			l.logg.Info(l.logg.WithOrderID(ctx, orderID.String()), "inventory applied")
		}
		return outcome, nil
	}
	if pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) || pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		return "", err
	}
	return OutcomeDegraded, l.degrade(ctx, orderID, err)
}

func (l *Ledger) degrade(ctx context.Context, orderID uuid.UUID, cause error) error {
	l.metrics.InventoryDegraded()
	logCtx := ctx
	if l.logg != nil {
		logCtx = l.logg.WithOrderID(ctx, orderID.String())
		l.logg.Error(logCtx, "inventory transaction failed", cause)
	}
	if err := l.orders.MarkInventoryFailed(ctx, orderID); err != nil && l.logg != nil {
		l.logg.Error(logCtx, "failed to flag inventory for reconcile", err)
	}
	return &DegradedError{OrderID: orderID, Err: cause}
}

func (l *Ledger) warnMissing(ctx context.Context, orderID, catalogRef uuid.UUID) {
	if l.logg == nil {
		return
	}
	logCtx := l.logg.WithFields(l.logg.WithOrderID(ctx, orderID.String()), map[string]any{
		"catalog_item_id": catalogRef.String(),
	})
	l.logg.Warn(logCtx, "catalog item missing during inventory apply; skipping line")
}
