package cron

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/settlement-backend/internal/inventory"
	"github.com/angelmondragon/settlement-backend/pkg/db/models"
	"github.com/angelmondragon/settlement-backend/pkg/logger"
)

const (
	inventoryMaxAttempts = 20
	inventoryBatchSize   = 100
)

type inventoryBacklog interface {
	ListInventoryBacklog(ctx context.Context, maxAttempts, limit int) ([]models.Order, error)
}

type inventoryApplier interface {
	Apply(ctx context.Context, orderID uuid.UUID) (inventory.Outcome, error)
}

type InventoryReconcileJobParams struct {
	Logger      *logger.Logger
	Orders      inventoryBacklog
	Ledger      inventoryApplier
	MaxAttempts int
	BatchSize   int
}

// NewInventoryReconcileJob retries the stock decrement for settled orders
// whose ledger run degraded. Orders that keep failing drop out of the backlog
// once they reach MaxAttempts.
func NewInventoryReconcileJob(params InventoryReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("inventory ledger required")
	}
	maxAttempts := params.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = inventoryMaxAttempts
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = inventoryBatchSize
	}
	return &inventoryReconcileJob{
		logg:        params.Logger,
		orders:      params.Orders,
		ledger:      params.Ledger,
		maxAttempts: maxAttempts,
		batchSize:   batch,
	}, nil
}

type inventoryReconcileJob struct {
	logg        *logger.Logger
	orders      inventoryBacklog
	ledger      inventoryApplier
	maxAttempts int
	batchSize   int
}

func (j *inventoryReconcileJob) Name() string { return "inventory-reconcile" }

func (j *inventoryReconcileJob) Run(ctx context.Context) error {
	backlog, err := j.orders.ListInventoryBacklog(ctx, j.maxAttempts, j.batchSize)
	if err != nil {
		return fmt.Errorf("list inventory backlog: %w", err)
	}

	var (
		errs    error
		applied int
	)
	for _, order := range backlog {
		if ctx.Err() != nil {
			return multierr.Append(errs, ctx.Err())
		}
		outcome, err := j.ledger.Apply(ctx, order.ID)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("order %s: %w", order.ID, err))
			continue
		}
		if outcome == inventory.OutcomeApplied {
			applied++
		}
	}

	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"backlog": len(backlog),
		"applied": applied,
		"failed":  len(multierr.Errors(errs)),
	}), "inventory reconcile complete")
	return errs
}
