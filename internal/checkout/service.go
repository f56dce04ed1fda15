package checkout

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/settlement-backend/internal/catalog"
	"github.com/angelmondragon/settlement-backend/internal/checkout/helpers"
	"github.com/angelmondragon/settlement-backend/internal/orders"
	"github.com/angelmondragon/settlement-backend/pkg/config"
	"github.com/angelmondragon/settlement-backend/pkg/db/models"
	"github.com/angelmondragon/settlement-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/settlement-backend/pkg/errors"
	"github.com/angelmondragon/settlement-backend/pkg/logger"
	"github.com/angelmondragon/settlement-backend/pkg/metrics"
	"github.com/angelmondragon/settlement-backend/pkg/outbox"
	"github.com/angelmondragon/settlement-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type priceResolver interface {
	Resolve(ctx context.Context, lines []catalog.LineRequest) ([]catalog.LineCandidate, error)
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service turns a cart snapshot into a priced, persisted order.
type Service interface {
	Execute(ctx context.Context, buyerID uuid.UUID, input Input) (*models.Order, error)
}

// CartLine is one line of the buyer's cart as submitted by the client.
// ClientSuppliedPrice is accepted for compatibility and never read.
type CartLine struct {
	LineKey             string
	CatalogRef          uuid.UUID
	Quantity            int
	ClientSuppliedPrice *int64
}

// Input is the checkout request.
type Input struct {
	Lines          []CartLine
	ShippingMethod string
	Currency       string
}

type service struct {
	tx       txRunner
	resolver priceResolver
	orders   orders.Repository
	outbox   outboxPublisher
	cfg      config.CheckoutConfig
	metrics  *metrics.Settlement
	logg     *logger.Logger
	now      func() time.Time
}

// NewService builds the checkout service.
func NewService(
	tx txRunner,
	resolver priceResolver,
	ordersRepo orders.Repository,
	publisher outboxPublisher,
	cfg config.CheckoutConfig,
	settlementMetrics *metrics.Settlement,
	logg *logger.Logger,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if resolver == nil {
		return nil, fmt.Errorf("price resolver required")
	}
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if len(cfg.ShippingRates) == 0 {
		return nil, fmt.Errorf("shipping rates required")
	}
	return &service{
		tx:       tx,
		resolver: resolver,
		orders:   ordersRepo,
		outbox:   publisher,
		cfg:      cfg,
		metrics:  settlementMetrics,
		logg:     logg,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) Execute(ctx context.Context, buyerID uuid.UUID, input Input) (*models.Order, error) {
	if buyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer id required")
	}
	if s.cfg.MaxLinesPerOrder > 0 && len(input.Lines) > s.cfg.MaxLinesPerOrder {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "too many lines").
			WithDetails(map[string]any{"max_lines": s.cfg.MaxLinesPerOrder})
	}
	method, shipping, err := helpers.ShippingCost(s.cfg, input.ShippingMethod)
	if err != nil {
		return nil, err
	}
	currency, err := helpers.Currency(s.cfg, input.Currency)
	if err != nil {
		return nil, err
	}

	requests := make([]catalog.LineRequest, 0, len(input.Lines))
	for _, line := range input.Lines {
		requests = append(requests, catalog.LineRequest{CatalogRef: line.CatalogRef, Quantity: line.Quantity})
	}
	lines, err := s.resolver.Resolve(ctx, requests)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeEmptyOrder, "order has no lines")
	}

	subtotal := helpers.Subtotal(lines)
	if subtotal <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNonPositiveTotal, "order subtotal must be positive")
	}

	orderID := uuid.New()
	order := &models.Order{
		ID:                 orderID,
		BuyerID:            buyerID,
		Currency:           currency,
		ShippingMethod:     method,
		SubtotalMinorUnits: subtotal,
		ShippingMinorUnits: shipping,
		TotalMinorUnits:    subtotal + shipping,
		Status:             enums.OrderStatusPending,
		InventoryStatus:    enums.InventoryStatusPending,
		Payment: models.PaymentReference{
			Provider:       enums.PaymentProviderStripe,
			IdempotencyKey: orders.IdempotencyKey(orderID),
		},
	}
	orderLines, snapshots := buildLines(lines)
	mirrors := buildMirrors(buyerID, currency, lines)

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.orders.WithTx(tx).CreateOrder(ctx, order, orderLines, mirrors); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist order")
		}
		event := outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: buyerID, Role: string(enums.MemberRoleBuyer)},
			Data: payloads.OrderCreatedEvent{
				OrderID:            order.ID,
				BuyerID:            buyerID,
				Currency:           currency,
				SubtotalMinorUnits: order.SubtotalMinorUnits,
				ShippingMinorUnits: order.ShippingMinorUnits,
				TotalMinorUnits:    order.TotalMinorUnits,
				Lines:              snapshots,
				CreatedAt:          s.now(),
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit order created")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.OrderCreated()
	if s.logg != nil {
		logCtx := s.logg.WithFields(s.logg.WithOrderID(ctx, order.ID.String()), map[string]any{
			"buyer_id":          buyerID.String(),
			"total_minor_units": order.TotalMinorUnits,
			"line_count":        len(orderLines),
			"seller_count":      len(mirrors),
		})
		s.logg.Info(logCtx, "order created")
	}
	return order, nil
}

func buildLines(lines []catalog.LineCandidate) ([]models.OrderLine, []payloads.OrderLineSnapshot) {
	out := make([]models.OrderLine, 0, len(lines))
	snapshots := make([]payloads.OrderLineSnapshot, 0, len(lines))
	for _, line := range lines {
		out = append(out, models.OrderLine{
			CatalogItemID:   line.CatalogRef,
			SellerID:        line.SellerID,
			Title:           line.Title,
			Quantity:        line.Quantity,
			PriceMinorUnits: line.PriceMinorUnits,
			LineTotal:       line.LineTotal(),
		})
		snapshots = append(snapshots, payloads.OrderLineSnapshot{
			CatalogItemID:   line.CatalogRef,
			SellerID:        line.SellerID,
			Title:           line.Title,
			Quantity:        line.Quantity,
			PriceMinorUnits: line.PriceMinorUnits,
		})
	}
	return out, snapshots
}

func buildMirrors(buyerID uuid.UUID, currency string, lines []catalog.LineCandidate) []models.SellerOrder {
	groups := helpers.GroupBySeller(lines)
	out := make([]models.SellerOrder, 0, len(groups))
	for _, group := range groups {
		out = append(out, models.SellerOrder{
			SellerID:                 group.SellerID,
			BuyerID:                  buyerID,
			Currency:                 currency,
			SellerSubtotalMinorUnits: group.SubtotalMinor,
			ItemCount:                group.ItemCount,
			Status:                   enums.OrderStatusPending,
		})
	}
	return out
}
