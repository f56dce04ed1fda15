package catalog

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/settlement-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/settlement-backend/pkg/errors"
)

const (
	MinLineQuantity    = 1
	DefaultMaxQuantity = 99
)

// LineRequest is a buyer's request for a quantity of one catalog item.
type LineRequest struct {
	CatalogRef uuid.UUID
	Quantity   int
}

// LineCandidate is a request priced from the catalog.
type LineCandidate struct {
	CatalogRef      uuid.UUID
	SellerID        uuid.UUID
	Title           string
	Quantity        int
	PriceMinorUnits int64
}

// LineTotal is price times quantity in minor units.
func (c LineCandidate) LineTotal() int64 {
	return c.PriceMinorUnits * int64(c.Quantity)
}

type reader interface {
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.CatalogItem, error)
}

// Resolver is the price authority: every price on an order comes from here.
type Resolver struct {
	repo        reader
	maxQuantity int
}

func NewResolver(repo reader, maxQuantity int) *Resolver {
	if maxQuantity < MinLineQuantity {
		maxQuantity = DefaultMaxQuantity
	}
	return &Resolver{repo: repo, maxQuantity: maxQuantity}
}

// ClampQuantity bounds qty to [1, max].
func ClampQuantity(qty, max int) int {
	if qty < MinLineQuantity {
		return MinLineQuantity
	}
	if qty > max {
		return max
	}
	return qty
}

// Resolve prices the requested lines. It has no side effects. Repeated refs are
// merged with summed quantities before clamping, and output keeps first-seen order.
func (r *Resolver) Resolve(ctx context.Context, lines []LineRequest) ([]LineCandidate, error) {
	if len(lines) == 0 {
		return nil, nil
	}

	order := make([]uuid.UUID, 0, len(lines))
	quantities := make(map[uuid.UUID]int, len(lines))
	for _, line := range lines {
		if line.CatalogRef == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "catalog ref is required")
		}
		if _, seen := quantities[line.CatalogRef]; !seen {
			order = append(order, line.CatalogRef)
		}
		qty := line.Quantity
		if qty < 0 {
			qty = 0
		}
		quantities[line.CatalogRef] += qty
	}

	items, err := r.repo.FindByIDs(ctx, order)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load catalog items")
	}
	byID := make(map[uuid.UUID]models.CatalogItem, len(items))
	for _, item := range items {
		byID[item.ID] = item
	}

	out := make([]LineCandidate, 0, len(order))
	for _, ref := range order {
		item, ok := byID[ref]
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeCatalogItemNotFound, "catalog item not found").
				WithDetails(map[string]any{"catalog_ref": ref})
		}
		if !item.Purchasable() {
			return nil, pkgerrors.New(pkgerrors.CodeItemUnavailable, "catalog item is not available").
				WithDetails(map[string]any{"catalog_ref": ref, "moderation_status": item.ModerationStatus, "is_active": item.IsActive})
		}
		if item.PriceMinorUnits <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeInvalidPrice, "catalog item has an invalid price").
				WithDetails(map[string]any{"catalog_ref": ref})
		}
		out = append(out, LineCandidate{
			CatalogRef:      item.ID,
			SellerID:        item.SellerID,
			Title:           item.Title,
			Quantity:        ClampQuantity(quantities[ref], r.maxQuantity),
			PriceMinorUnits: item.PriceMinorUnits,
		})
	}
	return out, nil
}
