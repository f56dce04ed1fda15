package orders

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/settlement-backend/pkg/db"
	"github.com/angelmondragon/settlement-backend/pkg/db/models"
	"github.com/angelmondragon/settlement-backend/pkg/enums"
	"github.com/angelmondragon/settlement-backend/pkg/pagination"
)

// ErrStaleTransition means one of the projections was no longer in the expected status.
var ErrStaleTransition = errors.New("order status changed concurrently")

// Stamps are the lifecycle timestamps written alongside a status change.
type Stamps struct {
	PaidAt      *time.Time
	ConfirmedAt *time.Time
	FailedAt    *time.Time
}

func (s Stamps) columns() map[string]any {
	cols := map[string]any{}
	if s.PaidAt != nil {
		cols["paid_at"] = *s.PaidAt
	}
	if s.ConfirmedAt != nil {
		cols["confirmed_at"] = *s.ConfirmedAt
	}
	if s.FailedAt != nil {
		cols["failed_at"] = *s.FailedAt
	}
	return cols
}

// Repository persists the buyer projection (orders, order_lines) and the seller mirror (seller_orders).
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateOrder(ctx context.Context, order *models.Order, lines []models.OrderLine, mirrors []models.SellerOrder) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByBuyer(ctx context.Context, buyerID uuid.UUID, limit int) ([]models.Order, error)
	FindLines(ctx context.Context, orderID uuid.UUID) ([]models.OrderLine, error)
	FindSellerOrders(ctx context.Context, orderID uuid.UUID) ([]models.SellerOrder, error)
	UpdateStatus(ctx context.Context, orderID uuid.UUID, from, to enums.OrderStatus, stamps Stamps) error
	SetPaymentReference(ctx context.Context, orderID uuid.UUID, ref models.PaymentReference) (bool, error)
	SetInventoryApplied(ctx context.Context, orderID uuid.UUID, at time.Time) error
	MarkInventoryFailed(ctx context.Context, orderID uuid.UUID) error
	ListInventoryBacklog(ctx context.Context, maxAttempts, limit int) ([]models.Order, error)
	ListBySeller(ctx context.Context, sellerID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.SellerOrder, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(conn *gorm.DB) Repository {
	return &repository{db: conn}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// CreateOrder writes both projections. Callers run it inside their own transaction.
func (r *repository) CreateOrder(ctx context.Context, order *models.Order, lines []models.OrderLine, mirrors []models.SellerOrder) error {
	conn := r.db.WithContext(ctx)
	if err := conn.Omit(clause.Associations).Create(order).Error; err != nil {
		return err
	}
	for i := range lines {
		lines[i].OrderID = order.ID
	}
	if len(lines) > 0 {
		if err := conn.Create(&lines).Error; err != nil {
			return err
		}
	}
	for i := range mirrors {
		mirrors[i].OrderID = order.ID
	}
	if len(mirrors) > 0 {
		if err := conn.Create(&mirrors).Error; err != nil {
			return err
		}
	}
	order.Lines = lines
	return nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Lines", func(q *gorm.DB) *gorm.DB { return q.Order("created_at ASC, id ASC") }).
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// FindByIDForUpdate locks the buyer projection row. Lines are not preloaded.
func (r *repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := db.ForUpdate(r.db.WithContext(ctx)).Where("id = ?", id).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindByBuyer(ctx context.Context, buyerID uuid.UUID, limit int) ([]models.Order, error) {
	var rows []models.Order
	err := r.db.WithContext(ctx).
		Where("buyer_id = ?", buyerID).
		Order("created_at DESC, id DESC").
		Limit(pagination.NormalizeLimit(limit)).
		Find(&rows).Error
	return rows, err
}

func (r *repository) FindLines(ctx context.Context, orderID uuid.UUID) ([]models.OrderLine, error) {
	var lines []models.OrderLine
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC, id ASC").
		Find(&lines).Error
	return lines, err
}

func (r *repository) FindSellerOrders(ctx context.Context, orderID uuid.UUID) ([]models.SellerOrder, error) {
	var rows []models.SellerOrder
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("seller_id ASC").
		Find(&rows).Error
	return rows, err
}

// UpdateStatus moves both projections from -> to with a conditional write.
// It returns ErrStaleTransition if either projection matched no row.
func (r *repository) UpdateStatus(ctx context.Context, orderID uuid.UUID, from, to enums.OrderStatus, stamps Stamps) error {
	conn := r.db.WithContext(ctx)

	cols := stamps.columns()
	cols["status"] = to
	res := conn.Model(&models.Order{}).
		Where("id = ? AND status = ?", orderID, from).
		Updates(cols)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleTransition
	}

	mirrorCols := stamps.columns()
	mirrorCols["status"] = to
	res = conn.Model(&models.SellerOrder{}).
		Where("order_id = ? AND status = ?", orderID, from).
		Updates(mirrorCols)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleTransition
	}
	return nil
}

// SetPaymentReference stores the handle on both projections unless one is already set.
// The boolean is false when another writer got there first.
func (r *repository) SetPaymentReference(ctx context.Context, orderID uuid.UUID, ref models.PaymentReference) (bool, error) {
	if !ref.Issued() {
		return false, errors.New("payment handle id required")
	}
	conn := r.db.WithContext(ctx)

	res := conn.Model(&models.Order{}).
		Where("id = ? AND payment_handle_id IS NULL", orderID).
		Updates(map[string]any{
			"payment_provider":        ref.Provider,
			"payment_handle_kind":     ref.HandleKind,
			"payment_handle_id":       *ref.HandleID,
			"payment_idempotency_key": ref.IdempotencyKey,
			"payment_client_payload":  ref.ClientPayload,
		})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}

	if err := conn.Model(&models.SellerOrder{}).
		Where("order_id = ?", orderID).
		Update("payment_handle_id", *ref.HandleID).Error; err != nil {
		return false, err
	}
	return true, nil
}

func (r *repository) SetInventoryApplied(ctx context.Context, orderID uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Updates(map[string]any{
			"inventory_status":     enums.InventoryStatusApplied,
			"inventory_applied_at": at,
		}).Error
}

// MarkInventoryFailed flags the order for the reconcile job and counts the attempt.
// It never touches an order whose inventory is already applied.
func (r *repository) MarkInventoryFailed(ctx context.Context, orderID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND inventory_status <> ?", orderID, enums.InventoryStatusApplied).
		Updates(map[string]any{
			"inventory_status":   enums.InventoryStatusFailed,
			"inventory_attempts": gorm.Expr("inventory_attempts + 1"),
		}).Error
}

// ListInventoryBacklog returns settled orders whose stock decrement has not landed yet.
func (r *repository) ListInventoryBacklog(ctx context.Context, maxAttempts, limit int) ([]models.Order, error) {
	var rows []models.Order
	query := r.db.WithContext(ctx).
		Where("status IN ?", []enums.OrderStatus{enums.OrderStatusPaid, enums.OrderStatusConfirmed}).
		Where("inventory_status <> ?", enums.InventoryStatusApplied)
	if maxAttempts > 0 {
		query = query.Where("inventory_attempts < ?", maxAttempts)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Order("paid_at ASC, id ASC").Find(&rows).Error
	return rows, err
}

func (r *repository) ListBySeller(ctx context.Context, sellerID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.SellerOrder, error) {
	var rows []models.SellerOrder
	err := r.db.WithContext(ctx).
		Model(&models.SellerOrder{}).
		Where("seller_id = ?", sellerID).
		Scopes(pagination.Keyset(cursor, "order_id", limit)).
		Find(&rows).Error
	return rows, err
}
