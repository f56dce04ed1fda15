package notifications

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/settlement-backend/pkg/db/models"
	"github.com/angelmondragon/settlement-backend/pkg/pagination"
)

// Repository exposes persistence helpers for the seller inbox and push destinations.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateIgnoreConflict(ctx context.Context, notification *models.Notification) (bool, error)
	List(ctx context.Context, params listNotificationsParams) ([]models.Notification, error)
	MarkRead(ctx context.Context, sellerID, notificationID uuid.UUID, now time.Time) (notificationMarkResult, error)
	MarkAllRead(ctx context.Context, sellerID uuid.UUID, now time.Time) (int64, error)
	DeleteReadBefore(ctx context.Context, cutoff time.Time, limit int) (int64, error)

	UpsertDestination(ctx context.Context, destination *models.PushDestination) error
	DeleteDestination(ctx context.Context, sellerID uuid.UUID, token string) (bool, error)
	ListDestinations(ctx context.Context, sellerID uuid.UUID) ([]models.PushDestination, error)
	DeleteTokens(ctx context.Context, tokens []string) (int64, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a notifications repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

type listNotificationsParams struct {
	SellerID   uuid.UUID
	Limit      int
	Cursor     *pagination.Cursor
	UnreadOnly bool
}

type notificationMarkResult struct {
	Updated bool
	Found   bool
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

// CreateIgnoreConflict inserts the message unless one already exists for the
// same (order_id, seller_id, type). It reports whether a row was written.
func (r *repositoryImpl) CreateIgnoreConflict(ctx context.Context, notification *models.Notification) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "order_id"}, {Name: "seller_id"}, {Name: "type"}},
			DoNothing: true,
		}).
		Create(notification)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repositoryImpl) List(ctx context.Context, params listNotificationsParams) ([]models.Notification, error) {
	query := r.db.WithContext(ctx).Model(&models.Notification{}).Where("seller_id = ?", params.SellerID)
	if params.UnreadOnly {
		query = query.Where("read_at IS NULL")
	}

	var notifications []models.Notification
	err := query.
		Scopes(pagination.Keyset(params.Cursor, "id", params.Limit)).
		Find(&notifications).Error
	return notifications, err
}

func (r *repositoryImpl) MarkRead(ctx context.Context, sellerID, notificationID uuid.UUID, now time.Time) (notificationMarkResult, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("id = ? AND seller_id = ? AND read_at IS NULL", notificationID, sellerID).
		UpdateColumn("read_at", now)
	if result.Error != nil {
		return notificationMarkResult{}, result.Error
	}

	mark := notificationMarkResult{Updated: result.RowsAffected > 0}
	if mark.Updated {
		mark.Found = true
		return mark, nil
	}

	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("id = ? AND seller_id = ?", notificationID, sellerID).
		Count(&count).Error; err != nil {
		return notificationMarkResult{}, err
	}
	mark.Found = count > 0
	return mark, nil
}

func (r *repositoryImpl) MarkAllRead(ctx context.Context, sellerID uuid.UUID, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("seller_id = ? AND read_at IS NULL", sellerID).
		UpdateColumn("read_at", now)
	return result.RowsAffected, result.Error
}

// DeleteReadBefore removes up to limit read messages older than cutoff, oldest
// first. Unread messages are kept. A limit of zero removes every match.
func (r *repositoryImpl) DeleteReadBefore(ctx context.Context, cutoff time.Time, limit int) (int64, error) {
	db := r.db.WithContext(ctx)
	expired := db.Model(&models.Notification{}).
		Select("id").
		Where("read_at IS NOT NULL AND created_at < ?", cutoff)
	if limit > 0 {
		expired = expired.Order("created_at ASC").Limit(limit)
	}
	result := db.Where("id IN (?)", expired).Delete(&models.Notification{})
	return result.RowsAffected, result.Error
}

// UpsertDestination registers a token. A token already known moves to the given seller.
func (r *repositoryImpl) UpsertDestination(ctx context.Context, destination *models.PushDestination) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "token"}},
			DoUpdates: clause.AssignmentColumns([]string{"seller_id", "platform", "updated_at"}),
		}).
		Create(destination).Error
}

func (r *repositoryImpl) DeleteDestination(ctx context.Context, sellerID uuid.UUID, token string) (bool, error) {
	result := r.db.WithContext(ctx).
		Where("seller_id = ? AND token = ?", sellerID, token).
		Delete(&models.PushDestination{})
	return result.RowsAffected > 0, result.Error
}

func (r *repositoryImpl) ListDestinations(ctx context.Context, sellerID uuid.UUID) ([]models.PushDestination, error) {
	var rows []models.PushDestination
	err := r.db.WithContext(ctx).
		Where("seller_id = ?", sellerID).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}

func (r *repositoryImpl) DeleteTokens(ctx context.Context, tokens []string) (int64, error) {
	if len(tokens) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).
		Where("token IN ?", tokens).
		Delete(&models.PushDestination{})
	return result.RowsAffected, result.Error
}
