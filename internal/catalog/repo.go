package catalog

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/settlement-backend/pkg/db"
	"github.com/angelmondragon/settlement-backend/pkg/db/models"
	"github.com/angelmondragon/settlement-backend/pkg/enums"
)

// Repository reads catalog items and writes stock to the canonical row and the seller mirror.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, item *models.CatalogItem) error
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.CatalogItem, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.CatalogItem, error)
	FindListing(ctx context.Context, id uuid.UUID) (*models.SellerListing, error)
	UpdateStock(ctx context.Context, item *models.CatalogItem, stock int, status enums.StockStatus) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(conn *gorm.DB) Repository {
	return &repository{db: conn}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// Create inserts an item together with its seller listing mirror.
func (r *repository) Create(ctx context.Context, item *models.CatalogItem) error {
	if item.StockStatus == "" {
		item.StockStatus = StockStatus(item.Stock, item.AlertThreshold)
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(item).Error; err != nil {
			return err
		}
		return tx.Create(&models.SellerListing{
			CatalogItemID: item.ID,
			SellerID:      item.SellerID,
			Title:         item.Title,
			Stock:         item.Stock,
			StockStatus:   item.StockStatus,
		}).Error
	})
}

// FindByIDs loads every requested item in one read. Missing ids are simply absent.
func (r *repository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.CatalogItem, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var items []models.CatalogItem
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// FindByIDForUpdate locks the canonical row. It returns nil, nil when the item no longer exists.
func (r *repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.CatalogItem, error) {
	var item models.CatalogItem
	err := db.ForUpdate(r.db.WithContext(ctx)).Where("id = ?", id).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repository) FindListing(ctx context.Context, id uuid.UUID) (*models.SellerListing, error) {
	var listing models.SellerListing
	if err := r.db.WithContext(ctx).Where("catalog_item_id = ?", id).First(&listing).Error; err != nil {
		return nil, err
	}
	return &listing, nil
}

// UpdateStock writes stock and status to catalog_items and seller_listings.
// A missing mirror row is recreated from the canonical item.
func (r *repository) UpdateStock(ctx context.Context, item *models.CatalogItem, stock int, status enums.StockStatus) error {
	conn := r.db.WithContext(ctx)
	res := conn.Model(&models.CatalogItem{}).
		Where("id = ?", item.ID).
		Updates(map[string]any{"stock": stock, "stock_status": status})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	res = conn.Model(&models.SellerListing{}).
		Where("catalog_item_id = ?", item.ID).
		Updates(map[string]any{"stock": stock, "stock_status": status})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return conn.Create(&models.SellerListing{
			CatalogItemID: item.ID,
			SellerID:      item.SellerID,
			Title:         item.Title,
			Stock:         stock,
			StockStatus:   status,
		}).Error
	}

	item.Stock = stock
	item.StockStatus = status
	return nil
}
