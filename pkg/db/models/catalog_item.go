package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/settlement-backend/pkg/enums"
)

// CatalogItem is the canonical price and stock record for a sellable item.
type CatalogItem struct {
	ID               uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	SellerID         uuid.UUID              `gorm:"column:seller_id;type:uuid;not null;index"`
	Title            string                 `gorm:"column:title;not null"`
	PriceMinorUnits  int64                  `gorm:"column:price_minor_units;not null"`
	Currency         string                 `gorm:"column:currency;not null;default:'usd'"`
	IsActive         bool                   `gorm:"column:is_active;not null"`
	ModerationStatus enums.ModerationStatus `gorm:"column:moderation_status;not null;default:'pending'"`
	Stock            int                    `gorm:"column:stock;not null"`
	AlertThreshold   int                    `gorm:"column:alert_threshold;not null"`
	StockStatus      enums.StockStatus      `gorm:"column:stock_status;not null;default:'in_stock'"`
	CreatedAt        time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}

func (c *CatalogItem) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// Purchasable reports whether the item may be priced into a new order.
func (c CatalogItem) Purchasable() bool {
	return c.IsActive && c.ModerationStatus == enums.ModerationApproved
}

// SellerListing mirrors catalog stock for seller-facing inventory views.
type SellerListing struct {
	CatalogItemID uuid.UUID         `gorm:"column:catalog_item_id;type:uuid;primaryKey"`
	SellerID      uuid.UUID         `gorm:"column:seller_id;type:uuid;not null;index"`
	Title         string            `gorm:"column:title;not null"`
	Stock         int               `gorm:"column:stock;not null"`
	StockStatus   enums.StockStatus `gorm:"column:stock_status;not null"`
	UpdatedAt     time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
