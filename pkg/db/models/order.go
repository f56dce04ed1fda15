package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/settlement-backend/pkg/enums"
)

// Order is the buyer-scoped projection of a priced order.
type Order struct {
	ID                 uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	BuyerID            uuid.UUID             `gorm:"column:buyer_id;type:uuid;not null;index"`
	Currency           string                `gorm:"column:currency;not null"`
	ShippingMethod     string                `gorm:"column:shipping_method;not null"`
	SubtotalMinorUnits int64                 `gorm:"column:subtotal_minor_units;not null"`
	ShippingMinorUnits int64                 `gorm:"column:shipping_minor_units;not null"`
	TotalMinorUnits    int64                 `gorm:"column:total_minor_units;not null"`
	Status             enums.OrderStatus     `gorm:"column:status;not null;index"`
	InventoryStatus    enums.InventoryStatus `gorm:"column:inventory_status;not null"`
	InventoryAttempts  int                   `gorm:"column:inventory_attempts;not null"`
	InventoryAppliedAt *time.Time            `gorm:"column:inventory_applied_at"`
	Payment            PaymentReference      `gorm:"embedded;embeddedPrefix:payment_"`
	PaidAt             *time.Time            `gorm:"column:paid_at"`
	ConfirmedAt        *time.Time            `gorm:"column:confirmed_at"`
	FailedAt           *time.Time            `gorm:"column:failed_at"`
	CreatedAt          time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time             `gorm:"column:updated_at;autoUpdateTime"`

	Lines []OrderLine `gorm:"foreignKey:OrderID;references:ID"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

// PaymentReference is the provider handle issued for an order. HandleID is nil until issued.
type PaymentReference struct {
	Provider       enums.PaymentProvider   `gorm:"column:provider"`
	HandleKind     enums.PaymentHandleKind `gorm:"column:handle_kind"`
	HandleID       *string                 `gorm:"column:handle_id;index"`
	IdempotencyKey string                  `gorm:"column:idempotency_key"`
	ClientPayload  string                  `gorm:"column:client_payload"`
}

// Issued reports whether a provider handle has been persisted.
func (p PaymentReference) Issued() bool {
	return p.HandleID != nil && *p.HandleID != ""
}

// OrderLine is an immutable priced line copied from the catalog at build time.
type OrderLine struct {
	ID              uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	OrderID         uuid.UUID `gorm:"column:order_id;type:uuid;not null;index"`
	CatalogItemID   uuid.UUID `gorm:"column:catalog_item_id;type:uuid;not null"`
	SellerID        uuid.UUID `gorm:"column:seller_id;type:uuid;not null"`
	Title           string    `gorm:"column:title;not null"`
	Quantity        int       `gorm:"column:quantity;not null"`
	PriceMinorUnits int64     `gorm:"column:price_minor_units;not null"`
	LineTotal       int64     `gorm:"column:line_total_minor_units;not null"`
	CreatedAt       time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (l *OrderLine) BeforeCreate(*gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}

// SellerOrder is the seller-side mirror of an order, one row per seller involved.
type SellerOrder struct {
	OrderID                  uuid.UUID         `gorm:"column:order_id;type:uuid;primaryKey"`
	SellerID                 uuid.UUID         `gorm:"column:seller_id;type:uuid;primaryKey;index"`
	BuyerID                  uuid.UUID         `gorm:"column:buyer_id;type:uuid;not null"`
	Currency                 string            `gorm:"column:currency;not null"`
	SellerSubtotalMinorUnits int64             `gorm:"column:seller_subtotal_minor_units;not null"`
	ItemCount                int               `gorm:"column:item_count;not null"`
	Status                   enums.OrderStatus `gorm:"column:status;not null"`
	PaymentHandleID          *string           `gorm:"column:payment_handle_id"`
	PaidAt                   *time.Time        `gorm:"column:paid_at"`
	ConfirmedAt              *time.Time        `gorm:"column:confirmed_at"`
	FailedAt                 *time.Time        `gorm:"column:failed_at"`
	CreatedAt                time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt                time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
