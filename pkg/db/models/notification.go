package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/settlement-backend/pkg/enums"
)

// Notification is a seller inbox message.
type Notification struct {
	ID        uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	SellerID  uuid.UUID              `gorm:"column:seller_id;type:uuid;not null;uniqueIndex:notifications_order_seller_type_key,priority:2;index"`
	OrderID   *uuid.UUID             `gorm:"column:order_id;type:uuid;uniqueIndex:notifications_order_seller_type_key,priority:1"`
	Type      enums.NotificationType `gorm:"column:type;not null;uniqueIndex:notifications_order_seller_type_key,priority:3"`
	Title     string                 `gorm:"column:title;not null"`
	Message   string                 `gorm:"column:message;not null"`
	Link      *string                `gorm:"column:link"`
	ReadAt    *time.Time             `gorm:"column:read_at"`
	CreatedAt time.Time              `gorm:"column:created_at;autoCreateTime"`
}

func (n *Notification) BeforeCreate(*gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return nil
}

// PushDestination is a registered device token for a seller.
type PushDestination struct {
	ID        uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	SellerID  uuid.UUID          `gorm:"column:seller_id;type:uuid;not null;index"`
	Token     string             `gorm:"column:token;not null;uniqueIndex"`
	Platform  enums.PushPlatform `gorm:"column:platform;not null"`
	CreatedAt time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *PushDestination) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
