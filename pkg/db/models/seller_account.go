package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/settlement-backend/pkg/enums"
)

// SellerAccount holds the payment-provider account state for a seller.
type SellerAccount struct {
	SellerID           uuid.UUID                `gorm:"column:seller_id;type:uuid;primaryKey"`
	StripeCustomerID   *string                  `gorm:"column:stripe_customer_id;uniqueIndex"`
	StripeAccountID    *string                  `gorm:"column:stripe_account_id;uniqueIndex"`
	SubscriptionID     *string                  `gorm:"column:subscription_id"`
	SubscriptionStatus enums.SubscriptionStatus `gorm:"column:subscription_status;not null;default:'none'"`
	ChargesEnabled     bool                     `gorm:"column:charges_enabled;not null"`
	PayoutsEnabled     bool                     `gorm:"column:payouts_enabled;not null"`
	CreatedAt          time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}
