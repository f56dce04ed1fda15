package billing

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/angelmondragon/settlement-backend/pkg/db"
	"github.com/angelmondragon/settlement-backend/pkg/db/models"
)

// Repository persists seller payment-provider accounts.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, account *models.SellerAccount) error
	FindByCustomerID(ctx context.Context, customerID string) (*models.SellerAccount, error)
	FindByAccountID(ctx context.Context, accountID string) (*models.SellerAccount, error)
	Save(ctx context.Context, account *models.SellerAccount) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a billing repository bound to the provided database.
func NewRepository(conn *gorm.DB) Repository {
	return &repository{db: conn}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, account *models.SellerAccount) error {
	return r.db.WithContext(ctx).Create(account).Error
}

// FindByCustomerID locks the account row. It returns nil, nil when nothing matches.
func (r *repository) FindByCustomerID(ctx context.Context, customerID string) (*models.SellerAccount, error) {
	return r.findOne(ctx, "stripe_customer_id = ?", customerID)
}

// FindByAccountID locks the account row. It returns nil, nil when nothing matches.
func (r *repository) FindByAccountID(ctx context.Context, accountID string) (*models.SellerAccount, error) {
	return r.findOne(ctx, "stripe_account_id = ?", accountID)
}

func (r *repository) findOne(ctx context.Context, where string, arg string) (*models.SellerAccount, error) {
	var account models.SellerAccount
	err := db.ForUpdate(r.db.WithContext(ctx)).Where(where, arg).First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *repository) Save(ctx context.Context, account *models.SellerAccount) error {
	return r.db.WithContext(ctx).Save(account).Error
}
