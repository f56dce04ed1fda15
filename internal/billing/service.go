package billing

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/angelmondragon/settlement-backend/pkg/db/models"
	"github.com/angelmondragon/settlement-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/settlement-backend/pkg/errors"
	"github.com/angelmondragon/settlement-backend/pkg/logger"
	"github.com/angelmondragon/settlement-backend/pkg/outbox"
	"github.com/angelmondragon/settlement-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// SubscriptionSnapshot is the subscription state carried by a provider event.
type SubscriptionSnapshot struct {
	CustomerID     string
	SubscriptionID string
	Status         enums.SubscriptionStatus
}

// AccountSnapshot is the connected-account state carried by a provider event.
type AccountSnapshot struct {
	AccountID      string
	ChargesEnabled bool
	PayoutsEnabled bool
}

// Service keeps seller account records in step with the payment provider.
type Service interface {
	SyncSubscription(ctx context.Context, snapshot SubscriptionSnapshot) (bool, error)
	SyncAccount(ctx context.Context, snapshot AccountSnapshot) (bool, error)
}

type service struct {
	tx     txRunner
	repo   Repository
	outbox outboxPublisher
	logg   *logger.Logger
}

func NewService(tx txRunner, repo Repository, publisher outboxPublisher, logg *logger.Logger) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("billing repository required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{tx: tx, repo: repo, outbox: publisher, logg: logg}, nil
}

// SyncSubscription records the subscription on the seller owning the customer.
// An unknown customer is logged and reported as not applied.
func (s *service) SyncSubscription(ctx context.Context, snapshot SubscriptionSnapshot) (bool, error) {
	customerID := strings.TrimSpace(snapshot.CustomerID)
	if customerID == "" {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "customer id required")
	}
	if !snapshot.Status.IsValid() {
		err := fmt.Errorf("status %q", snapshot.Status)
		return false, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unknown subscription status")
	}

	applied := false
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		account, err := repo.FindByCustomerID(ctx, customerID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load seller account")
		}
		if account == nil {
			s.warn(ctx, "stripe_customer_id", customerID, "subscription event for unknown customer")
			return nil
		}

		subscriptionID := snapshot.SubscriptionID
		if account.SubscriptionStatus == snapshot.Status && account.SubscriptionID != nil && *account.SubscriptionID == subscriptionID {
			return nil
		}
		account.SubscriptionStatus = snapshot.Status
		account.SubscriptionID = &subscriptionID
		if err := repo.Save(ctx, account); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save seller account")
		}
		applied = true
		return s.emit(ctx, tx, account)
	})
	return applied, err
}

// SyncAccount records charge and payout capability for a connected account.
func (s *service) SyncAccount(ctx context.Context, snapshot AccountSnapshot) (bool, error) {
	accountID := strings.TrimSpace(snapshot.AccountID)
	if accountID == "" {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "account id required")
	}

	applied := false
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		account, err := repo.FindByAccountID(ctx, accountID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load seller account")
		}
		if account == nil {
			s.warn(ctx, "stripe_account_id", accountID, "account event for unknown connected account")
			return nil
		}
		if account.ChargesEnabled == snapshot.ChargesEnabled && account.PayoutsEnabled == snapshot.PayoutsEnabled {
			return nil
		}
		account.ChargesEnabled = snapshot.ChargesEnabled
		account.PayoutsEnabled = snapshot.PayoutsEnabled
		if err := repo.Save(ctx, account); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save seller account")
		}
		applied = true
		return s.emit(ctx, tx, account)
	})
	return applied, err
}

func (s *service) emit(ctx context.Context, tx *gorm.DB, account *models.SellerAccount) error {
	err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventSellerAccountUpdated,
		AggregateType: enums.AggregateSellerAccount,
		AggregateID:   account.SellerID,
		Data: payloads.SellerAccountUpdatedEvent{
			SellerID:           account.SellerID,
			SubscriptionStatus: account.SubscriptionStatus,
			Entitled:           account.SubscriptionStatus.Entitled(),
			ChargesEnabled:     account.ChargesEnabled,
			PayoutsEnabled:     account.PayoutsEnabled,
		},
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit seller account updated")
	}
	return nil
}

func (s *service) warn(ctx context.Context, key, value, msg string) {
	if s.logg == nil {
		return
	}
	s.logg.Warn(s.logg.WithField(ctx, key, value), msg)
}
