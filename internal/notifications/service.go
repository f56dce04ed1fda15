package notifications

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/settlement-backend/pkg/db/models"
	"github.com/angelmondragon/settlement-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/settlement-backend/pkg/errors"
	"github.com/angelmondragon/settlement-backend/pkg/pagination"
)

// Service defines the seller inbox and push registration operations.
type Service interface {
	List(ctx context.Context, params ListParams) (*pagination.Page[models.Notification], error)
	MarkRead(ctx context.Context, sellerID, notificationID uuid.UUID) error
	MarkAllRead(ctx context.Context, sellerID uuid.UUID) (int64, error)
	RegisterDestination(ctx context.Context, sellerID uuid.UUID, token string, platform enums.PushPlatform) (*models.PushDestination, error)
	RemoveDestination(ctx context.Context, sellerID uuid.UUID, token string) error
}

type service struct {
	repo Repository
	now  func() time.Time
}

// ListParams configures pagination for the inbox.
type ListParams struct {
	SellerID   uuid.UUID
	Limit      int
	Cursor     string
	UnreadOnly bool
}

// NewService wires notifications dependencies.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notifications repository required")
	}
	return &service{repo: repo, now: func() time.Time { return time.Now().UTC() }}, nil
}

func (s *service) List(ctx context.Context, params ListParams) (*pagination.Page[models.Notification], error) {
	if params.SellerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "seller id required")
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	rows, err := s.repo.List(ctx, listNotificationsParams{
		SellerID:   params.SellerID,
		Limit:      params.Limit,
		Cursor:     cursor,
		UnreadOnly: params.UnreadOnly,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list notifications")
	}
	page := pagination.Paginate(rows, params.Limit, func(n models.Notification) pagination.Cursor {
		return pagination.Cursor{CreatedAt: n.CreatedAt, ID: n.ID}
	})
	return &page, nil
}

func (s *service) MarkRead(ctx context.Context, sellerID, notificationID uuid.UUID) error {
	if sellerID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "seller id required")
	}
	if notificationID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "notification id required")
	}

	result, err := s.repo.MarkRead(ctx, sellerID, notificationID, s.now())
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notification read")
	}
	if !result.Found {
		return pkgerrors.New(pkgerrors.CodeNotFound, "notification not found")
	}
	return nil
}

func (s *service) MarkAllRead(ctx context.Context, sellerID uuid.UUID) (int64, error) {
	if sellerID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "seller id required")
	}

	count, err := s.repo.MarkAllRead(ctx, sellerID, s.now())
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notifications read")
	}
	return count, nil
}

func (s *service) RegisterDestination(ctx context.Context, sellerID uuid.UUID, token string, platform enums.PushPlatform) (*models.PushDestination, error) {
	token = strings.TrimSpace(token)
	if sellerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "seller id required")
	}
	if token == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "push token required")
	}
	if !platform.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unsupported push platform").
			WithDetails(map[string]any{"platform": platform})
	}

	destination := &models.PushDestination{SellerID: sellerID, Token: token, Platform: platform}
	if err := s.repo.UpsertDestination(ctx, destination); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "register push destination")
	}
	return destination, nil
}

func (s *service) RemoveDestination(ctx context.Context, sellerID uuid.UUID, token string) error {
	token = strings.TrimSpace(token)
	if sellerID == uuid.Nil || token == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "seller id and push token required")
	}
	removed, err := s.repo.DeleteDestination(ctx, sellerID, token)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove push destination")
	}
	if !removed {
		return pkgerrors.New(pkgerrors.CodeNotFound, "push destination not found")
	}
	return nil
}
