package notifications

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/settlement-backend/pkg/db/models"
	"github.com/angelmondragon/settlement-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/settlement-backend/pkg/errors"
	"github.com/angelmondragon/settlement-backend/pkg/logger"
	"github.com/angelmondragon/settlement-backend/pkg/metrics"
	"github.com/angelmondragon/settlement-backend/pkg/money"
	"github.com/angelmondragon/settlement-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/settlement-backend/pkg/push"
)

// PushSender delivers one message to many device tokens.
type PushSender interface {
	SendMulticast(ctx context.Context, tokens []string, msg push.Message) ([]push.Result, error)
}

// FanOut tells every seller on a new order about it: one inbox message each,
// plus a best-effort push to their registered devices.
type FanOut struct {
	repo    Repository
	push    PushSender
	metrics *metrics.Settlement
	logg    *logger.Logger
}

// NewFanOut builds the fan-out. sender may be nil, which disables push.
func NewFanOut(repo Repository, sender PushSender, settlementMetrics *metrics.Settlement, logg *logger.Logger) (*FanOut, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &FanOut{repo: repo, push: sender, metrics: settlementMetrics, logg: logg}, nil
}

// Notify fans the order out to its sellers. Only inbox write failures are
// returned, combined across sellers; push problems are logged.
func (f *FanOut) Notify(ctx context.Context, event payloads.OrderCreatedEvent) error {
	if event.OrderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	ctx = f.logg.WithOrderID(ctx, event.OrderID.String())

	var errs error
	for _, sellerID := range event.SellerIDs() {
		if err := f.notifySeller(ctx, event, sellerID); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("seller %s: %w", sellerID, err))
		}
	}
	return errs
}

func (f *FanOut) notifySeller(ctx context.Context, event payloads.OrderCreatedEvent, sellerID uuid.UUID) error {
	ctx = f.logg.WithSellerID(ctx, sellerID.String())

	items, subtotal := sellerShare(event, sellerID)
	orderID := event.OrderID
	link := fmt.Sprintf("/seller/orders/%s", orderID)
	notification := &models.Notification{
		SellerID: sellerID,
		OrderID:  &orderID,
		Type:     enums.NotificationTypeOrderReceived,
		Title:    "New order received",
		Message:  fmt.Sprintf("%d item(s) ordered for %s.", items, money.Format(subtotal, event.Currency)),
		Link:     &link,
	}

	created, err := f.repo.CreateIgnoreConflict(ctx, notification)
	if err != nil {
		f.metrics.Notification("inbox", "error")
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create inbox notification")
	}
	if !created {
		f.logg.Info(ctx, "seller already notified for order")
		return nil
	}
	f.metrics.Notification("inbox", "sent")

	f.sendPush(ctx, notification)
	return nil
}

func (f *FanOut) sendPush(ctx context.Context, notification *models.Notification) {
	if f.push == nil {
		return
	}
	destinations, err := f.repo.ListDestinations(ctx, notification.SellerID)
	if err != nil {
		f.logg.Error(ctx, "failed to load push destinations", err)
		return
	}
	if len(destinations) == 0 {
		return
	}
	tokens := make([]string, 0, len(destinations))
	for _, d := range destinations {
		tokens = append(tokens, d.Token)
	}

	results, err := f.push.SendMulticast(ctx, tokens, push.Message{
		Title: notification.Title,
		Body:  notification.Message,
		Data: map[string]string{
			"type":            string(notification.Type),
			"order_id":        notification.OrderID.String(),
			"notification_id": notification.ID.String(),
		},
	})
	if err != nil {
		f.metrics.Notification("push", "error")
		f.logg.Warn(f.logg.WithField(ctx, "error", err.Error()), "push multicast failed")
	}

	var invalid []string
	for _, result := range results {
		switch {
		case result.Err == nil:
			f.metrics.Notification("push", "sent")
		case result.Permanent:
			f.metrics.Notification("push", "invalid_token")
			invalid = append(invalid, result.Token)
		default:
			f.metrics.Notification("push", "error")
			f.logg.Warn(f.logg.WithField(ctx, "error", result.Err.Error()), "push delivery failed")
		}
	}
	if len(invalid) == 0 {
		return
	}
	pruned, err := f.repo.DeleteTokens(ctx, invalid)
	if err != nil {
		f.logg.Error(ctx, "failed to prune invalid push tokens", err)
		return
	}
	f.metrics.PushTokensPruned(int(pruned))
	f.logg.Info(f.logg.WithField(ctx, "pruned_tokens", pruned), "pruned invalid push tokens")
}

func sellerShare(event payloads.OrderCreatedEvent, sellerID uuid.UUID) (int, int64) {
	var items int
	var subtotal int64
	for _, line := range event.Lines {
		if line.SellerID != sellerID {
			continue
		}
		items += line.Quantity
		subtotal += int64(line.Quantity) * line.PriceMinorUnits
	}
	return items, subtotal
}
