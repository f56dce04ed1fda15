package router

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/settlement-backend/internal/analytics/types"
	analyticswriter "github.com/angelmondragon/settlement-backend/internal/analytics/writer"
	"github.com/angelmondragon/settlement-backend/pkg/logger"
	"github.com/angelmondragon/settlement-backend/pkg/outbox/payloads"
)

type settlementRows struct {
	writer Writer
	logg   *logger.Logger
}

func (s *settlementRows) orderCreated(ctx context.Context, envelope types.Envelope, event *payloads.OrderCreatedEvent) error {
	var items int64
	for _, line := range event.Lines {
		items += int64(line.Quantity)
	}
	body, err := analyticswriter.EncodeJSON(event)
	if err != nil {
		return err
	}

	row := newRow(envelope, event.OrderID, event.Currency, event.TotalMinorUnits, event.CreatedAt)
	row.BuyerID = ptr(event.BuyerID.String())
	row.SellerIDs = uuidStrings(event.SellerIDs())
	row.SubtotalMinorUnits = ptr(event.SubtotalMinorUnits)
	row.ShippingMinorUnits = ptr(event.ShippingMinorUnits)
	row.ItemCount = ptr(items)
	row.Payload = body
	return s.write(ctx, row, map[string]any{"lines": len(event.Lines)})
}

func (s *settlementRows) orderPaid(ctx context.Context, envelope types.Envelope, event *payloads.OrderPaidEvent) error {
	row := newRow(envelope, event.OrderID, event.Currency, event.TotalMinorUnits, event.PaidAt)
	row.BuyerID = ptr(event.BuyerID.String())
	row.SellerIDs = uuidStrings(event.SellerIDs)
	row.ProviderEventID = optional(event.ProviderEventID)
	return s.write(ctx, row, nil)
}

func (s *settlementRows) orderConfirmed(ctx context.Context, envelope types.Envelope, event *payloads.OrderConfirmedEvent) error {
	row := newRow(envelope, event.OrderID, event.Currency, event.TotalMinorUnits, event.ConfirmedAt)
	row.ProviderEventID = optional(event.ProviderEventID)
	return s.write(ctx, row, nil)
}

func (s *settlementRows) orderFailed(ctx context.Context, envelope types.Envelope, event *payloads.OrderFailedEvent) error {
	row := newRow(envelope, event.OrderID, event.Currency, event.TotalMinorUnits, event.FailedAt)
	row.FailureReason = optional(event.Reason)
	row.ProviderEventID = optional(event.ProviderEventID)
	return s.write(ctx, row, map[string]any{"reason": event.Reason})
}

func (s *settlementRows) write(ctx context.Context, row types.SettlementRow, extra map[string]any) error {
	fields := map[string]any{
		"order_id":    row.OrderID,
		"total_minor": row.TotalMinorUnits,
	}
	for k, v := range extra {
		fields[k] = v
	}
	ctx = s.logg.WithFields(ctx, fields)
	if err := s.writer.InsertSettlement(ctx, row); err != nil {
		s.logg.Error(ctx, "settlement row insert failed", err)
		return err
	}
	s.logg.Debug(ctx, "settlement row buffered")
	return nil
}

// newRow prefers the domain timestamp and falls back to the envelope time.
func newRow(envelope types.Envelope, orderID uuid.UUID, currency string, total int64, at time.Time) types.SettlementRow {
	occurredAt := envelope.OccurredAt
	if !at.IsZero() {
		occurredAt = at
	}
	return types.SettlementRow{
		EventID:         envelope.EventID.String(),
		EventType:       string(envelope.EventType),
		OccurredAt:      occurredAt.UTC(),
		OrderID:         orderID.String(),
		Currency:        strings.ToLower(currency),
		TotalMinorUnits: total,
	}
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return out
}

func ptr[T any](v T) *T {
	return &v
}

func optional(v string) *string {
	if v = strings.TrimSpace(v); v == "" {
		return nil
	}
	return &v
}
