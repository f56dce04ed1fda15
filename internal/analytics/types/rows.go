package types

import (
	"time"

	cbigquery "cloud.google.com/go/bigquery"
)

// SettlementRow mirrors the settlement_facts BigQuery schema. One row is
// written per order lifecycle event.
type SettlementRow struct {
	EventID            string             `bigquery:"event_id"`
	EventType          string             `bigquery:"event_type"`
	OccurredAt         time.Time          `bigquery:"occurred_at"`
	OrderID            string             `bigquery:"order_id"`
	BuyerID            *string            `bigquery:"buyer_id"`
	SellerIDs          []string           `bigquery:"seller_ids"`
	Currency           string             `bigquery:"currency"`
	SubtotalMinorUnits *int64             `bigquery:"subtotal_minor_units"`
	ShippingMinorUnits *int64             `bigquery:"shipping_minor_units"`
	TotalMinorUnits    int64              `bigquery:"total_minor_units"`
	ItemCount          *int64             `bigquery:"item_count"`
	FailureReason      *string            `bigquery:"failure_reason"`
	ProviderEventID    *string            `bigquery:"provider_event_id"`
	Payload            cbigquery.NullJSON `bigquery:"payload"`
}

// Save implements bigquery.ValueSaver. The event id doubles as the insert id
// so redelivered events are deduplicated by the streaming API.
func (r *SettlementRow) Save() (map[string]cbigquery.Value, string, error) {
	sellers := make([]cbigquery.Value, 0, len(r.SellerIDs))
	for _, id := range r.SellerIDs {
		sellers = append(sellers, id)
	}
	row := map[string]cbigquery.Value{
		"event_id":             r.EventID,
		"event_type":           r.EventType,
		"occurred_at":          r.OccurredAt,
		"order_id":             r.OrderID,
		"buyer_id":             stringOrNil(r.BuyerID),
		"seller_ids":           sellers,
		"currency":             r.Currency,
		"subtotal_minor_units": int64OrNil(r.SubtotalMinorUnits),
		"shipping_minor_units": int64OrNil(r.ShippingMinorUnits),
		"total_minor_units":    r.TotalMinorUnits,
		"item_count":           int64OrNil(r.ItemCount),
		"failure_reason":       stringOrNil(r.FailureReason),
		"provider_event_id":    stringOrNil(r.ProviderEventID),
		"payload":              nil,
	}
	if r.Payload.Valid {
		row["payload"] = r.Payload.JSONVal
	}
	return row, r.EventID, nil
}

func stringOrNil(v *string) cbigquery.Value {
	if v == nil {
		return nil
	}
	return *v
}

func int64OrNil(v *int64) cbigquery.Value {
	if v == nil {
		return nil
	}
	return *v
}
