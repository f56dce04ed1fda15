package inventory

import (
	"bytes"
	"sort"

	"github.com/google/uuid"

	"github.com/angelmondragon/settlement-backend/pkg/db/models"
)

type demand struct {
	catalogRef uuid.UUID
	quantity   int
}

// aggregate sums quantities per catalog item, sorted by id so concurrent
// ledgers take row locks in the same order.
func aggregate(lines []models.OrderLine) []demand {
	totals := make(map[uuid.UUID]int, len(lines))
	for _, line := range lines {
		totals[line.CatalogItemID] += line.Quantity
	}
	out := make([]demand, 0, len(totals))
	for ref, qty := range totals {
		out = append(out, demand{catalogRef: ref, quantity: qty})
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i].catalogRef[:], out[j].catalogRef[:]) < 0
	})
	return out
}
