package helpers

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/settlement-backend/internal/catalog"
)

// SellerTotals is the seller-side share of an order.
type SellerTotals struct {
	SellerID      uuid.UUID
	SubtotalMinor int64
	ItemCount     int
}

// GroupBySeller sums resolved lines per seller, in the order sellers first appear.
func GroupBySeller(lines []catalog.LineCandidate) []SellerTotals {
	index := make(map[uuid.UUID]int, len(lines))
	var out []SellerTotals
	for _, line := range lines {
		i, ok := index[line.SellerID]
		if !ok {
			i = len(out)
			index[line.SellerID] = i
			out = append(out, SellerTotals{SellerID: line.SellerID})
		}
		out[i].SubtotalMinor += line.LineTotal()
		out[i].ItemCount += line.Quantity
	}
	return out
}

// Subtotal is the sum of price times quantity over every line.
func Subtotal(lines []catalog.LineCandidate) int64 {
	var total int64
	for _, line := range lines {
		total += line.LineTotal()
	}
	return total
}
