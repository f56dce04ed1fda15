package catalog

import "github.com/angelmondragon/settlement-backend/pkg/enums"

// StockStatus derives the availability label: out_of_stock at zero, low_stock
// at or below threshold, in_stock otherwise.
func StockStatus(stock, threshold int) enums.StockStatus {
	switch {
	case stock <= 0:
		return enums.StockOutOfStock
	case stock <= threshold:
		return enums.StockLowStock
	default:
		return enums.StockInStock
	}
}

// Decrement returns stock reduced by qty, floored at zero.
func Decrement(stock, qty int) int {
	next := stock - qty
	if next < 0 {
		return 0
	}
	return next
}
