package enums

import "fmt"

// OrderStatus is the settlement state of an order.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusPaid      OrderStatus = "paid"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusFailed    OrderStatus = "failed"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusPaid,
	OrderStatusConfirmed,
	OrderStatusFailed,
}

func (s OrderStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known OrderStatus.
func (s OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseOrderStatus converts raw input into an OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	for _, candidate := range validOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}

// Settled reports whether payment has been taken for the order.
func (s OrderStatus) Settled() bool {
	return s == OrderStatusPaid || s == OrderStatusConfirmed
}

// InventoryStatus tracks whether the stock decrement for a paid order has been applied.
type InventoryStatus string

const (
	InventoryStatusPending InventoryStatus = "pending"
	InventoryStatusApplied InventoryStatus = "applied"
	InventoryStatusFailed  InventoryStatus = "failed"
)

func (s InventoryStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known InventoryStatus.
func (s InventoryStatus) IsValid() bool {
	switch s {
	case InventoryStatusPending, InventoryStatusApplied, InventoryStatusFailed:
		return true
	}
	return false
}
