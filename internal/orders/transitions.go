package orders

import "github.com/angelmondragon/settlement-backend/pkg/enums"

var allowedTransitions = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusPending: {enums.OrderStatusPaid, enums.OrderStatusFailed},
	enums.OrderStatusPaid:    {enums.OrderStatusConfirmed},
}

// CanTransition reports whether from -> to is a legal status move.
func CanTransition(from, to enums.OrderStatus) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func rank(s enums.OrderStatus) int {
	switch s {
	case enums.OrderStatusPending:
		return 0
	case enums.OrderStatusPaid:
		return 1
	case enums.OrderStatusConfirmed:
		return 2
	default:
		return -1
	}
}

// Reached reports whether current is at or past target, making a move to target a no-op.
// failed only reaches failed; nothing on the payment path reaches failed.
func Reached(current, target enums.OrderStatus) bool {
	if current == target {
		return true
	}
	if current == enums.OrderStatusFailed || target == enums.OrderStatusFailed {
		return false
	}
	return rank(current) >= rank(target)
}
