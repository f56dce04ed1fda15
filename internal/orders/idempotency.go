package orders

import "github.com/google/uuid"

// IdempotencyKey is the provider idempotency key for an order's payment handle.
// The same order always yields the same key.
func IdempotencyKey(orderID uuid.UUID) string {
	return "order:" + orderID.String() + ":payment"
}
