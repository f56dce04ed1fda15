package enums

import "fmt"

// SubscriptionStatus mirrors the seller plan state reported by Stripe.
type SubscriptionStatus string

const (
	SubscriptionStatusNone              SubscriptionStatus = "none"
	SubscriptionStatusTrialing          SubscriptionStatus = "trialing"
	SubscriptionStatusActive            SubscriptionStatus = "active"
	SubscriptionStatusPastDue           SubscriptionStatus = "past_due"
	SubscriptionStatusCanceled          SubscriptionStatus = "canceled"
	SubscriptionStatusIncomplete        SubscriptionStatus = "incomplete"
	SubscriptionStatusIncompleteExpired SubscriptionStatus = "incomplete_expired"
	SubscriptionStatusUnpaid            SubscriptionStatus = "unpaid"
	SubscriptionStatusPaused            SubscriptionStatus = "paused"
)

// subscriptionEntitlement maps every known status to whether the seller may keep
// selling. past_due keeps selling through the provider's dunning window.
var subscriptionEntitlement = map[SubscriptionStatus]bool{
	SubscriptionStatusNone:              false,
	SubscriptionStatusTrialing:          true,
	SubscriptionStatusActive:            true,
	SubscriptionStatusPastDue:           true,
	SubscriptionStatusCanceled:          false,
	SubscriptionStatusIncomplete:        false,
	SubscriptionStatusIncompleteExpired: false,
	SubscriptionStatusUnpaid:            false,
	SubscriptionStatusPaused:            false,
}

func (s SubscriptionStatus) String() string {
	return string(s)
}

func (s SubscriptionStatus) IsValid() bool {
	_, ok := subscriptionEntitlement[s]
	return ok
}

func (s SubscriptionStatus) Entitled() bool {
	return subscriptionEntitlement[s]
}

// ParseSubscriptionStatus accepts the exact Stripe spelling.
func ParseSubscriptionStatus(value string) (SubscriptionStatus, error) {
	status := SubscriptionStatus(value)
	if !status.IsValid() {
		return "", fmt.Errorf("invalid subscription status %q", value)
	}
	return status, nil
}
