package stripewebhook

import "github.com/stripe/stripe-go/v84"

// EventKind is the closed set of provider events the reconciler acts on.
type EventKind int

const (
	KindUnknown EventKind = iota
	KindCheckoutCompleted
	KindCheckoutAsyncSucceeded
	KindCheckoutAsyncFailed
	KindIntentSucceeded
	KindIntentFailed
	KindIntentCanceled
	KindSubscriptionChanged
	KindAccountUpdated
)

var kindNames = map[EventKind]string{
	KindUnknown:                "unknown",
	KindCheckoutCompleted:      "checkout_completed",
	KindCheckoutAsyncSucceeded: "checkout_async_succeeded",
	KindCheckoutAsyncFailed:    "checkout_async_failed",
	KindIntentSucceeded:        "intent_succeeded",
	KindIntentFailed:           "intent_failed",
	KindIntentCanceled:         "intent_canceled",
	KindSubscriptionChanged:    "subscription_changed",
	KindAccountUpdated:         "account_updated",
}

func (k EventKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return kindNames[KindUnknown]
}

// ParseEventKind maps a Stripe event type onto an EventKind. Types outside the
// handled set become KindUnknown.
func ParseEventKind(eventType stripe.EventType) EventKind {
	switch eventType {
	case stripe.EventTypeCheckoutSessionCompleted:
		return KindCheckoutCompleted
	case stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded:
		return KindCheckoutAsyncSucceeded
	case stripe.EventTypeCheckoutSessionAsyncPaymentFailed:
		return KindCheckoutAsyncFailed
	case stripe.EventTypePaymentIntentSucceeded:
		return KindIntentSucceeded
	case stripe.EventTypePaymentIntentPaymentFailed:
		return KindIntentFailed
	case stripe.EventTypePaymentIntentCanceled:
		return KindIntentCanceled
	case stripe.EventTypeCustomerSubscriptionCreated,
		stripe.EventTypeCustomerSubscriptionUpdated,
		stripe.EventTypeCustomerSubscriptionDeleted:
		return KindSubscriptionChanged
	case stripe.EventTypeAccountUpdated:
		return KindAccountUpdated
	default:
		return KindUnknown
	}
}
