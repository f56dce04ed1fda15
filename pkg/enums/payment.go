package enums

import (
	"fmt"
	"strings"
)

// PaymentProvider names the processor that issued a payment handle.
type PaymentProvider string

const PaymentProviderStripe PaymentProvider = "stripe"

// PaymentHandleKind distinguishes redirect sessions from client-confirmed intents.
type PaymentHandleKind string

const (
	PaymentHandleSession PaymentHandleKind = "session"
	PaymentHandleIntent  PaymentHandleKind = "intent"
)

func (k PaymentHandleKind) String() string {
	return string(k)
}

// IsValid reports whether the value is a known PaymentHandleKind.
func (k PaymentHandleKind) IsValid() bool {
	return k == PaymentHandleSession || k == PaymentHandleIntent
}

// ParsePaymentHandleKind converts config input into a PaymentHandleKind.
func ParsePaymentHandleKind(value string) (PaymentHandleKind, error) {
	kind := PaymentHandleKind(strings.ToLower(strings.TrimSpace(value)))
	if !kind.IsValid() {
		return "", fmt.Errorf("invalid payment handle kind %q", value)
	}
	return kind, nil
}
