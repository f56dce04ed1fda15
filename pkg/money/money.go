package money

import (
	"strings"

	"github.com/shopspring/decimal"
)

// zeroDecimalCurrencies are ISO codes whose minor unit equals the major unit.
var zeroDecimalCurrencies = map[string]struct{}{
	"bif": {}, "clp": {}, "djf": {}, "gnf": {}, "jpy": {}, "kmf": {}, "krw": {}, "mga": {},
	"pyg": {}, "rwf": {}, "ugx": {}, "vnd": {}, "vuv": {}, "xaf": {}, "xof": {}, "xpf": {},
}

// Exponent returns the number of minor-unit digits for currency.
func Exponent(currency string) int32 {
	if _, ok := zeroDecimalCurrencies[strings.ToLower(strings.TrimSpace(currency))]; ok {
		return 0
	}
	return 2
}

// FromMinor converts an integer minor-unit amount into a decimal major amount.
func FromMinor(amount int64, currency string) decimal.Decimal {
	return decimal.New(amount, -Exponent(currency))
}

// Format renders a minor-unit amount as "12.50 USD".
func Format(amount int64, currency string) string {
	exp := Exponent(currency)
	return FromMinor(amount, currency).StringFixed(exp) + " " + strings.ToUpper(strings.TrimSpace(currency))
}

// ToMinor converts a decimal major amount to minor units, rounding half away from zero.
func ToMinor(amount decimal.Decimal, currency string) int64 {
	return amount.Shift(Exponent(currency)).Round(0).IntPart()
}
