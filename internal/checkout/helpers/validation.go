package helpers

import (
	"sort"
	"strings"

	"github.com/angelmondragon/settlement-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/settlement-backend/pkg/errors"
)

// ShippingCost looks the method up in the configured rate table.
func ShippingCost(cfg config.CheckoutConfig, method string) (string, int64, error) {
	method = strings.ToLower(strings.TrimSpace(method))
	cost, ok := cfg.ShippingRates[method]
	if !ok {
		allowed := make([]string, 0, len(cfg.ShippingRates))
		for name := range cfg.ShippingRates {
			allowed = append(allowed, name)
		}
		sort.Strings(allowed)
		return "", 0, pkgerrors.New(pkgerrors.CodeValidation, "unknown shipping method").
			WithDetails(map[string]any{"shipping_method": method, "allowed": allowed})
	}
	return method, cost, nil
}

// Currency applies the default and checks the allow-list.
func Currency(cfg config.CheckoutConfig, code string) (string, error) {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		code = strings.ToLower(strings.TrimSpace(cfg.DefaultCurrency))
	}
	if !cfg.CurrencyAllowed(code) {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "currency not supported").
			WithDetails(map[string]any{"currency": code})
	}
	return code, nil
}
