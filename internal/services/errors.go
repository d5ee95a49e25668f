// internal/services/errors.go
package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrEmptyPayableCart   = errors.New("cart has no payable items")
	ErrOrderNotFound      = errors.New("order not found")
	ErrInvalidTransition  = errors.New("invalid order status transition")
	ErrPromoCodeNotFound  = errors.New("promo code not found")
	ErrPromoCodeExists    = errors.New("promo code already exists")
	ErrPromoCodeExhausted = errors.New("promo code usage limit reached")
	ErrProductNotFound    = errors.New("product not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// ConfigurationError means no usable payment price exists for a product.
type ConfigurationError struct {
	ProductID string
	Variant   string
}

func (e *ConfigurationError) Error() string {
	if e.Variant != "" {
		return fmt.Sprintf("no usable price configured for product %s (%s)", e.ProductID, e.Variant)
	}
	return fmt.Sprintf("no usable price configured for product %s", e.ProductID)
}

type MissingPriceConfigurationError struct {
	ItemIDs []string
}

func (e *MissingPriceConfigurationError) Error() string {
	return "missing price configuration for items: " + strings.Join(e.ItemIDs, ", ")
}

type BelowMinimumChargeError struct {
	Total   decimal.Decimal
	Minimum decimal.Decimal
}

func (e *BelowMinimumChargeError) Error() string {
	return fmt.Sprintf("total %s is below the minimum charge %s", e.Total.StringFixed(2), e.Minimum.StringFixed(2))
}

// PromoRejectReason is a machine readable reason, also used as i18n suffix.
type PromoRejectReason string

const (
	PromoReasonNotFound        PromoRejectReason = "not_found"
	PromoReasonInactive        PromoRejectReason = "inactive"
	PromoReasonExpired         PromoRejectReason = "expired"
	PromoReasonExhausted       PromoRejectReason = "exhausted"
	PromoReasonMinimumNotMet   PromoRejectReason = "minimum_not_met"
	PromoReasonNoEligibleItems PromoRejectReason = "no_eligible_items"
)

type InvalidPromoCodeError struct {
	Code   string
	Reason PromoRejectReason
}

func (e *InvalidPromoCodeError) Error() string {
	return fmt.Sprintf("promo code %q rejected: %s", e.Code, e.Reason)
}

// PaymentSessionCreationError wraps a payment processor failure. Cause is
// for logs only.
type PaymentSessionCreationError struct {
	OrderID string
	Cause   error
}

func (e *PaymentSessionCreationError) Error() string {
	return fmt.Sprintf("failed to create payment session for order %s: %v", e.OrderID, e.Cause)
}

func (e *PaymentSessionCreationError) Unwrap() error {
	return e.Cause
}

type StockUnavailableError struct {
	ProductIDs []string
}

func (e *StockUnavailableError) Error() string {
	return "insufficient stock for products: " + strings.Join(e.ProductIDs, ", ")
}
