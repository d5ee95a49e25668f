// internal/models/cart.go
package models

import (
	"github.com/shopspring/decimal"
)

// CartLineItem is the client-held snapshot taken when an item is added to
// the cart. Gift lines are never payable.
type CartLineItem struct {
	ID                    string              `json:"id"`
	ProductID             string              `json:"product_id" validate:"required"`
	Title                 string              `json:"title,omitempty"`
	ImageURL              string              `json:"image_url,omitempty"`
	Quantity              int                 `json:"quantity" validate:"required,min=1"`
	UnitPrice             decimal.Decimal     `json:"unit_price"`
	Currency              string              `json:"currency,omitempty"`
	StripePriceID         string              `json:"stripe_price_id,omitempty"`
	StripeDiscountPriceID string              `json:"stripe_discount_price_id,omitempty"`
	OriginalPrice         decimal.NullDecimal `json:"original_price"`
	DiscountPercentage    decimal.NullDecimal `json:"discount_percentage"`
	HasDiscount           bool                `json:"has_discount"`
	Variant               *Variant            `json:"variant,omitempty"`
	IsGift                bool                `json:"is_gift"`
	ThresholdGift         bool                `json:"threshold_gift"`
}

func (i *CartLineItem) IsPayable() bool {
	return !i.IsGift && !i.ThresholdGift
}

func (i *CartLineItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// HasDynamicPriceData reports whether an inline price can be built without a
// catalog price id.
func (i *CartLineItem) HasDynamicPriceData() bool {
	return i.UnitPrice.IsPositive() && i.Currency != "" && i.Title != ""
}

// SameLine reports whether two snapshots describe the same cart line.
func (i *CartLineItem) SameLine(other *CartLineItem) bool {
	if i.ProductID != other.ProductID || i.IsPayable() != other.IsPayable() {
		return false
	}
	if (i.Variant == nil) != (other.Variant == nil) {
		return false
	}
	return i.Variant == nil || *i.Variant == *other.Variant
}
