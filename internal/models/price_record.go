// internal/models/price_record.go
package models

import (
	"github.com/shopspring/decimal"
)

// PriceRecord is one sellable payment-processor price for a product or a
// product variant. Promotional prices carry IsDiscount and a unique lookup key
// per activation.
type PriceRecord struct {
	BaseModel
	ProductID     string          `json:"product_id" gorm:"size:64;not null;index:idx_product_prices_lookup"`
	StripePriceID string          `json:"stripe_price_id" gorm:"size:255;not null;index"`
	LookupKey     string          `json:"lookup_key" gorm:"size:255;not null;uniqueIndex"`
	VariantLabel  string          `json:"variant_label,omitempty" gorm:"size:100;not null;default:'';index:idx_product_prices_lookup"`
	VariantValue  string          `json:"variant_value,omitempty" gorm:"size:100;not null;default:'';index:idx_product_prices_lookup"`
	IsDiscount    bool            `json:"is_discount" gorm:"not null;default:false;index:idx_product_prices_lookup"`
	Active        bool            `json:"active" gorm:"not null;index:idx_product_prices_lookup"`
	UnitAmount    decimal.Decimal `json:"unit_amount" gorm:"type:decimal(10,2);not null"`
	Currency      string          `json:"currency" gorm:"size:3;not null;default:'eur'"`
}

func (PriceRecord) TableName() string { return "product_prices" }

// CatalogLookupKey is the idempotent key of a non-promotional price.
func CatalogLookupKey(productID string, v *Variant) string {
	if v == nil {
		return productID
	}
	return productID + "_" + v.Label + ":" + v.Value
}

// PromoLookupKey appends a uniqueness suffix; promotional prices are never reused.
func PromoLookupKey(productID string, v *Variant, suffix string) string {
	return CatalogLookupKey(productID, v) + "_promo_" + suffix
}

func (p *PriceRecord) Variant() *Variant {
	if p.VariantLabel == "" && p.VariantValue == "" {
		return nil
	}
	return &Variant{Label: p.VariantLabel, Value: p.VariantValue}
}
