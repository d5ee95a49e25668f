// internal/models/product.go
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product ids are the payment processor's opaque product ids (prod_...).
type Product struct {
	ID        string          `json:"id" gorm:"primaryKey;size:64"`
	Title     string          `json:"title" gorm:"size:255;not null"`
	BasePrice decimal.Decimal `json:"base_price" gorm:"type:decimal(10,2);not null"`
	Currency  string          `json:"currency" gorm:"size:3;not null;default:'eur'"`
	Category  string          `json:"category" gorm:"size:100;index"`
	ImageURL  string          `json:"image_url" gorm:"type:text"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`

	// Relationships
	Prices []PriceRecord `json:"prices,omitempty" gorm:"foreignKey:ProductID"`
}

// Variant identifies one option of a product variant axis, e.g. size:L.
// Index is the position of the axis on the product page and keys the
// per-variant editable content rows.
type Variant struct {
	Index int    `json:"index"`
	Label string `json:"label" validate:"required"`
	Value string `json:"value" validate:"required"`
}

func (v *Variant) String() string {
	if v == nil {
		return ""
	}
	return v.Label + ":" + v.Value
}
