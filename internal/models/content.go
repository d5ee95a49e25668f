// internal/models/content.go
package models

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// EditableContent is the key/value table the storefront admin writes product
// annotations into (stock, stripe price ids, discount percentages).
type EditableContent struct {
	ContentKey string    `json:"content_key" gorm:"primaryKey;size:255"`
	Content    string    `json:"content" gorm:"type:text"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (EditableContent) TableName() string { return "editable_content" }

type ContentField string

const (
	FieldStripePriceID         ContentField = "stripe_price_id"
	FieldStripeDiscountPriceID ContentField = "stripe_discount_price_id"
	FieldDiscountPercentage    ContentField = "discount_percentage"
	FieldStock                 ContentField = "stock"
	FieldPrice                 ContentField = "price"
)

// longest first so that suffix matching never picks a shorter field that
// happens to end the same way.
var knownFields = []ContentField{
	FieldStripeDiscountPriceID,
	FieldDiscountPercentage,
	FieldStripePriceID,
	FieldStock,
	FieldPrice,
}

const (
	contentKeyPrefix = "product_"
	variantMarker    = "_variant_"
	optionMarker     = "_option_"
)

var ErrMalformedContentKey = errors.New("malformed content key")

// ContentKey is the decoded form of an editable_content key:
//
//	product_{id}_{field}
//	product_{id}_variant_{n}_option_{opt}_{field}
type ContentKey struct {
	ProductID    string
	VariantIndex *int
	Option       string
	Field        ContentField
}

func ProductContentKey(productID string, field ContentField) ContentKey {
	return ContentKey{ProductID: productID, Field: field}
}

func VariantContentKey(productID string, index int, option string, field ContentField) ContentKey {
	return ContentKey{ProductID: productID, VariantIndex: &index, Option: option, Field: field}
}

// ContentKeyFor returns the variant key when v is set, the product key otherwise.
func ContentKeyFor(productID string, v *Variant, field ContentField) ContentKey {
	if v == nil {
		return ProductContentKey(productID, field)
	}
	return VariantContentKey(productID, v.Index, v.Value, field)
}

func (k ContentKey) IsVariant() bool {
	return k.VariantIndex != nil
}

func (k ContentKey) String() string {
	var b strings.Builder
	b.WriteString(contentKeyPrefix)
	b.WriteString(k.ProductID)
	if k.VariantIndex != nil {
		b.WriteString(variantMarker)
		b.WriteString(strconv.Itoa(*k.VariantIndex))
		b.WriteString(optionMarker)
		b.WriteString(k.Option)
	}
	b.WriteByte('_')
	b.WriteString(string(k.Field))
	return b.String()
}

// ParseContentKey is the only place key strings are decoded.
func ParseContentKey(raw string) (ContentKey, error) {
	rest, ok := strings.CutPrefix(raw, contentKeyPrefix)
	if !ok {
		return ContentKey{}, fmt.Errorf("%w: %q: missing %q prefix", ErrMalformedContentKey, raw, contentKeyPrefix)
	}

	var key ContentKey
	for _, field := range knownFields {
		if trimmed, found := strings.CutSuffix(rest, "_"+string(field)); found {
			key.Field = field
			rest = trimmed
			break
		}
	}
	if key.Field == "" {
		return ContentKey{}, fmt.Errorf("%w: %q: unknown field", ErrMalformedContentKey, raw)
	}

	if idx := strings.Index(rest, variantMarker); idx >= 0 {
		tail := rest[idx+len(variantMarker):]
		rest = rest[:idx]

		optIdx := strings.Index(tail, optionMarker)
		if optIdx < 0 {
			return ContentKey{}, fmt.Errorf("%w: %q: variant without option", ErrMalformedContentKey, raw)
		}

		n, err := strconv.Atoi(tail[:optIdx])
		if err != nil || n < 0 {
			return ContentKey{}, fmt.Errorf("%w: %q: bad variant index", ErrMalformedContentKey, raw)
		}

		option := tail[optIdx+len(optionMarker):]
		if option == "" {
			return ContentKey{}, fmt.Errorf("%w: %q: empty option", ErrMalformedContentKey, raw)
		}

		key.VariantIndex = &n
		key.Option = option
	}

	if rest == "" {
		return ContentKey{}, fmt.Errorf("%w: %q: empty product id", ErrMalformedContentKey, raw)
	}
	key.ProductID = rest

	return key, nil
}

// ParseDiscountPercentage reads an annotation value. Absent, zero, negative,
// above 100 or non-numeric values all mean "no discount".
func ParseDiscountPercentage(raw string) (decimal.Decimal, bool) {
	pct, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, false
	}
	if !pct.IsPositive() || pct.GreaterThan(decimal.NewFromInt(100)) {
		return decimal.Zero, false
	}
	return pct, true
}

// ParseStock returns the stock count; ok is false when the value is unusable.
func ParseStock(raw string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, false
	}
	return n, true
}
