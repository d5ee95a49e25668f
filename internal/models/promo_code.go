// internal/models/promo_code.go
package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type PromoCode struct {
	BaseModel
	Code            string              `json:"code" gorm:"size:50;not null;uniqueIndex"`
	Description     string              `json:"description,omitempty" gorm:"type:text"`
	Type            PromoType           `json:"type" gorm:"type:varchar(20);not null"`
	Value           decimal.Decimal     `json:"value" gorm:"type:decimal(10,2);not null"`
	ApplicationType ApplicationType     `json:"application_type" gorm:"type:varchar(20);not null;default:'all'"`
	ProductIDs      StringList          `json:"product_ids,omitempty"`
	Categories      StringList          `json:"categories,omitempty"`
	MinimumAmount   decimal.Decimal     `json:"minimum_amount" gorm:"type:decimal(10,2);not null;default:0"`
	MaximumDiscount decimal.NullDecimal `json:"maximum_discount" gorm:"type:decimal(10,2)"`
	UsageLimit      *int                `json:"usage_limit"`
	UsedCount       int                 `json:"used_count" gorm:"not null;default:0"`
	IsActive        bool                `json:"is_active" gorm:"not null;index"`
	ExpiresAt       *time.Time          `json:"expires_at"`
}

func (PromoCode) TableName() string { return "promo_codes" }

// Codes are matched case-insensitively and stored upper-cased.
func NormalizePromoCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func (p *PromoCode) BeforeSave(tx *gorm.DB) error {
	p.Code = NormalizePromoCode(p.Code)
	return nil
}

func (p *PromoCode) IsExpired(now time.Time) bool {
	return p.ExpiresAt != nil && !p.ExpiresAt.After(now)
}

func (p *PromoCode) IsExhausted() bool {
	return p.UsageLimit != nil && p.UsedCount >= *p.UsageLimit
}

// PromoCodeUsage records one redemption; (promo_code_id, order_id) is unique so
// recording twice for the same order is a no-op.
type PromoCodeUsage struct {
	BaseModel
	PromoCodeID    uuid.UUID       `json:"promo_code_id" gorm:"type:uuid;not null;uniqueIndex:ux_promo_code_usages_code_order"`
	OrderID        uuid.UUID       `json:"order_id" gorm:"type:uuid;not null;uniqueIndex:ux_promo_code_usages_code_order"`
	DiscountAmount decimal.Decimal `json:"discount_amount" gorm:"type:decimal(10,2);not null"`

	// Relationships
	PromoCode *PromoCode `json:"promo_code,omitempty" gorm:"foreignKey:PromoCodeID"`
}

func (PromoCodeUsage) TableName() string { return "promo_code_usages" }
