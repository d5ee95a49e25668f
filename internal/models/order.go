// internal/models/order.go
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Order struct {
	BaseModel
	Status                OrderStatus     `json:"status" gorm:"type:varchar(20);not null;default:'pending_payment';index"`
	Currency              string          `json:"currency" gorm:"size:3;not null"`
	Subtotal              decimal.Decimal `json:"subtotal" gorm:"type:decimal(10,2);not null"`
	Discount              decimal.Decimal `json:"discount" gorm:"type:decimal(10,2);not null;default:0"`
	Total                 decimal.Decimal `json:"total" gorm:"type:decimal(10,2);not null"`
	PromoCodeID           *uuid.UUID      `json:"promo_code_id,omitempty" gorm:"type:uuid;index"`
	PromoCode             string          `json:"promo_code,omitempty" gorm:"size:50"`
	StripeSessionID       string          `json:"stripe_session_id,omitempty" gorm:"size:255;index"`
	StripePaymentIntentID string          `json:"stripe_payment_intent_id,omitempty" gorm:"size:255"`
	CustomerEmail         string          `json:"customer_email,omitempty" gorm:"size:255"`
	ShippingInfo          JSONB           `json:"shipping_info,omitempty" gorm:"type:jsonb"`
	GiftItems             JSONB           `json:"gift_items,omitempty" gorm:"type:jsonb"`
	PaidAt                *time.Time      `json:"paid_at,omitempty"`
	FulfilledAt           *time.Time      `json:"fulfilled_at,omitempty"`
	ExpiredAt             *time.Time      `json:"expired_at,omitempty"`
	RefundedAt            *time.Time      `json:"refunded_at,omitempty"`
	RefundReason          string          `json:"refund_reason,omitempty" gorm:"type:text"`

	// Relationships
	Items []OrderItem `json:"items,omitempty" gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
}

type OrderItem struct {
	BaseModel
	OrderID               uuid.UUID       `json:"order_id" gorm:"type:uuid;not null;index"`
	CartItemID            string          `json:"cart_item_id,omitempty" gorm:"size:100"`
	ProductID             string          `json:"product_id" gorm:"size:64;not null;index"`
	Title                 string          `json:"title" gorm:"size:255"`
	VariantLabel          string          `json:"variant_label,omitempty" gorm:"size:100"`
	VariantValue          string          `json:"variant_value,omitempty" gorm:"size:100"`
	Quantity              int             `json:"quantity" gorm:"not null"`
	UnitPrice             decimal.Decimal `json:"unit_price" gorm:"type:decimal(10,2);not null"`
	LineDiscount          decimal.Decimal `json:"line_discount" gorm:"type:decimal(10,2);not null;default:0"`
	ChargedAmount         decimal.Decimal `json:"charged_amount" gorm:"type:decimal(10,2);not null"`
	StripePriceID         string          `json:"stripe_price_id,omitempty" gorm:"size:255"`
	StripeDiscountPriceID string          `json:"stripe_discount_price_id,omitempty" gorm:"size:255"`
}

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPendingPayment: {OrderStatusPaid, OrderStatusExpired},
	OrderStatusPaid:           {OrderStatusFulfilled, OrderStatusRefunded},
}

func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}
