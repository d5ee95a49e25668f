package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestOrderStatus_CanTransitionTo(t *testing.T) {
	valid := [][2]OrderStatus{
		{OrderStatusPendingPayment, OrderStatusPaid},
		{OrderStatusPendingPayment, OrderStatusExpired},
		{OrderStatusPaid, OrderStatusFulfilled},
		{OrderStatusPaid, OrderStatusRefunded},
	}
	for _, tr := range valid {
		assert.True(t, tr[0].CanTransitionTo(tr[1]), "%s -> %s", tr[0], tr[1])
	}

	invalid := [][2]OrderStatus{
		{OrderStatusPendingPayment, OrderStatusFulfilled},
		{OrderStatusPendingPayment, OrderStatusRefunded},
		{OrderStatusPaid, OrderStatusExpired},
		{OrderStatusPaid, OrderStatusPendingPayment},
		{OrderStatusExpired, OrderStatusPaid},
		{OrderStatusFulfilled, OrderStatusRefunded},
		{OrderStatusRefunded, OrderStatusPaid},
	}
	for _, tr := range invalid {
		assert.False(t, tr[0].CanTransitionTo(tr[1]), "%s -> %s", tr[0], tr[1])
	}
}

func TestCartLineItem_Helpers(t *testing.T) {
	item := CartLineItem{ProductID: "prod_A", Quantity: 3, UnitPrice: decimal.RequireFromString("12.50")}
	assert.True(t, item.IsPayable())
	assert.True(t, decimal.RequireFromString("37.5").Equal(item.LineTotal()))
	assert.False(t, item.HasDynamicPriceData())

	item.Currency = "eur"
	item.Title = "Pompe 600L/h"
	assert.True(t, item.HasDynamicPriceData())

	gift := CartLineItem{ProductID: "prod_A", Quantity: 1, ThresholdGift: true}
	assert.False(t, gift.IsPayable())
	assert.False(t, item.SameLine(&gift))

	other := item
	other.Variant = &Variant{Label: "taille", Value: "L"}
	assert.False(t, item.SameLine(&other))
	same := other
	assert.True(t, other.SameLine(&same))
}

func TestPromoCode_State(t *testing.T) {
	limit := 2
	code := PromoCode{UsageLimit: &limit, UsedCount: 2}
	assert.True(t, code.IsExhausted())

	code.UsageLimit = nil
	assert.False(t, code.IsExhausted())

	assert.Equal(t, "AQUA10", NormalizePromoCode("  aqua10 "))
}
