package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Makeis02/landingmaj-sub003/internal/models"
)

func TestCart_AddMergesSameLine(t *testing.T) {
	var cart Cart
	blue := &models.Variant{Label: "couleur", Value: "bleu"}

	first := cart.Add(models.CartLineItem{ProductID: "prod_A", Quantity: 1})
	cart.Add(models.CartLineItem{ProductID: "prod_A", Quantity: 2})
	cart.Add(models.CartLineItem{ProductID: "prod_A", Quantity: 1, Variant: blue})
	cart.Add(models.CartLineItem{ProductID: "prod_A", Quantity: 1, IsGift: true})

	require.Len(t, cart.Items, 3)
	assert.NotEmpty(t, first.ID)
	assert.Equal(t, 3, cart.Items[0].Quantity)
	assert.Equal(t, 4, cart.QuantityOf("prod_A", nil), "gift lines consume the same stock")
	assert.Equal(t, 1, cart.QuantityOf("prod_A", blue))
}

func TestCart_UpdateAndRemove(t *testing.T) {
	var cart Cart
	item := cart.Add(models.CartLineItem{ProductID: "prod_A", Quantity: 1, UnitPrice: dec("10")})
	id := item.ID

	assert.True(t, cart.UpdateQuantity(id, 5))
	assert.True(t, dec("50").Equal(cart.PayableSubtotal()))

	assert.True(t, cart.UpdateQuantity(id, 0))
	assert.Empty(t, cart.Items)
	assert.False(t, cart.Remove(id))

	cart.Add(models.CartLineItem{ProductID: "prod_B", Quantity: 1})
	cart.Clear()
	assert.Empty(t, cart.Items)
}

func TestCartService_AddItem(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedPromoA(t)
	env.seedContent(t, models.ProductContentKey("prod_A", models.FieldStock), "3")

	var cart Cart
	item, err := env.carts.AddItem(ctx, &cart, AddToCartRequest{ProductID: "prod_A", Quantity: 2})
	require.NoError(t, err)
	assert.True(t, dec("40").Equal(item.UnitPrice))
	assert.True(t, item.HasDiscount)
	assert.Equal(t, "price_promo_A", item.StripeDiscountPriceID)
	assert.True(t, item.OriginalPrice.Valid)

	_, err = env.carts.AddItem(ctx, &cart, AddToCartRequest{ProductID: "prod_A", Quantity: 2})
	var stockErr *StockUnavailableError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, 2, cart.QuantityOf("prod_A", nil))

	gift, err := env.carts.AddItem(ctx, &cart, AddToCartRequest{ProductID: "prod_A", Quantity: 1, IsGift: true})
	require.NoError(t, err)
	assert.True(t, gift.UnitPrice.IsZero())
	assert.Equal(t, "Aquarium 60L", gift.Title)
}

func TestCartService_UnpricedProduct(t *testing.T) {
	env := newTestEnv(t)

	var cart Cart
	_, err := env.carts.AddItem(context.Background(), &cart, AddToCartRequest{ProductID: "prod_none", Quantity: 1})
	var cfgErr *ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
	assert.Empty(t, cart.Items)
}
