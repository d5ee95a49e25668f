package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Makeis02/landingmaj-sub003/internal/models"
)

func TestResolvePrice_ActivePromotion(t *testing.T) {
	env := newTestEnv(t)
	env.seedPromoA(t)

	res, err := env.resolver.ResolvePrice(context.Background(), "prod_A", nil)
	require.NoError(t, err)

	assert.Equal(t, TierPromotion, res.Tier)
	assert.True(t, dec("40").Equal(res.Price))
	require.NotNil(t, res.OriginalPrice)
	assert.True(t, dec("50").Equal(*res.OriginalPrice))
	require.NotNil(t, res.DiscountPercentage)
	assert.True(t, dec("20").Equal(*res.DiscountPercentage))
	assert.Equal(t, "price_base_A", res.StripePriceID)
	assert.Equal(t, "price_promo_A", res.StripeDiscountPriceID)
	assert.True(t, res.HasDiscountApplied)
	assert.Equal(t, "price_promo_A", res.ChargedPriceID())
	assert.Equal(t, "Aquarium 60L", res.Title)
	assert.Equal(t, "eur", res.Currency)
}

func TestResolvePrice_NoDiscount(t *testing.T) {
	env := newTestEnv(t)
	env.seedProduct(t, "prod_B", "Filtre externe", "89.90", "filtration")
	env.seedPrice(t, "prod_B", nil, "price_base_B", "89.90", false)

	res, err := env.resolver.ResolvePrice(context.Background(), "prod_B", nil)
	require.NoError(t, err)

	assert.Equal(t, TierCatalog, res.Tier)
	assert.True(t, dec("89.90").Equal(res.Price))
	assert.Nil(t, res.OriginalPrice)
	assert.Nil(t, res.DiscountPercentage)
	assert.False(t, res.HasDiscountApplied)
	assert.Equal(t, "price_base_B", res.ChargedPriceID())
}

func TestResolvePrice_AnnotationWithoutDiscountRecordIsIgnored(t *testing.T) {
	env := newTestEnv(t)
	env.seedProduct(t, "prod_B", "Filtre externe", "89.90", "filtration")
	env.seedPrice(t, "prod_B", nil, "price_base_B", "89.90", false)
	env.seedContent(t, models.ProductContentKey("prod_B", models.FieldDiscountPercentage), "15")

	res, err := env.resolver.ResolvePrice(context.Background(), "prod_B", nil)
	require.NoError(t, err)

	assert.Equal(t, TierCatalog, res.Tier)
	assert.False(t, res.HasDiscountApplied)
	assert.True(t, dec("89.90").Equal(res.Price))
}

func TestResolvePrice_DiscountRecordWithoutAnnotationIsNewBase(t *testing.T) {
	env := newTestEnv(t)
	env.seedProduct(t, "prod_C", "Chauffage 100W", "30", "heating")
	env.seedPrice(t, "prod_C", nil, "price_base_C", "30", false)
	env.seedPrice(t, "prod_C", nil, "price_lowered_C", "25", true)

	res, err := env.resolver.ResolvePrice(context.Background(), "prod_C", nil)
	require.NoError(t, err)

	assert.Equal(t, TierLoweredBase, res.Tier)
	assert.True(t, dec("25").Equal(res.Price))
	assert.Equal(t, "price_lowered_C", res.StripePriceID)
	assert.Nil(t, res.OriginalPrice)
	assert.False(t, res.HasDiscountApplied)
}

func TestResolvePrice_ZeroAnnotationMeansNoPromotion(t *testing.T) {
	env := newTestEnv(t)
	env.seedPromoA(t)
	env.seedContent(t, models.ProductContentKey("prod_A", models.FieldDiscountPercentage), "0")

	res, err := env.resolver.ResolvePrice(context.Background(), "prod_A", nil)
	require.NoError(t, err)

	assert.False(t, res.HasDiscountApplied)
	assert.Nil(t, res.DiscountPercentage)
}

func TestResolvePrice_ContentFallback(t *testing.T) {
	env := newTestEnv(t)
	env.seedContent(t, models.ProductContentKey("prod_D", models.FieldStripePriceID), "price_content_D")
	env.seedContent(t, models.ProductContentKey("prod_D", models.FieldPrice), "12.50")

	res, err := env.resolver.ResolvePrice(context.Background(), "prod_D", nil)
	require.NoError(t, err)

	assert.Equal(t, TierCatalog, res.Tier)
	assert.Equal(t, "price_content_D", res.StripePriceID)
	assert.True(t, dec("12.50").Equal(res.Price))
}

func TestResolvePrice_ContentPriceIDUsesProductBasePrice(t *testing.T) {
	env := newTestEnv(t)
	env.seedProduct(t, "prod_D", "Pompe", "19.99", "")
	env.seedContent(t, models.ProductContentKey("prod_D", models.FieldStripePriceID), "price_content_D")

	res, err := env.resolver.ResolvePrice(context.Background(), "prod_D", nil)
	require.NoError(t, err)
	assert.True(t, dec("19.99").Equal(res.Price))
}

func TestResolvePrice_LegacyDiscountPriceID(t *testing.T) {
	env := newTestEnv(t)
	env.seedProduct(t, "prod_L", "Sable", "50", "")
	env.seedContent(t, models.ProductContentKey("prod_L", models.FieldStripePriceID), "price_base_L")
	env.seedContent(t, models.ProductContentKey("prod_L", models.FieldStripeDiscountPriceID), "price_legacy_L")
	env.seedContent(t, models.ProductContentKey("prod_L", models.FieldDiscountPercentage), "20")

	res, err := env.resolver.ResolvePrice(context.Background(), "prod_L", nil)
	require.NoError(t, err)

	assert.Equal(t, TierPromotion, res.Tier)
	assert.True(t, dec("40").Equal(res.Price))
	assert.Equal(t, "price_legacy_L", res.ChargedPriceID())
	assert.Equal(t, "price_base_L", res.StripePriceID)
}

func TestResolvePrice_LegacyDiscountPriceIDWithoutAnnotationIsNewBase(t *testing.T) {
	env := newTestEnv(t)
	env.seedProduct(t, "prod_M", "Decor", "35", "")
	env.seedContent(t, models.ProductContentKey("prod_M", models.FieldStripePriceID), "price_old")
	env.seedContent(t, models.ProductContentKey("prod_M", models.FieldStripeDiscountPriceID), "price_lowered")
	env.seedContent(t, models.ProductContentKey("prod_M", models.FieldPrice), "30")
	env.seedContent(t, models.ProductContentKey("prod_M", models.FieldDiscountPercentage), "0")

	res, err := env.resolver.ResolvePrice(context.Background(), "prod_M", nil)
	require.NoError(t, err)

	assert.Equal(t, TierLoweredBase, res.Tier)
	assert.Equal(t, "price_lowered", res.StripePriceID)
	assert.Equal(t, "price_lowered", res.ChargedPriceID())
	assert.Empty(t, res.StripeDiscountPriceID)
	assert.False(t, res.HasDiscountApplied)
	assert.Nil(t, res.OriginalPrice)
	assert.True(t, dec("30").Equal(res.Price))

	// without a price content the product base price is charged
	env.seedContent(t, models.ProductContentKey("prod_M", models.FieldPrice), "")
	res, err = env.resolver.ResolvePrice(context.Background(), "prod_M", nil)
	require.NoError(t, err)
	assert.Equal(t, "price_lowered", res.StripePriceID)
	assert.True(t, dec("35").Equal(res.Price))
}

func TestResolvePrice_NotConfigured(t *testing.T) {
	env := newTestEnv(t)
	env.seedProduct(t, "prod_X", "Sans prix", "0", "")

	_, err := env.resolver.ResolvePrice(context.Background(), "prod_X", nil)
	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "prod_X", cfgErr.ProductID)

	_, err = env.resolver.ResolvePrice(context.Background(), "prod_unknown", nil)
	require.ErrorAs(t, err, &cfgErr)
}

func TestResolvePrice_Variants(t *testing.T) {
	env := newTestEnv(t)
	small := &models.Variant{Index: 0, Label: "size", Value: "S"}
	large := &models.Variant{Index: 0, Label: "size", Value: "L"}

	env.seedProduct(t, "prod_V", "Décor racine", "20", "decor")
	env.seedPrice(t, "prod_V", nil, "price_base_V", "20", false)
	env.seedPrice(t, "prod_V", large, "price_base_V_L", "35", false)
	env.seedPrice(t, "prod_V", nil, "price_promo_V", "16", true)
	env.seedContent(t, models.ProductContentKey("prod_V", models.FieldDiscountPercentage), "20")

	t.Run("variant record beats product record and ignores product promotion", func(t *testing.T) {
		res, err := env.resolver.ResolvePrice(context.Background(), "prod_V", large)
		require.NoError(t, err)
		assert.Equal(t, TierCatalog, res.Tier)
		assert.True(t, dec("35").Equal(res.Price))
		assert.Equal(t, "price_base_V_L", res.StripePriceID)
	})

	t.Run("variant without own price inherits product promotion", func(t *testing.T) {
		res, err := env.resolver.ResolvePrice(context.Background(), "prod_V", small)
		require.NoError(t, err)
		assert.Equal(t, TierPromotion, res.Tier)
		assert.True(t, dec("16").Equal(res.Price))
		assert.Equal(t, "price_promo_V", res.ChargedPriceID())
	})

	t.Run("variant annotation opts out of product promotion", func(t *testing.T) {
		env.seedContent(t, models.ContentKeyFor("prod_V", small, models.FieldDiscountPercentage), "0")
		res, err := env.resolver.ResolvePrice(context.Background(), "prod_V", small)
		require.NoError(t, err)
		assert.Equal(t, TierCatalog, res.Tier)
		assert.True(t, dec("20").Equal(res.Price))
	})
}

func TestResolvePrice_IsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	env.seedPromoA(t)

	first, err := env.resolver.ResolvePrice(context.Background(), "prod_A", nil)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		again, err := env.resolver.ResolvePrice(context.Background(), "prod_A", nil)
		require.NoError(t, err)
		assert.Equal(t, first.Tier, again.Tier)
		assert.True(t, first.Price.Equal(again.Price))
		assert.True(t, first.OriginalPrice.Equal(*again.OriginalPrice))
		assert.Equal(t, first.StripePriceID, again.StripePriceID)
		assert.Equal(t, first.StripeDiscountPriceID, again.StripeDiscountPriceID)
	}
}

func TestCheckMultiplePromotions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.seedContent(t, models.ProductContentKey("prod_1", models.FieldDiscountPercentage), "20")
	env.seedContent(t, models.VariantContentKey("prod_2", 1, "bleu", models.FieldDiscountPercentage), "15")
	env.seedContent(t, models.ProductContentKey("prod_3", models.FieldDiscountPercentage), "0")
	env.seedContent(t, models.VariantContentKey("prod_10", 0, "x", models.FieldDiscountPercentage), "30")
	require.NoError(t, env.db.Create(&models.EditableContent{
		ContentKey: "product_prod_5_variant_abc_option_x_discount_percentage",
		Content:    "25",
	}).Error)

	flags, err := env.resolver.CheckMultiplePromotions(ctx, []string{"prod_1", "prod_2", "prod_3", "prod_4", "prod_5", "prod_1"})
	require.NoError(t, err)

	assert.Equal(t, map[string]bool{
		"prod_1": true,
		"prod_2": true,
		"prod_3": false,
		"prod_4": false,
		"prod_5": false,
	}, flags)
}

func TestCheckMultiplePromotions_UsesCache(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	active, err := env.resolver.CheckActivePromotion(ctx, "prod_1")
	require.NoError(t, err)
	assert.False(t, active)

	env.seedContent(t, models.ProductContentKey("prod_1", models.FieldDiscountPercentage), "10")

	active, err = env.resolver.CheckActivePromotion(ctx, "prod_1")
	require.NoError(t, err)
	assert.False(t, active, "cached flag served until invalidated")

	require.NoError(t, env.cache.Invalidate(ctx, "prod_1"))
	active, err = env.resolver.CheckActivePromotion(ctx, "prod_1")
	require.NoError(t, err)
	assert.True(t, active)
}

func TestCheckMultiplePromotions_Empty(t *testing.T) {
	env := newTestEnv(t)

	flags, err := env.resolver.CheckMultiplePromotions(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, flags)
}
