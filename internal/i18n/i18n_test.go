package i18n

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranslations(t *testing.T) {
	require.NoError(t, Initialize("fr"))

	assert.True(t, IsSupported("en"))
	assert.True(t, IsSupported("fr"))
	assert.False(t, IsSupported("zh_TW"))
	assert.ElementsMatch(t, []string{"en", "fr"}, GetSupportedLanguages())

	assert.Equal(t, "Produit introuvable", T("fr", KeyProductNotFound))
	assert.Equal(t, "Product not found", T("en", KeyProductNotFound))
	assert.Equal(t, "Produit introuvable", T("de", KeyProductNotFound), "unknown language falls back to default")
	assert.Equal(t, "missing.key", T("en", "missing.key"))
	assert.Equal(t, "Promo code rejected: this code has expired", T("en", KeyPromoRejected, T("en", KeyPromoReasonExpired)))
}

func TestCartMessagesAreDistinct(t *testing.T) {
	require.NoError(t, Initialize("fr"))

	for _, lang := range []string{"en", "fr"} {
		outOfStock := T(lang, KeyProductOutOfStock)
		promoRejected := T(lang, KeyPromoRejected, "x")
		unavailable := T(lang, KeyCheckoutUnavailable)

		assert.NotEqual(t, outOfStock, promoRejected)
		assert.NotEqual(t, outOfStock, unavailable)
		assert.NotEqual(t, promoRejected, unavailable)
	}
}

func TestEveryKeyIsTranslated(t *testing.T) {
	require.NoError(t, Initialize("fr"))

	keys := []string{
		KeyInternalError, KeyRateLimited, KeyAuthRequired, KeyAuthInvalidToken, KeyAuthTokenExpired,
		KeyAuthInvalidCredentials, KeyAdminAccessDenied, KeyProductNotFound, KeyProductOutOfStock,
		KeyProductNotConfigured, KeyCheckoutEmptyCart, KeyCheckoutMissingPrice, KeyCheckoutBelowMinimum,
		KeyCheckoutUnavailable, KeyOrderNotFound, KeyOrderInvalidTransition, KeyPromoCodeNotFound,
		KeyWebhookInvalidSignature,
	}
	for _, lang := range []string{"en", "fr"} {
		for _, key := range keys {
			assert.NotEqual(t, key, instance.T(lang, key), "%s missing in %s", key, lang)
		}
	}
}
