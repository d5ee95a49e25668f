// internal/i18n/keys.go
package i18n

// Translation keys constants
const (
	// Common
	KeySuccess       = "success"
	KeyInternalError = "error.internal"
	KeyRateLimited   = "error.rate_limited"

	// Authentication
	KeyAuthRequired           = "auth.required"
	KeyAuthInvalidToken       = "auth.invalid_token"
	KeyAuthTokenExpired       = "auth.token_expired"
	KeyAuthInvalidCredentials = "auth.invalid_credentials"
	KeyAuthLoginSuccess       = "auth.login_success"

	// Admin
	KeyAdminAccessDenied = "admin.access_denied"

	// Products and pricing
	KeyProductNotFound      = "product.not_found"
	KeyProductOutOfStock    = "product.out_of_stock"
	KeyProductNotConfigured = "product.price_not_configured"
	KeyPromotionActivated   = "promotion.activated"
	KeyPromotionDeactivated = "promotion.deactivated"
	KeyPriceSynced          = "product.price_synced"
	KeyStockUpdated         = "product.stock_updated"
	KeyProductImageUploaded = "product.image_uploaded"

	// Cart
	KeyCartItemAdded = "cart.item_added"

	// Promo codes
	KeyPromoApplied          = "promo.applied"
	KeyPromoRejected         = "promo.rejected"
	KeyPromoReasonNotFound   = "promo.reason.not_found"
	KeyPromoReasonInactive   = "promo.reason.inactive"
	KeyPromoReasonExpired    = "promo.reason.expired"
	KeyPromoReasonExhausted  = "promo.reason.exhausted"
	KeyPromoReasonMinimum    = "promo.reason.minimum_not_met"
	KeyPromoReasonNoEligible = "promo.reason.no_eligible_items"
	KeyPromoCodeNotFound     = "promo_code.not_found"
	KeyPromoCodeExists       = "promo_code.exists"

	// Checkout
	KeyCheckoutEmptyCart    = "checkout.empty_payable_cart"
	KeyCheckoutMissingPrice = "checkout.missing_price_configuration"
	KeyCheckoutBelowMinimum = "checkout.below_minimum_charge"
	KeyCheckoutUnavailable  = "checkout.unavailable"
	KeyCheckoutInvalidPromo = "checkout.invalid_promo"

	// Orders
	KeyOrderNotFound          = "order.not_found"
	KeyOrderInvalidTransition = "order.invalid_transition"
	KeyOrderFulfilled         = "order.fulfilled"
	KeyOrderRefunded          = "order.refunded"

	// Validation
	KeyValidationRequired = "validation.required"
	KeyValidationInvalid  = "validation.invalid"

	// File Upload
	KeyFileUploadFailed = "file.upload_failed"
	KeyFileInvalidType  = "file.invalid_type"
	KeyFileTooLarge     = "file.too_large"

	// Webhooks
	KeyWebhookInvalidSignature = "webhook.invalid_signature"
)
