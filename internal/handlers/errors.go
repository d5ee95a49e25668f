// internal/handlers/errors.go
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/Makeis02/landingmaj-sub003/internal/i18n"
	"github.com/Makeis02/landingmaj-sub003/internal/services"
	"github.com/Makeis02/landingmaj-sub003/internal/utils"
)

// Machine readable error codes returned in the error envelope.
const (
	CodeEmptyPayableCart    = "EMPTY_PAYABLE_CART"
	CodeMissingPriceConfig  = "MISSING_PRICE_CONFIGURATION"
	CodeBelowMinimumCharge  = "BELOW_MINIMUM_CHARGE"
	CodeInvalidPromoCode    = "INVALID_PROMO_CODE"
	CodePaymentSessionError = "PAYMENT_SESSION_FAILED"
	CodeStockUnavailable    = "STOCK_UNAVAILABLE"
	CodeConfigurationError  = "CONFIGURATION_ERROR"
	CodeInvalidTransition   = "INVALID_TRANSITION"
	CodeInvalidSignature    = "INVALID_SIGNATURE"
)

// promoReasonMessage translates a rejection reason for the end user.
func promoReasonMessage(lang string, reason services.PromoRejectReason) string {
	return i18n.T(lang, "promo.reason."+string(reason))
}

// bindJSON binds and validates the request body, writing the error response
// itself when it returns false.
func bindJSON(c *gin.Context, req interface{}) bool {
	lang := utils.GetLangFromContext(c)

	if err := c.ShouldBindJSON(req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return false
	}

	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return false
	}
	return true
}

// respondError maps a service error onto the HTTP error envelope. Unknown
// errors are logged and reported as internal errors.
func respondError(c *gin.Context, err error) {
	lang := utils.GetLangFromContext(c)

	var (
		cfgErr     *services.ConfigurationError
		missingErr *services.MissingPriceConfigurationError
		minimumErr *services.BelowMinimumChargeError
		promoErr   *services.InvalidPromoCodeError
		sessionErr *services.PaymentSessionCreationError
		stockErr   *services.StockUnavailableError
	)

	switch {
	case errors.Is(err, services.ErrEmptyPayableCart):
		utils.ErrorResponse(c, http.StatusBadRequest, CodeEmptyPayableCart, i18n.T(lang, i18n.KeyCheckoutEmptyCart), nil)

	case errors.As(err, &missingErr):
		utils.ErrorResponseWithDebug(c, http.StatusUnprocessableEntity, CodeMissingPriceConfig,
			i18n.T(lang, i18n.KeyCheckoutMissingPrice), gin.H{"item_ids": missingErr.ItemIDs}, err.Error())

	case errors.As(err, &cfgErr):
		utils.ErrorResponseWithDebug(c, http.StatusUnprocessableEntity, CodeConfigurationError,
			i18n.T(lang, i18n.KeyProductNotConfigured), gin.H{"product_id": cfgErr.ProductID}, err.Error())

	case errors.As(err, &minimumErr):
		utils.ErrorResponse(c, http.StatusBadRequest, CodeBelowMinimumCharge, i18n.T(lang, i18n.KeyCheckoutBelowMinimum), gin.H{
			"total":   minimumErr.Total.StringFixed(2),
			"minimum": minimumErr.Minimum.StringFixed(2),
		})

	case errors.As(err, &promoErr):
		utils.ErrorResponse(c, http.StatusBadRequest, CodeInvalidPromoCode,
			i18n.T(lang, i18n.KeyCheckoutInvalidPromo, promoReasonMessage(lang, promoErr.Reason)),
			gin.H{"code": promoErr.Code, "reason": promoErr.Reason})

	case errors.As(err, &sessionErr):
		logrus.WithError(sessionErr.Cause).WithField("order_id", sessionErr.OrderID).Error("Checkout session creation failed")
		utils.ErrorResponseWithDebug(c, http.StatusBadGateway, CodePaymentSessionError,
			i18n.T(lang, i18n.KeyCheckoutUnavailable), gin.H{"order_id": sessionErr.OrderID}, sessionErr.Cause.Error())

	case errors.As(err, &stockErr):
		utils.ErrorResponse(c, http.StatusConflict, CodeStockUnavailable, i18n.T(lang, i18n.KeyProductOutOfStock),
			gin.H{"product_ids": stockErr.ProductIDs})

	case errors.Is(err, services.ErrProductNotFound):
		utils.NotFoundResponse(c, "product")
	case errors.Is(err, services.ErrOrderNotFound):
		utils.NotFoundResponse(c, "order")
	case errors.Is(err, services.ErrPromoCodeNotFound):
		utils.NotFoundResponse(c, "promo_code")
	case errors.Is(err, services.ErrPromoCodeExists):
		utils.ConflictResponse(c, i18n.T(lang, i18n.KeyPromoCodeExists))
	case errors.Is(err, services.ErrInvalidTransition):
		utils.ErrorResponse(c, http.StatusConflict, CodeInvalidTransition, i18n.T(lang, i18n.KeyOrderInvalidTransition), nil)
	case errors.Is(err, services.ErrInvalidCredentials):
		utils.UnauthorizedResponse(c, i18n.T(lang, i18n.KeyAuthInvalidCredentials))
	case errors.Is(err, services.ErrInvalidWebhookSignature):
		utils.ErrorResponse(c, http.StatusBadRequest, CodeInvalidSignature, i18n.T(lang, i18n.KeyWebhookInvalidSignature), nil)
	case errors.Is(err, services.ErrFileTooLarge):
		utils.ErrorResponse(c, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", i18n.T(lang, i18n.KeyFileTooLarge), nil)
	case errors.Is(err, services.ErrFileTypeInvalid):
		utils.ErrorResponse(c, http.StatusBadRequest, "INVALID_FILE_TYPE", i18n.T(lang, i18n.KeyFileInvalidType), nil)
	case errors.Is(err, services.ErrValidation):
		utils.ErrorResponse(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)

	default:
		logrus.WithError(err).WithFields(logrus.Fields{
			"method": c.Request.Method,
			"path":   c.FullPath(),
		}).Error("Request failed")
		utils.ErrorResponseWithDebug(c, http.StatusInternalServerError, "INTERNAL_ERROR",
			i18n.T(lang, i18n.KeyInternalError), nil, err.Error())
	}
}
