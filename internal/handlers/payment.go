// internal/handlers/payment.go
package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/Makeis02/landingmaj-sub003/internal/i18n"
	"github.com/Makeis02/landingmaj-sub003/internal/services"
	"github.com/Makeis02/landingmaj-sub003/internal/utils"
)

// Stripe payloads are small; anything above is rejected.
const maxWebhookBody = 64 << 10

type PaymentHandler struct {
	checkout *services.CheckoutService
	orders   *services.OrderService
	gateway  services.PaymentGateway
}

func NewPaymentHandler(checkout *services.CheckoutService, orders *services.OrderService, gateway services.PaymentGateway) *PaymentHandler {
	return &PaymentHandler{
		checkout: checkout,
		orders:   orders,
		gateway:  gateway,
	}
}

// POST /checkout
func (h *PaymentHandler) CreateCheckout(c *gin.Context) {
	var req services.CheckoutRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.checkout.CreateCheckoutSession(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, result)
}

// GET /orders/session/:session_id
func (h *PaymentHandler) GetOrderBySession(c *gin.Context) {
	order, err := h.orders.GetOrderBySession(c.Request.Context(), c.Param("session_id"))
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, order)
}

// POST /webhooks/stripe
func (h *PaymentHandler) StripeWebhook(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "payload"), nil)
		return
	}

	event, err := h.gateway.ParseWebhook(payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		logrus.WithError(err).Warn("Rejected Stripe webhook")
		respondError(c, err)
		return
	}

	if err := h.orders.HandleWebhook(c.Request.Context(), event); err != nil {
		// a non-2xx makes Stripe retry the delivery
		logrus.WithError(err).WithFields(logrus.Fields{
			"event_id":   event.ID,
			"event_type": event.Type,
		}).Error("Failed to handle Stripe webhook")
		utils.InternalErrorResponse(c, "")
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}
