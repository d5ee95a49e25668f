// internal/handlers/admin.go
package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Makeis02/landingmaj-sub003/internal/i18n"
	"github.com/Makeis02/landingmaj-sub003/internal/services"
	"github.com/Makeis02/landingmaj-sub003/internal/utils"
)

// AdminHandler serves promo code and order management.
type AdminHandler struct {
	promoCodes *services.PromoCodeService
	orders     *services.OrderService
}

func NewAdminHandler(promoCodes *services.PromoCodeService, orders *services.OrderService) *AdminHandler {
	return &AdminHandler{
		promoCodes: promoCodes,
		orders:     orders,
	}
}

func parseIDParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		lang := utils.GetLangFromContext(c)
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "id"), nil)
		return uuid.Nil, false
	}
	return id, true
}

// GET /admin/promo-codes
func (h *AdminHandler) ListPromoCodes(c *gin.Context) {
	params := utils.GetPaginationParams(c)

	codes, total, err := h.promoCodes.List(c.Request.Context(), params)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.PaginatedResponse(c, utils.CreatePaginationResult(codes, total, params))
}

// POST /admin/promo-codes
func (h *AdminHandler) CreatePromoCode(c *gin.Context) {
	var req services.CreatePromoCodeRequest
	if !bindJSON(c, &req) {
		return
	}

	promo, err := h.promoCodes.Create(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.CreatedResponse(c, promo)
}

// GET /admin/promo-codes/:id
func (h *AdminHandler) GetPromoCode(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	promo, err := h.promoCodes.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, promo)
}

// PATCH /admin/promo-codes/:id
func (h *AdminHandler) UpdatePromoCode(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	var req services.UpdatePromoCodeRequest
	if !bindJSON(c, &req) {
		return
	}

	promo, err := h.promoCodes.Update(c.Request.Context(), id, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, promo)
}

// DELETE /admin/promo-codes/:id
func (h *AdminHandler) DeactivatePromoCode(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	if err := h.promoCodes.Deactivate(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"id": id, "is_active": false})
}

// GET /admin/orders
func (h *AdminHandler) ListOrders(c *gin.Context) {
	params := utils.GetPaginationParams(c)

	orders, total, err := h.orders.ListOrders(c.Request.Context(), params)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.PaginatedResponse(c, utils.CreatePaginationResult(orders, total, params))
}

// GET /admin/orders/:id
func (h *AdminHandler) GetOrder(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	order, err := h.orders.GetOrder(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, order)
}

// POST /admin/orders/:id/fulfill
func (h *AdminHandler) FulfillOrder(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	order, err := h.orders.MarkFulfilled(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyOrderFulfilled),
		"order":   order,
	})
}

// POST /admin/orders/:id/refund
func (h *AdminHandler) RefundOrder(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	var req services.RefundOrderRequest
	if !bindJSON(c, &req) {
		return
	}

	order, err := h.orders.Refund(c.Request.Context(), id, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyOrderRefunded),
		"order":   order,
	})
}
