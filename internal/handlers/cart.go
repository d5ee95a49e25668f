// internal/handlers/cart.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/Makeis02/landingmaj-sub003/internal/i18n"
	"github.com/Makeis02/landingmaj-sub003/internal/services"
	"github.com/Makeis02/landingmaj-sub003/internal/utils"
)

type CartHandler struct {
	carts      *services.CartService
	promoCodes *services.PromoCodeService
}

func NewCartHandler(carts *services.CartService, promoCodes *services.PromoCodeService) *CartHandler {
	return &CartHandler{
		carts:      carts,
		promoCodes: promoCodes,
	}
}

type AddCartItemRequest struct {
	Cart services.Cart             `json:"cart"`
	Item services.AddToCartRequest `json:"item"`
}

// POST /cart/items
func (h *CartHandler) AddItem(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	var req AddCartItemRequest
	if !bindJSON(c, &req) {
		return
	}

	item, err := h.carts.AddItem(c.Request.Context(), &req.Cart, req.Item)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message":  i18n.T(lang, i18n.KeyCartItemAdded),
		"item":     item,
		"cart":     req.Cart,
		"subtotal": req.Cart.PayableSubtotal(),
	})
}

// POST /apply-promo
func (h *CartHandler) ApplyPromo(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	var req services.ApplyPromoRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.promoCodes.Apply(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	if result.Valid {
		result.Message = i18n.T(lang, i18n.KeyPromoApplied, result.Discount.StringFixed(2))
	} else {
		result.Message = i18n.T(lang, i18n.KeyPromoRejected, promoReasonMessage(lang, result.Reason))
	}

	utils.SuccessResponse(c, result)
}
