// internal/handlers/product.go
package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Makeis02/landingmaj-sub003/internal/i18n"
	"github.com/Makeis02/landingmaj-sub003/internal/models"
	"github.com/Makeis02/landingmaj-sub003/internal/services"
	"github.com/Makeis02/landingmaj-sub003/internal/utils"
)

type ProductHandler struct {
	resolver   *services.DiscountResolver
	promotions *services.PromotionService
	catalog    *services.CatalogService
}

func NewProductHandler(resolver *services.DiscountResolver, promotions *services.PromotionService, catalog *services.CatalogService) *ProductHandler {
	return &ProductHandler{
		resolver:   resolver,
		promotions: promotions,
		catalog:    catalog,
	}
}

// variantFromQuery reads ?variant_index=&variant_label=&variant_value=.
func variantFromQuery(c *gin.Context) *models.Variant {
	label, value := c.Query("variant_label"), c.Query("variant_value")
	if label == "" || value == "" {
		return nil
	}
	index, _ := strconv.Atoi(c.DefaultQuery("variant_index", "0"))
	return &models.Variant{Index: index, Label: label, Value: value}
}

// GET /products/:id/price
func (h *ProductHandler) GetPrice(c *gin.Context) {
	res, err := h.resolver.ResolvePrice(c.Request.Context(), c.Param("id"), variantFromQuery(c))
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, res)
}

// POST /products/promotions
func (h *ProductHandler) CheckPromotions(c *gin.Context) {
	var req services.CheckPromotionsRequest
	if !bindJSON(c, &req) {
		return
	}

	flags, err := h.promotions.Check(c.Request.Context(), req.ProductIDs)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"promotions": flags})
}

// GET /admin/products
func (h *ProductHandler) ListProducts(c *gin.Context) {
	params := utils.GetPaginationParams(c)

	products, total, err := h.catalog.ListProducts(c.Request.Context(), params)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.PaginatedResponse(c, utils.CreatePaginationResult(products, total, params))
}

// GET /admin/products/:id
func (h *ProductHandler) GetProduct(c *gin.Context) {
	product, err := h.catalog.GetProduct(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, product)
}

// PUT /admin/products
func (h *ProductHandler) UpsertProduct(c *gin.Context) {
	var req services.UpsertProductRequest
	if !bindJSON(c, &req) {
		return
	}

	product, err := h.catalog.UpsertProduct(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, product)
}

// POST /admin/products/:id/price
func (h *ProductHandler) SyncPrice(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	var req services.SyncPriceRequest
	if !bindJSON(c, &req) {
		return
	}

	record, err := h.catalog.SyncBasePrice(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyPriceSynced),
		"price":   record,
	})
}

// PUT /admin/products/:id/stock
func (h *ProductHandler) SetStock(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	var req services.SetStockRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := h.catalog.SetStock(c.Request.Context(), c.Param("id"), &req); err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"message": i18n.T(lang, i18n.KeyStockUpdated)})
}

// POST /admin/products/:id/image
func (h *ProductHandler) UploadImage(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	file, header, err := c.Request.FormFile("image")
	if err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationRequired, "image"), nil)
		return
	}
	defer file.Close()

	result, err := h.catalog.UploadProductImage(c.Request.Context(), c.Param("id"), file, header)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.CreatedResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyProductImageUploaded),
		"image":   result,
	})
}

// POST /admin/promotions/activate
func (h *ProductHandler) ActivatePromotion(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	var req services.ActivatePromotionRequest
	if !bindJSON(c, &req) {
		return
	}

	res, err := h.promotions.Activate(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyPromotionActivated),
		"price":   res,
	})
}

// POST /admin/promotions/deactivate
func (h *ProductHandler) DeactivatePromotion(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	var req services.DeactivatePromotionRequest
	if !bindJSON(c, &req) {
		return
	}

	res, err := h.promotions.Deactivate(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyPromotionDeactivated),
		"price":   res,
	})
}
