// internal/services/promotion_service.go
package services

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/Makeis02/landingmaj-sub003/internal/models"
	"github.com/Makeis02/landingmaj-sub003/internal/utils"
)

type ActivatePromotionRequest struct {
	ProductID  string          `json:"product_id" validate:"required"`
	Variant    *models.Variant `json:"variant,omitempty"`
	Percentage decimal.Decimal `json:"percentage" validate:"percentage"`
}

type DeactivatePromotionRequest struct {
	ProductID string          `json:"product_id" validate:"required"`
	Variant   *models.Variant `json:"variant,omitempty"`
}

type CheckPromotionsRequest struct {
	ProductIDs []string `json:"product_ids" validate:"required,min=1,max=200"`
}

// PromotionService turns percentage promotions on and off. Each activation
// creates a fresh processor price; promotional prices are never reused.
type PromotionService struct {
	store    *PriceStore
	resolver *DiscountResolver
	gateway  PaymentGateway
	cache    PromotionCache
	currency string
	log      *logrus.Entry
}

func NewPromotionService(store *PriceStore, resolver *DiscountResolver, gateway PaymentGateway, cache PromotionCache, currency string) *PromotionService {
	if cache == nil {
		cache = noopPromotionCache{}
	}
	return &PromotionService{
		store:    store,
		resolver: resolver,
		gateway:  gateway,
		cache:    cache,
		currency: currency,
		log:      logrus.WithField("component", "promotions"),
	}
}

// Activate discounts the catalog price of a product or variant by
// req.Percentage and returns the new effective price.
func (s *PromotionService) Activate(ctx context.Context, req *ActivatePromotionRequest) (*PriceResolution, error) {
	hundred := decimal.NewFromInt(100)
	if !req.Percentage.IsPositive() || !req.Percentage.LessThan(hundred) {
		return nil, fmt.Errorf("%w: percentage must be between 0 and 100", ErrValidation)
	}

	current, err := s.resolver.ResolvePrice(ctx, req.ProductID, req.Variant)
	if err != nil {
		return nil, err
	}
	base := current.Price
	if current.OriginalPrice != nil {
		base = *current.OriginalPrice
	}

	amount := utils.ApplyPercentage(base, req.Percentage)
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: discounted price must stay above zero", ErrValidation)
	}

	suffix, err := utils.GenerateLookupSuffix()
	if err != nil {
		return nil, fmt.Errorf("failed to generate lookup key: %w", err)
	}
	lookupKey := models.PromoLookupKey(req.ProductID, req.Variant, suffix)

	priceID, err := s.gateway.CreatePrice(ctx, &PriceInput{
		ProductID: req.ProductID,
		Amount:    amount,
		Currency:  current.Currency,
		LookupKey: lookupKey,
		Nickname:  fmt.Sprintf("-%s%%", req.Percentage.String()),
	})
	if err != nil {
		return nil, err
	}

	label, value := variantColumns(req.Variant)
	rec := &models.PriceRecord{
		ProductID:     req.ProductID,
		StripePriceID: priceID,
		LookupKey:     lookupKey,
		VariantLabel:  label,
		VariantValue:  value,
		IsDiscount:    true,
		Active:        true,
		UnitAmount:    amount,
		Currency:      current.Currency,
	}
	if err := s.store.UpsertPriceRecord(ctx, rec); err != nil {
		return nil, err
	}

	if err := s.store.UpsertContent(ctx, models.ContentKeyFor(req.ProductID, req.Variant, models.FieldDiscountPercentage), req.Percentage.String()); err != nil {
		return nil, err
	}
	if err := s.store.UpsertContent(ctx, models.ContentKeyFor(req.ProductID, req.Variant, models.FieldStripeDiscountPriceID), priceID); err != nil {
		return nil, err
	}

	s.retirePrices(ctx, req.ProductID, req.Variant, lookupKey)
	s.invalidate(ctx, req.ProductID)

	s.log.WithFields(logrus.Fields{
		"product_id": req.ProductID,
		"variant":    req.Variant.String(),
		"percentage": req.Percentage.String(),
		"price":      amount.String(),
		"price_id":   priceID,
	}).Info("Promotion activated")

	return s.resolver.ResolvePrice(ctx, req.ProductID, req.Variant)
}

// Deactivate clears the promotion of a product or variant and returns the
// price that applies afterwards.
func (s *PromotionService) Deactivate(ctx context.Context, req *DeactivatePromotionRequest) (*PriceResolution, error) {
	if err := s.store.UpsertContent(ctx, models.ContentKeyFor(req.ProductID, req.Variant, models.FieldDiscountPercentage), "0"); err != nil {
		return nil, err
	}
	if err := s.store.UpsertContent(ctx, models.ContentKeyFor(req.ProductID, req.Variant, models.FieldStripeDiscountPriceID), ""); err != nil {
		return nil, err
	}

	s.retirePrices(ctx, req.ProductID, req.Variant, "")
	s.invalidate(ctx, req.ProductID)

	s.log.WithFields(logrus.Fields{
		"product_id": req.ProductID,
		"variant":    req.Variant.String(),
	}).Info("Promotion deactivated")

	return s.resolver.ResolvePrice(ctx, req.ProductID, req.Variant)
}

// Check reports, per product, whether any promotion is active.
func (s *PromotionService) Check(ctx context.Context, productIDs []string) (map[string]bool, error) {
	return s.resolver.CheckMultiplePromotions(ctx, productIDs)
}

// retirePrices deactivates the discount records other than keepLookupKey and
// their processor prices. Processor failures are logged only; the local
// record is what the resolver reads.
func (s *PromotionService) retirePrices(ctx context.Context, productID string, variant *models.Variant, keepLookupKey string) {
	old, err := s.store.DeactivatePriceRecords(ctx, productID, variant, true, keepLookupKey)
	if err != nil {
		s.log.WithError(err).WithField("product_id", productID).Error("Failed to deactivate previous promotional prices")
		return
	}
	for _, rec := range old {
		if err := s.gateway.DeactivatePrice(ctx, rec.StripePriceID); err != nil {
			s.log.WithError(err).WithField("price_id", rec.StripePriceID).Warn("Processor price left active")
		}
	}
}

func (s *PromotionService) invalidate(ctx context.Context, productID string) {
	if err := s.cache.Invalidate(ctx, productID); err != nil {
		s.log.WithError(err).WithField("product_id", productID).Warn("Failed to invalidate promotion cache")
	}
}
