// internal/services/discount_resolver.go
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/Makeis02/landingmaj-sub003/internal/models"
	"github.com/Makeis02/landingmaj-sub003/internal/utils"
)

// Resolution tiers, in precedence order.
const (
	TierPromotion   = 1 // discount price record with a positive annotation
	TierLoweredBase = 2 // discount price record without annotation, it is the new base
	TierCatalog     = 3 // catalog price record or stripe_price_id content
)

type PriceResolution struct {
	ProductID             string           `json:"product_id"`
	Variant               *models.Variant  `json:"variant,omitempty"`
	Title                 string           `json:"title,omitempty"`
	Currency              string           `json:"currency"`
	Price                 decimal.Decimal  `json:"price"`
	OriginalPrice         *decimal.Decimal `json:"original_price,omitempty"`
	DiscountPercentage    *decimal.Decimal `json:"discount_percentage,omitempty"`
	StripePriceID         string           `json:"stripe_price_id"`
	StripeDiscountPriceID string           `json:"stripe_discount_price_id,omitempty"`
	HasDiscountApplied    bool             `json:"has_discount_applied"`
	Tier                  int              `json:"-"`
}

// ChargedPriceID is the processor price that must be charged.
func (r *PriceResolution) ChargedPriceID() string {
	if r.HasDiscountApplied && r.StripeDiscountPriceID != "" {
		return r.StripeDiscountPriceID
	}
	return r.StripePriceID
}

type DiscountResolver struct {
	store    *PriceStore
	cache    PromotionCache
	currency string
	log      *logrus.Entry
}

func NewDiscountResolver(store *PriceStore, cache PromotionCache, currency string) *DiscountResolver {
	if cache == nil {
		cache = noopPromotionCache{}
	}
	return &DiscountResolver{
		store:    store,
		cache:    cache,
		currency: currency,
		log:      logrus.WithField("component", "discount_resolver"),
	}
}

// basePrice is the non-promotional price of a product or variant.
type basePrice struct {
	stripePriceID string
	amount        decimal.Decimal
	currency      string
	variantScope  bool
}

// ResolvePrice returns the single effective price of a product, or of one of
// its variants. It only reads.
func (r *DiscountResolver) ResolvePrice(ctx context.Context, productID string, variant *models.Variant) (*PriceResolution, error) {
	if productID == "" {
		return nil, fmt.Errorf("%w: empty product id", ErrProductNotFound)
	}

	log := r.log.WithFields(logrus.Fields{"product_id": productID, "variant": variant.String()})

	product, err := r.store.GetProduct(ctx, productID)
	if err != nil && !errors.Is(err, ErrProductNotFound) {
		return nil, err
	}

	contents, err := r.store.GetContents(ctx, resolverContentKeys(productID, variant))
	if err != nil {
		return nil, err
	}
	log.WithField("keys", len(contents)).Debug("Price store content loaded")

	pct, hasPct := discountAnnotation(contents, productID, variant)

	base, err := r.resolveBase(ctx, log, product, contents, productID, variant)
	if err != nil {
		return nil, err
	}

	// A product-level promotion never applies over a variant-specific price.
	discountScope := variant
	discountRec, err := r.store.ActivePriceRecord(ctx, productID, variant, true)
	if err != nil {
		return nil, err
	}
	if discountRec == nil && variant != nil && (base == nil || !base.variantScope) {
		discountScope = nil
		if discountRec, err = r.store.ActivePriceRecord(ctx, productID, nil, true); err != nil {
			return nil, err
		}
		// a variant explicitly annotated without discount opts out of it
		if discountRec != nil && !hasPct && hasVariantAnnotation(contents, productID, variant) {
			discountRec = nil
		}
	}
	log.WithFields(logrus.Fields{
		"discount_record":  discountRec != nil,
		"discount_scope":   discountScope.String(),
		"annotation_found": hasPct,
	}).Debug("Discount price record lookup")

	legacyID := legacyDiscountPriceID(contents, productID, variant)
	legacyAmount, legacyCurrency, legacyPriced := r.contentPrice(product, contents, productID, variant)

	res := &PriceResolution{
		ProductID: productID,
		Variant:   variant,
		Currency:  r.currency,
	}
	if product != nil {
		res.Title = product.Title
	}

	switch {
	case discountRec != nil && hasPct && base != nil:
		res.Tier = TierPromotion
		res.Price = discountRec.UnitAmount
		res.Currency = discountRec.Currency
		res.OriginalPrice = decimalPtr(base.amount)
		res.DiscountPercentage = decimalPtr(pct)
		res.StripePriceID = base.stripePriceID
		res.StripeDiscountPriceID = discountRec.StripePriceID
		res.HasDiscountApplied = true

		if !res.Price.LessThan(base.amount) {
			log.WithFields(logrus.Fields{
				"price":          res.Price.String(),
				"original_price": base.amount.String(),
			}).Warn("Promotional price is not below the catalog price")
		}

	case discountRec == nil && hasPct && base != nil && legacyID != "":
		// discount price id written directly into the content table
		res.Tier = TierPromotion
		res.Price = utils.ApplyPercentage(base.amount, pct)
		res.Currency = base.currency
		res.OriginalPrice = decimalPtr(base.amount)
		res.DiscountPercentage = decimalPtr(pct)
		res.StripePriceID = base.stripePriceID
		res.StripeDiscountPriceID = legacyID
		res.HasDiscountApplied = true

	case discountRec != nil:
		if hasPct {
			log.Warn("Promotion has no catalog price, treating discount price as base")
		}
		res.Tier = TierLoweredBase
		res.Price = discountRec.UnitAmount
		res.Currency = discountRec.Currency
		res.StripePriceID = discountRec.StripePriceID

	case discountRec == nil && !hasPct && legacyID != "" && legacyPriced:
		// a discount price id left without annotation replaced the catalog price
		res.Tier = TierLoweredBase
		res.Price = legacyAmount
		res.Currency = legacyCurrency
		res.StripePriceID = legacyID

	case base != nil:
		res.Tier = TierCatalog
		res.Price = base.amount
		res.Currency = base.currency
		res.StripePriceID = base.stripePriceID

	default:
		log.Warn("No usable price configured")
		return nil, &ConfigurationError{ProductID: productID, Variant: variant.String()}
	}

	if res.Currency == "" {
		res.Currency = r.currency
	}

	log.WithFields(logrus.Fields{
		"tier":            res.Tier,
		"price":           res.Price.String(),
		"stripe_price_id": res.StripePriceID,
		"discounted":      res.HasDiscountApplied,
	}).Debug("Price resolved")
	return res, nil
}

// resolveBase looks up the catalog price: an active catalog price record
// first (variant, then product), then the stripe_price_id content with the
// price content or the product base price as amount.
func (r *DiscountResolver) resolveBase(ctx context.Context, log *logrus.Entry, product *models.Product, contents map[string]string, productID string, variant *models.Variant) (*basePrice, error) {
	if variant != nil {
		rec, err := r.store.ActivePriceRecord(ctx, productID, variant, false)
		if err != nil {
			return nil, err
		}
		if rec != nil {
			log.WithField("source", "variant_price_record").Debug("Catalog price found")
			return &basePrice{stripePriceID: rec.StripePriceID, amount: rec.UnitAmount, currency: rec.Currency, variantScope: true}, nil
		}
	}

	rec, err := r.store.ActivePriceRecord(ctx, productID, nil, false)
	if err != nil {
		return nil, err
	}

	// a variant-specific content id still beats the product-level record
	variantPriceID := ""
	if variant != nil {
		variantPriceID = contents[models.ContentKeyFor(productID, variant, models.FieldStripePriceID).String()]
	}

	if rec != nil && variantPriceID == "" {
		log.WithField("source", "product_price_record").Debug("Catalog price found")
		return &basePrice{stripePriceID: rec.StripePriceID, amount: rec.UnitAmount, currency: rec.Currency}, nil
	}

	priceID := variantPriceID
	if priceID == "" {
		priceID = contents[models.ProductContentKey(productID, models.FieldStripePriceID).String()]
	}
	if priceID == "" {
		log.Debug("No catalog price id found")
		return nil, nil
	}

	amount, currency, ok := r.contentPrice(product, contents, productID, variant)
	if !ok {
		log.WithField("stripe_price_id", priceID).Debug("Catalog price id has no amount")
		return nil, nil
	}

	log.WithField("source", "content").Debug("Catalog price found")
	return &basePrice{stripePriceID: priceID, amount: amount, currency: currency, variantScope: variantPriceID != ""}, nil
}

// contentPrice is the amount charged for a price id stored in the content
// table: the price content, else the product base price.
func (r *DiscountResolver) contentPrice(product *models.Product, contents map[string]string, productID string, variant *models.Variant) (decimal.Decimal, string, bool) {
	amount, ok := contentAmount(contents, productID, variant)
	if !ok && product != nil && product.BasePrice.IsPositive() {
		amount, ok = product.BasePrice, true
	}
	currency := r.currency
	if product != nil && product.Currency != "" {
		currency = product.Currency
	}
	return amount, currency, ok
}

// CheckMultiplePromotions reports, per product id, whether any global or
// variant discount annotation is positive. Cache misses are resolved with a
// single query and partitioned in memory.
func (r *DiscountResolver) CheckMultiplePromotions(ctx context.Context, productIDs []string) (map[string]bool, error) {
	ids := uniqueStrings(productIDs)
	result := make(map[string]bool, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	cached, err := r.cache.GetMany(ctx, ids)
	if err != nil {
		r.log.WithError(err).Warn("Promotion cache read failed")
		cached = map[string]bool{}
	}

	var missing []string
	for _, id := range ids {
		if active, ok := cached[id]; ok {
			result[id] = active
			continue
		}
		missing = append(missing, id)
	}
	if len(missing) == 0 {
		return result, nil
	}

	rows, err := r.store.FindDiscountAnnotations(ctx, missing)
	if err != nil {
		return nil, err
	}

	computed := make(map[string]bool, len(missing))
	for _, id := range missing {
		computed[id] = false
	}
	for _, row := range rows {
		key, err := models.ParseContentKey(row.ContentKey)
		if err != nil {
			r.log.WithField("content_key", row.ContentKey).Debug("Skipping malformed content key")
			continue
		}
		if key.Field != models.FieldDiscountPercentage {
			continue
		}
		if _, requested := computed[key.ProductID]; !requested {
			continue
		}
		if _, ok := models.ParseDiscountPercentage(row.Content); ok {
			computed[key.ProductID] = true
		}
	}

	if err := r.cache.SetMany(ctx, computed); err != nil {
		r.log.WithError(err).Warn("Promotion cache write failed")
	}

	for id, active := range computed {
		result[id] = active
	}

	r.log.WithFields(logrus.Fields{
		"requested":  len(ids),
		"cache_hits": len(ids) - len(missing),
		"rows":       len(rows),
	}).Debug("Promotions checked")
	return result, nil
}

func (r *DiscountResolver) CheckActivePromotion(ctx context.Context, productID string) (bool, error) {
	flags, err := r.CheckMultiplePromotions(ctx, []string{productID})
	if err != nil {
		return false, err
	}
	return flags[productID], nil
}

func resolverContentKeys(productID string, variant *models.Variant) []models.ContentKey {
	fields := []models.ContentField{
		models.FieldDiscountPercentage,
		models.FieldStripePriceID,
		models.FieldStripeDiscountPriceID,
		models.FieldPrice,
	}

	keys := make([]models.ContentKey, 0, len(fields)*2)
	for _, f := range fields {
		keys = append(keys, models.ProductContentKey(productID, f))
		if variant != nil {
			keys = append(keys, models.ContentKeyFor(productID, variant, f))
		}
	}
	return keys
}

// discountAnnotation applies the per-variant annotation when its row exists,
// the global one otherwise.
func discountAnnotation(contents map[string]string, productID string, variant *models.Variant) (decimal.Decimal, bool) {
	if variant != nil {
		if raw, ok := contents[models.ContentKeyFor(productID, variant, models.FieldDiscountPercentage).String()]; ok {
			return models.ParseDiscountPercentage(raw)
		}
	}
	return models.ParseDiscountPercentage(contents[models.ProductContentKey(productID, models.FieldDiscountPercentage).String()])
}

func hasVariantAnnotation(contents map[string]string, productID string, variant *models.Variant) bool {
	_, ok := contents[models.ContentKeyFor(productID, variant, models.FieldDiscountPercentage).String()]
	return ok
}

func legacyDiscountPriceID(contents map[string]string, productID string, variant *models.Variant) string {
	if variant != nil {
		if id := contents[models.ContentKeyFor(productID, variant, models.FieldStripeDiscountPriceID).String()]; id != "" {
			return id
		}
	}
	return contents[models.ProductContentKey(productID, models.FieldStripeDiscountPriceID).String()]
}

func contentAmount(contents map[string]string, productID string, variant *models.Variant) (decimal.Decimal, bool) {
	keys := []models.ContentKey{models.ProductContentKey(productID, models.FieldPrice)}
	if variant != nil {
		keys = append([]models.ContentKey{models.ContentKeyFor(productID, variant, models.FieldPrice)}, keys...)
	}
	for _, k := range keys {
		if raw, ok := contents[k.String()]; ok {
			if amount, err := decimal.NewFromString(raw); err == nil && amount.IsPositive() {
				return amount, true
			}
		}
	}
	return decimal.Zero, false
}

func decimalPtr(d decimal.Decimal) *decimal.Decimal {
	return &d
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
