// internal/services/cart.go
package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/Makeis02/landingmaj-sub003/internal/models"
)

// Cart is the client-held list of line snapshots. The server never stores
// it; handlers receive it, mutate it and send it back.
type Cart struct {
	Items []models.CartLineItem `json:"items"`
}

// Add merges item into an existing line for the same product, variant and
// gift flag, or appends it.
func (c *Cart) Add(item models.CartLineItem) *models.CartLineItem {
	for i := range c.Items {
		if c.Items[i].SameLine(&item) {
			c.Items[i].Quantity += item.Quantity
			return &c.Items[i]
		}
	}
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	c.Items = append(c.Items, item)
	return &c.Items[len(c.Items)-1]
}

// UpdateQuantity sets the quantity of a line; zero or less removes it.
func (c *Cart) UpdateQuantity(itemID string, quantity int) bool {
	if quantity <= 0 {
		return c.Remove(itemID)
	}
	for i := range c.Items {
		if c.Items[i].ID == itemID {
			c.Items[i].Quantity = quantity
			return true
		}
	}
	return false
}

func (c *Cart) Remove(itemID string) bool {
	for i := range c.Items {
		if c.Items[i].ID == itemID {
			c.Items = append(c.Items[:i], c.Items[i+1:]...)
			return true
		}
	}
	return false
}

func (c *Cart) Clear() {
	c.Items = nil
}

// QuantityOf sums the quantities of every line of a product variant, gifts
// included since they consume the same stock.
func (c *Cart) QuantityOf(productID string, variant *models.Variant) int {
	candidate := models.CartLineItem{ProductID: productID, Variant: variant}
	total := 0
	for i := range c.Items {
		gift := c.Items[i]
		gift.IsGift, gift.ThresholdGift = false, false
		if gift.SameLine(&candidate) {
			total += c.Items[i].Quantity
		}
	}
	return total
}

func (c *Cart) PayableSubtotal() decimal.Decimal {
	total := decimal.Zero
	for i := range c.Items {
		if c.Items[i].IsPayable() {
			total = total.Add(c.Items[i].LineTotal())
		}
	}
	return total
}

type AddToCartRequest struct {
	ProductID     string          `json:"product_id" validate:"required"`
	Variant       *models.Variant `json:"variant,omitempty"`
	Quantity      int             `json:"quantity" validate:"required,min=1,max=99"`
	ImageURL      string          `json:"image_url,omitempty"`
	IsGift        bool            `json:"is_gift"`
	ThresholdGift bool            `json:"threshold_gift"`
}

type CartService struct {
	store    *PriceStore
	resolver *DiscountResolver
	log      *logrus.Entry
}

func NewCartService(store *PriceStore, resolver *DiscountResolver) *CartService {
	return &CartService{
		store:    store,
		resolver: resolver,
		log:      logrus.WithField("component", "cart"),
	}
}

// BuildLineItem resolves the price of the requested product and returns the
// snapshot to store in the cart. A product without a usable price or without
// enough stock is refused.
func (s *CartService) BuildLineItem(ctx context.Context, req AddToCartRequest) (*models.CartLineItem, error) {
	item := &models.CartLineItem{
		ID:            uuid.NewString(),
		ProductID:     req.ProductID,
		Quantity:      req.Quantity,
		ImageURL:      req.ImageURL,
		Variant:       req.Variant,
		IsGift:        req.IsGift,
		ThresholdGift: req.ThresholdGift,
	}

	if !item.IsPayable() {
		// gifts are free; only the title is needed for display
		if product, err := s.store.GetProduct(ctx, req.ProductID); err == nil {
			item.Title = product.Title
			if item.ImageURL == "" {
				item.ImageURL = product.ImageURL
			}
		}
		return item, nil
	}

	res, err := s.resolver.ResolvePrice(ctx, req.ProductID, req.Variant)
	if err != nil {
		return nil, err
	}

	item.Title = res.Title
	item.UnitPrice = res.Price
	item.Currency = res.Currency
	item.StripePriceID = res.StripePriceID
	item.StripeDiscountPriceID = res.StripeDiscountPriceID
	item.HasDiscount = res.HasDiscountApplied
	if res.OriginalPrice != nil {
		item.OriginalPrice = decimal.NewNullDecimal(*res.OriginalPrice)
	}
	if res.DiscountPercentage != nil {
		item.DiscountPercentage = decimal.NewNullDecimal(*res.DiscountPercentage)
	}

	if item.ImageURL == "" {
		if product, err := s.store.GetProduct(ctx, req.ProductID); err == nil {
			item.ImageURL = product.ImageURL
		}
	}

	return item, nil
}

// AddItem builds the line, checks stock against what the cart already holds
// and merges it into cart.
func (s *CartService) AddItem(ctx context.Context, cart *Cart, req AddToCartRequest) (*models.CartLineItem, error) {
	item, err := s.BuildLineItem(ctx, req)
	if err != nil {
		return nil, err
	}

	q := StockQuery{ProductID: req.ProductID, Variant: req.Variant}
	levels, err := s.store.StockLevels(ctx, []StockQuery{q})
	if err != nil {
		return nil, err
	}
	if stock, limited := levels[q.Key()]; limited && cart.QuantityOf(req.ProductID, req.Variant)+req.Quantity > stock {
		s.log.WithFields(logrus.Fields{
			"product_id": req.ProductID,
			"variant":    req.Variant.String(),
			"stock":      stock,
		}).Info("Add to cart refused, insufficient stock")
		return nil, &StockUnavailableError{ProductIDs: []string{req.ProductID}}
	}

	return cart.Add(*item), nil
}
