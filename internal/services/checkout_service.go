// internal/services/checkout_service.go
package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/Makeis02/landingmaj-sub003/internal/config"
	"github.com/Makeis02/landingmaj-sub003/internal/models"
	"github.com/Makeis02/landingmaj-sub003/internal/utils"
)

type CheckoutRequest struct {
	Items             []models.CartLineItem  `json:"items" validate:"dive"`
	ShippingInfo      map[string]interface{} `json:"shipping_info,omitempty"`
	PromoCode         string                 `json:"promo_code,omitempty" validate:"max=50"`
	RequireValidPromo bool                   `json:"require_valid_promo"`
	CustomerEmail     string                 `json:"customer_email,omitempty" validate:"omitempty,email"`
}

type CheckoutResult struct {
	URL         string            `json:"url"`
	SessionID   string            `json:"session_id"`
	OrderID     string            `json:"order_id"`
	Subtotal    decimal.Decimal   `json:"subtotal"`
	Discount    decimal.Decimal   `json:"discount"`
	Total       decimal.Decimal   `json:"total"`
	PromoCode   string            `json:"promo_code,omitempty"`
	PromoValid  bool              `json:"promo_valid"`
	PromoReason PromoRejectReason `json:"promo_reason,omitempty"`
}

// pricedLine is a payable cart line after server-side repricing.
type pricedLine struct {
	item          models.CartLineItem
	chargedID     string
	lineCents     int64
	discountCents int64
}

func (l *pricedLine) chargedCents() int64 {
	return l.lineCents - l.discountCents
}

type CheckoutService struct {
	store      *PriceStore
	resolver   *DiscountResolver
	promoCodes *PromoCodeService
	orders     *OrderService
	gateway    PaymentGateway
	payment    config.PaymentConfig
	pendingTTL time.Duration
	log        *logrus.Entry
	now        func() time.Time
}

func NewCheckoutService(
	store *PriceStore,
	resolver *DiscountResolver,
	promoCodes *PromoCodeService,
	orders *OrderService,
	gateway PaymentGateway,
	payment config.PaymentConfig,
	checkout config.CheckoutConfig,
) *CheckoutService {
	return &CheckoutService{
		store:      store,
		resolver:   resolver,
		promoCodes: promoCodes,
		orders:     orders,
		gateway:    gateway,
		payment:    payment,
		pendingTTL: time.Duration(checkout.PendingOrderTTL) * time.Minute,
		log:        logrus.WithField("component", "checkout"),
		now:        time.Now,
	}
}

// CreateCheckoutSession reprices the cart, applies the promo code, records a
// pending order and opens a payment session for it. The amount charged always
// equals subtotal minus discount to the cent.
func (s *CheckoutService) CreateCheckoutSession(ctx context.Context, req *CheckoutRequest) (*CheckoutResult, error) {
	var payable, gifts []models.CartLineItem
	for _, item := range req.Items {
		if item.IsPayable() {
			payable = append(payable, item)
		} else {
			gifts = append(gifts, item)
		}
	}
	if len(payable) == 0 {
		return nil, ErrEmptyPayableCart
	}

	lines, err := s.reprice(ctx, payable)
	if err != nil {
		return nil, err
	}

	if err := s.checkStock(ctx, req.Items); err != nil {
		return nil, err
	}

	var subtotalCents int64
	repriced := make([]models.CartLineItem, 0, len(lines))
	for _, l := range lines {
		subtotalCents += l.lineCents
		repriced = append(repriced, l.item)
	}

	result := &CheckoutResult{PromoCode: models.NormalizePromoCode(req.PromoCode)}
	var eval *PromoEvaluation
	if result.PromoCode != "" {
		eval, err = s.promoCodes.Evaluate(ctx, result.PromoCode, repriced)
		if err != nil {
			return nil, err
		}
		result.PromoValid = eval.Valid
		result.PromoReason = eval.Reason
		if !eval.Valid {
			if req.RequireValidPromo {
				return nil, eval.Err(result.PromoCode)
			}
			s.log.WithFields(logrus.Fields{
				"promo_code": result.PromoCode,
				"reason":     eval.Reason,
			}).Info("Promo code ignored at checkout")
		}
	}

	var discountCents int64
	if eval != nil && eval.Valid {
		discountCents = utils.ToCents(eval.Discount)
		distributeDiscount(lines, eval.EligibleLines, discountCents)
	}

	result.Subtotal = utils.FromCents(subtotalCents)
	result.Discount = utils.FromCents(discountCents)
	result.Total = utils.FromCents(subtotalCents - discountCents)

	minimum := decimal.NewFromFloat(s.payment.MinimumCharge)
	if result.Total.LessThan(minimum) {
		return nil, &BelowMinimumChargeError{Total: result.Total, Minimum: minimum}
	}

	order := s.buildOrder(req, lines, gifts, result)
	if eval != nil && eval.Valid {
		order.PromoCodeID = &eval.PromoCode.ID
		order.PromoCode = eval.PromoCode.Code
	}
	if err := s.orders.CreatePending(ctx, order); err != nil {
		return nil, err
	}
	result.OrderID = order.ID.String()

	log := s.log.WithFields(logrus.Fields{
		"order_id": result.OrderID,
		"subtotal": result.Subtotal.String(),
		"discount": result.Discount.String(),
		"total":    result.Total.String(),
	})

	input := &CheckoutSessionInput{
		OrderID:       result.OrderID,
		Currency:      order.Currency,
		Lines:         sessionLines(lines, discountCents > 0),
		CustomerEmail: req.CustomerEmail,
		Metadata:      sessionMetadata(order, gifts, req.ShippingInfo),
		SuccessURL:    s.payment.SuccessURL,
		CancelURL:     s.payment.CancelURL,
	}
	if s.pendingTTL > 0 {
		input.ExpiresAt = s.now().Add(s.pendingTTL)
	}

	out, err := s.gateway.CreateCheckoutSession(ctx, input)
	if err != nil {
		log.WithError(err).Error("Payment session creation failed, order left pending")
		return nil, &PaymentSessionCreationError{OrderID: result.OrderID, Cause: err}
	}

	if err := s.orders.AttachSession(ctx, order.ID, out.ID); err != nil {
		log.WithError(err).Error("Failed to attach payment session to order")
		return nil, err
	}

	result.URL = out.URL
	result.SessionID = out.ID
	log.WithField("session_id", out.ID).Info("Checkout session created")
	return result, nil
}

// reprice resolves every payable line on the server. A line without price
// configuration keeps its snapshot when that snapshot can still be charged;
// otherwise all such lines are reported together.
func (s *CheckoutService) reprice(ctx context.Context, payable []models.CartLineItem) ([]*pricedLine, error) {
	lines := make([]*pricedLine, 0, len(payable))
	var missing []string

	for _, item := range payable {
		res, err := s.resolver.ResolvePrice(ctx, item.ProductID, item.Variant)
		var cfgErr *ConfigurationError
		switch {
		case err == nil:
			if !item.UnitPrice.IsZero() && !item.UnitPrice.Equal(res.Price) {
				s.log.WithFields(logrus.Fields{
					"product_id":     item.ProductID,
					"snapshot_price": item.UnitPrice.String(),
					"resolved_price": res.Price.String(),
				}).Info("Cart snapshot price outdated, using resolved price")
			}
			item.UnitPrice = res.Price
			item.Currency = res.Currency
			item.StripePriceID = res.StripePriceID
			item.StripeDiscountPriceID = res.StripeDiscountPriceID
			item.HasDiscount = res.HasDiscountApplied
			if item.Title == "" {
				item.Title = res.Title
			}
			lines = append(lines, &pricedLine{item: item, chargedID: res.ChargedPriceID()})

		case errors.As(err, &cfgErr):
			if !item.UnitPrice.IsPositive() || (item.StripePriceID == "" && !item.HasDynamicPriceData()) {
				missing = append(missing, lineID(item))
				continue
			}
			chargedID := item.StripePriceID
			if item.HasDiscount && item.StripeDiscountPriceID != "" {
				chargedID = item.StripeDiscountPriceID
			}
			if item.Currency == "" {
				item.Currency = s.payment.Currency
			}
			s.log.WithField("product_id", item.ProductID).Warn("No price configuration, charging cart snapshot")
			lines = append(lines, &pricedLine{item: item, chargedID: chargedID})

		default:
			return nil, err
		}
	}

	if len(missing) > 0 {
		return nil, &MissingPriceConfigurationError{ItemIDs: missing}
	}

	for _, l := range lines {
		l.lineCents = utils.ToCents(l.item.LineTotal())
	}
	return lines, nil
}

// checkStock compares the summed quantity per product variant, gifts
// included, against the stock annotations.
func (s *CheckoutService) checkStock(ctx context.Context, items []models.CartLineItem) error {
	wanted := make(map[string]int)
	var queries []StockQuery
	for _, item := range items {
		q := StockQuery{ProductID: item.ProductID, Variant: item.Variant}
		if _, seen := wanted[q.Key()]; !seen {
			queries = append(queries, q)
		}
		wanted[q.Key()] += item.Quantity
	}

	levels, err := s.store.StockLevels(ctx, queries)
	if err != nil {
		return err
	}

	var short []string
	for _, q := range queries {
		if stock, limited := levels[q.Key()]; limited && wanted[q.Key()] > stock {
			short = append(short, q.ProductID)
		}
	}
	if len(short) > 0 {
		return &StockUnavailableError{ProductIDs: uniqueStrings(short)}
	}
	return nil
}

// distributeDiscount spreads discountCents over the eligible lines in
// proportion to their totals. The last eligible line takes the rounding
// remainder and no line is discounted below zero.
func distributeDiscount(lines []*pricedLine, eligible []int, discountCents int64) {
	var targets []*pricedLine
	var eligibleCents int64
	for _, i := range eligible {
		if l := lines[i]; l.lineCents > 0 {
			targets = append(targets, l)
			eligibleCents += l.lineCents
		}
	}
	if len(targets) == 0 || discountCents <= 0 {
		return
	}
	if discountCents > eligibleCents {
		discountCents = eligibleCents
	}

	var assigned int64
	for i, l := range targets {
		if i == len(targets)-1 {
			l.discountCents = discountCents - assigned
			break
		}
		l.discountCents = discountCents * l.lineCents / eligibleCents
		assigned += l.discountCents
	}

	// the remainder can exceed a small last line; move the excess back
	var overflow int64
	for _, l := range targets {
		if l.discountCents > l.lineCents {
			overflow += l.discountCents - l.lineCents
			l.discountCents = l.lineCents
		}
	}
	for i := len(targets) - 1; i >= 0 && overflow > 0; i-- {
		room := targets[i].lineCents - targets[i].discountCents
		if room > overflow {
			room = overflow
		}
		targets[i].discountCents += room
		overflow -= room
	}
}

// sessionLines builds the processor lines. With a promo discount each line
// is charged inline at its discounted amount; a line whose amount does not
// divide evenly by its quantity is split in two so the cents add up.
func sessionLines(lines []*pricedLine, discounted bool) []SessionLine {
	out := make([]SessionLine, 0, len(lines))
	for _, l := range lines {
		qty := int64(l.item.Quantity)
		base := SessionLine{Name: lineName(l.item), ImageURL: l.item.ImageURL}

		if !discounted && l.chargedID != "" {
			base.PriceID = l.chargedID
			base.Quantity = qty
			out = append(out, base)
			continue
		}

		charged := l.chargedCents()
		unit, rem := charged/qty, charged%qty
		if rem > 0 {
			hi := base
			hi.UnitAmountCents = unit + 1
			hi.Quantity = rem
			out = append(out, hi)
		}
		if unit > 0 && qty-rem > 0 {
			lo := base
			lo.UnitAmountCents = unit
			lo.Quantity = qty - rem
			out = append(out, lo)
		}
	}
	return out
}

func lineName(item models.CartLineItem) string {
	name := item.Title
	if name == "" {
		name = item.ProductID
	}
	if item.Variant != nil {
		name += " (" + item.Variant.Value + ")"
	}
	return name
}

func (s *CheckoutService) buildOrder(req *CheckoutRequest, lines []*pricedLine, gifts []models.CartLineItem, result *CheckoutResult) *models.Order {
	currency := s.payment.Currency
	if len(lines) > 0 && lines[0].item.Currency != "" {
		currency = lines[0].item.Currency
	}

	order := &models.Order{
		Currency:      currency,
		Subtotal:      result.Subtotal,
		Discount:      result.Discount,
		Total:         result.Total,
		CustomerEmail: req.CustomerEmail,
	}
	if len(req.ShippingInfo) > 0 {
		order.ShippingInfo = models.JSONB(req.ShippingInfo)
	}
	if len(gifts) > 0 {
		order.GiftItems = models.JSONB{"items": giftSummaries(gifts)}
	}

	for _, l := range lines {
		label, value := variantColumns(l.item.Variant)
		order.Items = append(order.Items, models.OrderItem{
			CartItemID:            l.item.ID,
			ProductID:             l.item.ProductID,
			Title:                 l.item.Title,
			VariantLabel:          label,
			VariantValue:          value,
			Quantity:              l.item.Quantity,
			UnitPrice:             l.item.UnitPrice,
			LineDiscount:          utils.FromCents(l.discountCents),
			ChargedAmount:         utils.FromCents(l.chargedCents()),
			StripePriceID:         l.item.StripePriceID,
			StripeDiscountPriceID: l.item.StripeDiscountPriceID,
		})
	}
	return order
}

func giftSummaries(gifts []models.CartLineItem) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(gifts))
	for _, g := range gifts {
		entry := map[string]interface{}{
			"product_id":     g.ProductID,
			"title":          g.Title,
			"quantity":       g.Quantity,
			"threshold_gift": g.ThresholdGift,
		}
		if g.Variant != nil {
			entry["variant"] = g.Variant.String()
		}
		out = append(out, entry)
	}
	return out
}

// sessionMetadata carries what the processor does not charge for: gifts,
// shipping and the promo code.
func sessionMetadata(order *models.Order, gifts []models.CartLineItem, shipping map[string]interface{}) map[string]string {
	meta := map[string]string{}
	if order.PromoCode != "" {
		meta["promo_code"] = order.PromoCode
		meta["discount"] = order.Discount.StringFixed(2)
	}
	if len(gifts) > 0 {
		if raw, err := json.Marshal(giftSummaries(gifts)); err == nil {
			meta["gift_items"] = string(raw)
		}
	}
	for k, v := range shipping {
		if str, ok := v.(string); ok && str != "" {
			meta["shipping_"+k] = str
		}
	}
	return meta
}
