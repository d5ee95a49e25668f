// internal/services/payment_gateway.go
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/checkout/session"
	"github.com/stripe/stripe-go/v74/price"
	"github.com/stripe/stripe-go/v74/refund"
	"github.com/stripe/stripe-go/v74/webhook"

	"github.com/Makeis02/landingmaj-sub003/internal/config"
	"github.com/Makeis02/landingmaj-sub003/internal/utils"
)

// Webhook event types handled by the service.
const (
	EventCheckoutCompleted = "checkout.session.completed"
	EventCheckoutExpired   = "checkout.session.expired"
)

// Stripe refuses session expirations closer than 30 minutes.
const minSessionLifetime = 30 * time.Minute

const maxMetadataValue = 500

var ErrInvalidWebhookSignature = errors.New("invalid webhook signature")

// PaymentGateway is the payment processor as seen by the services.
type PaymentGateway interface {
	CreateCheckoutSession(ctx context.Context, in *CheckoutSessionInput) (*CheckoutSessionOutput, error)
	CreatePrice(ctx context.Context, in *PriceInput) (string, error)
	DeactivatePrice(ctx context.Context, priceID string) error
	Refund(ctx context.Context, paymentIntentID string, amount *decimal.Decimal) (string, error)
	ParseWebhook(payload []byte, signature string) (*WebhookEvent, error)
}

// SessionLine is charged either by catalog PriceID or, when PriceID is
// empty, by inline UnitAmountCents.
type SessionLine struct {
	PriceID         string
	Name            string
	ImageURL        string
	UnitAmountCents int64
	Quantity        int64
}

type CheckoutSessionInput struct {
	OrderID       string
	Currency      string
	Lines         []SessionLine
	CustomerEmail string
	Metadata      map[string]string
	SuccessURL    string
	CancelURL     string
	ExpiresAt     time.Time
}

type CheckoutSessionOutput struct {
	ID  string
	URL string
}

type PriceInput struct {
	ProductID string
	Amount    decimal.Decimal
	Currency  string
	LookupKey string
	Nickname  string
	// TransferLookupKey moves LookupKey from the price currently holding it.
	TransferLookupKey bool
}

type WebhookEvent struct {
	ID              string
	Type            string
	SessionID       string
	OrderID         string
	PaymentIntentID string
	CustomerEmail   string
}

type StripeGateway struct {
	webhookSecret string
	log           *logrus.Entry
}

func NewStripeGateway(cfg config.PaymentConfig) *StripeGateway {
	// Initialize Stripe
	stripe.Key = cfg.StripeSecretKey

	return &StripeGateway{
		webhookSecret: cfg.StripeWebhookSecret,
		log:           logrus.WithField("component", "stripe"),
	}
}

func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, in *CheckoutSessionInput) (*CheckoutSessionOutput, error) {
	params := g.checkoutSessionParams(in, time.Now())
	params.Context = ctx

	s, err := session.New(params)
	if err != nil {
		g.logStripeError(err, "Checkout session creation failed", logrus.Fields{"order_id": in.OrderID})
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}

	return &CheckoutSessionOutput{ID: s.ID, URL: s.URL}, nil
}

func (g *StripeGateway) checkoutSessionParams(in *CheckoutSessionInput, now time.Time) *stripe.CheckoutSessionParams {
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(in.SuccessURL),
		CancelURL:         stripe.String(in.CancelURL),
		ClientReferenceID: stripe.String(in.OrderID),
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: map[string]string{"order_id": in.OrderID},
		},
	}

	for _, line := range in.Lines {
		item := &stripe.CheckoutSessionLineItemParams{Quantity: stripe.Int64(line.Quantity)}
		if line.PriceID != "" {
			item.Price = stripe.String(line.PriceID)
		} else {
			item.PriceData = &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(in.Currency),
				UnitAmount: stripe.Int64(line.UnitAmountCents),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(line.Name),
				},
			}
			if line.ImageURL != "" {
				item.PriceData.ProductData.Images = []*string{stripe.String(line.ImageURL)}
			}
		}
		params.LineItems = append(params.LineItems, item)
	}

	if in.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(in.CustomerEmail)
	}
	if !in.ExpiresAt.IsZero() {
		expiresAt := in.ExpiresAt
		if earliest := now.Add(minSessionLifetime); expiresAt.Before(earliest) {
			expiresAt = earliest
		}
		params.ExpiresAt = stripe.Int64(expiresAt.Unix())
	}

	params.AddMetadata("order_id", in.OrderID)
	for k, v := range in.Metadata {
		value, ok := fitMetadata(v)
		if !ok {
			g.log.WithFields(logrus.Fields{
				"order_id": in.OrderID,
				"key":      k,
				"size":     len(v),
			}).Warn("Metadata value too large, kept on the order only")
			continue
		}
		params.AddMetadata(k, value)
	}

	return params
}

func (g *StripeGateway) CreatePrice(ctx context.Context, in *PriceInput) (string, error) {
	params := &stripe.PriceParams{
		Product:    stripe.String(in.ProductID),
		Currency:   stripe.String(in.Currency),
		UnitAmount: stripe.Int64(utils.ToCents(in.Amount)),
	}
	params.Context = ctx
	if in.LookupKey != "" {
		params.LookupKey = stripe.String(in.LookupKey)
		params.TransferLookupKey = stripe.Bool(in.TransferLookupKey)
	}
	if in.Nickname != "" {
		params.Nickname = stripe.String(in.Nickname)
	}

	p, err := price.New(params)
	if err != nil {
		g.logStripeError(err, "Price creation failed", logrus.Fields{"product_id": in.ProductID, "lookup_key": in.LookupKey})
		return "", fmt.Errorf("failed to create price: %w", err)
	}
	return p.ID, nil
}

func (g *StripeGateway) DeactivatePrice(ctx context.Context, priceID string) error {
	params := &stripe.PriceParams{Active: stripe.Bool(false)}
	params.Context = ctx

	if _, err := price.Update(priceID, params); err != nil {
		g.logStripeError(err, "Price deactivation failed", logrus.Fields{"price_id": priceID})
		return fmt.Errorf("failed to deactivate price %s: %w", priceID, err)
	}
	return nil
}

func (g *StripeGateway) Refund(ctx context.Context, paymentIntentID string, amount *decimal.Decimal) (string, error) {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(paymentIntentID),
		Reason:        stripe.String(string(stripe.RefundReasonRequestedByCustomer)),
	}
	params.Context = ctx
	if amount != nil {
		params.Amount = stripe.Int64(utils.ToCents(*amount))
	}

	r, err := refund.New(params)
	if err != nil {
		g.logStripeError(err, "Refund failed", logrus.Fields{"payment_intent": paymentIntentID})
		return "", fmt.Errorf("failed to process refund: %w", err)
	}
	return r.ID, nil
}

// ParseWebhook verifies the signature and extracts the checkout session of
// session events. Other event types come back with only ID and Type set.
func (g *StripeGateway) ParseWebhook(payload []byte, signature string) (*WebhookEvent, error) {
	event, err := webhook.ConstructEvent(payload, signature, g.webhookSecret)
	if err != nil {
		g.log.WithError(err).Warn("Webhook signature verification failed")
		return nil, fmt.Errorf("%w: %v", ErrInvalidWebhookSignature, err)
	}

	out := &WebhookEvent{ID: event.ID, Type: string(event.Type)}
	if out.Type != EventCheckoutCompleted && out.Type != EventCheckoutExpired {
		return out, nil
	}

	var s stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &s); err != nil {
		return nil, fmt.Errorf("failed to decode checkout session: %w", err)
	}

	out.SessionID = s.ID
	out.OrderID = s.ClientReferenceID
	if id, ok := s.Metadata["order_id"]; ok && id != "" {
		out.OrderID = id
	}
	if s.PaymentIntent != nil {
		out.PaymentIntentID = s.PaymentIntent.ID
	}
	if s.CustomerDetails != nil {
		out.CustomerEmail = s.CustomerDetails.Email
	}
	return out, nil
}

// logStripeError keeps the processor's error body in the logs only.
func (g *StripeGateway) logStripeError(err error, msg string, fields logrus.Fields) {
	entry := g.log.WithFields(fields).WithError(err)

	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		entry = entry.WithFields(logrus.Fields{
			"stripe_type":       stripeErr.Type,
			"stripe_code":       stripeErr.Code,
			"stripe_request_id": stripeErr.RequestID,
			"stripe_status":     stripeErr.HTTPStatusCode,
			"stripe_message":    stripeErr.Msg,
		})
	}
	entry.Error(msg)
}

// fitMetadata shortens free text to the metadata size limit on a rune
// boundary. JSON values cannot be cut without breaking them and are refused.
func fitMetadata(v string) (string, bool) {
	if len(v) <= maxMetadataValue {
		return v, true
	}
	if json.Valid([]byte(v)) {
		return "", false
	}
	cut := maxMetadataValue
	for cut > 0 && !utf8.RuneStart(v[cut]) {
		cut--
	}
	return v[:cut], true
}
