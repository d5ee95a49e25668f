package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Makeis02/landingmaj-sub003/internal/config"
	"github.com/Makeis02/landingmaj-sub003/internal/database"
	"github.com/Makeis02/landingmaj-sub003/internal/models"
)

func init() {
	logrus.SetLevel(logrus.WarnLevel)
}

type fakeGateway struct {
	mu          sync.Mutex
	seq         int
	sessions    []*CheckoutSessionInput
	prices      []*PriceInput
	deactivated []string
	refunds     []string
	sessionErr  error
}

func (g *fakeGateway) CreateCheckoutSession(_ context.Context, in *CheckoutSessionInput) (*CheckoutSessionOutput, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.sessionErr != nil {
		return nil, g.sessionErr
	}
	g.seq++
	g.sessions = append(g.sessions, in)
	id := fmt.Sprintf("cs_test_%d", g.seq)
	return &CheckoutSessionOutput{ID: id, URL: "https://checkout.stripe.test/" + id}, nil
}

func (g *fakeGateway) CreatePrice(_ context.Context, in *PriceInput) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	g.prices = append(g.prices, in)
	return fmt.Sprintf("price_test_%d", g.seq), nil
}

func (g *fakeGateway) DeactivatePrice(_ context.Context, priceID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.deactivated = append(g.deactivated, priceID)
	return nil
}

func (g *fakeGateway) Refund(_ context.Context, paymentIntentID string, _ *decimal.Decimal) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.refunds = append(g.refunds, paymentIntentID)
	return "re_test", nil
}

func (g *fakeGateway) ParseWebhook([]byte, string) (*WebhookEvent, error) {
	return nil, errors.New("not supported by fake gateway")
}

func (g *fakeGateway) lastSession() *CheckoutSessionInput {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.sessions) == 0 {
		return nil
	}
	return g.sessions[len(g.sessions)-1]
}

type fakePublisher struct {
	mu     sync.Mutex
	events []OrderEvent
}

func (p *fakePublisher) PublishOrderEvent(_ context.Context, e OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *fakePublisher) Close() error { return nil }

func (p *fakePublisher) statuses() []models.OrderStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]models.OrderStatus, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Status)
	}
	return out
}

type testEnv struct {
	db         *gorm.DB
	store      *PriceStore
	cache      *MemoryPromotionCache
	resolver   *DiscountResolver
	promoCodes *PromoCodeService
	orders     *OrderService
	checkout   *CheckoutService
	promotions *PromotionService
	catalog    *CatalogService
	carts      *CartService
	gateway    *fakeGateway
	events     *fakePublisher
}

var testPayment = config.PaymentConfig{
	Currency:      "eur",
	MinimumCharge: 0.50,
	SuccessURL:    "http://localhost/success",
	CancelURL:     "http://localhost/cancel",
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// every connection to :memory: is a separate database
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, database.RunMigrations(db))
	return db
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		db:      newTestDB(t),
		cache:   NewMemoryPromotionCache(time.Minute),
		gateway: &fakeGateway{},
		events:  &fakePublisher{},
	}
	env.store = NewPriceStore(env.db)
	env.resolver = NewDiscountResolver(env.store, env.cache, "eur")
	env.promoCodes = NewPromoCodeService(env.db, env.store)
	env.orders = NewOrderService(env.db, env.promoCodes, env.gateway, env.events)
	env.checkout = NewCheckoutService(env.store, env.resolver, env.promoCodes, env.orders, env.gateway,
		testPayment, config.CheckoutConfig{PendingOrderTTL: 60})
	env.promotions = NewPromotionService(env.store, env.resolver, env.gateway, env.cache, "eur")
	env.catalog = NewCatalogService(env.store, env.gateway, NewLocalStorageService(t.TempDir(), "http://localhost/uploads"), "eur")
	env.carts = NewCartService(env.store, env.resolver)
	return env
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func (e *testEnv) seedProduct(t *testing.T, id, title, base, category string) {
	t.Helper()
	require.NoError(t, e.store.UpsertProduct(context.Background(), &models.Product{
		ID:        id,
		Title:     title,
		BasePrice: dec(base),
		Currency:  "eur",
		Category:  category,
	}))
}

func (e *testEnv) seedPrice(t *testing.T, productID string, variant *models.Variant, priceID, amount string, discount bool) {
	t.Helper()
	label, value := variantColumns(variant)
	lookup := models.CatalogLookupKey(productID, variant)
	if discount {
		lookup = models.PromoLookupKey(productID, variant, priceID)
	}
	require.NoError(t, e.store.UpsertPriceRecord(context.Background(), &models.PriceRecord{
		ProductID:     productID,
		StripePriceID: priceID,
		LookupKey:     lookup,
		VariantLabel:  label,
		VariantValue:  value,
		IsDiscount:    discount,
		Active:        true,
		UnitAmount:    dec(amount),
		Currency:      "eur",
	}))
}

func (e *testEnv) seedContent(t *testing.T, key models.ContentKey, value string) {
	t.Helper()
	require.NoError(t, e.store.UpsertContent(context.Background(), key, value))
}

func (e *testEnv) seedPromo(t *testing.T, code string, typ models.PromoType, value string, opts ...func(*CreatePromoCodeRequest)) *models.PromoCode {
	t.Helper()
	req := &CreatePromoCodeRequest{Code: code, Type: typ, Value: dec(value)}
	for _, opt := range opts {
		opt(req)
	}
	promo, err := e.promoCodes.Create(context.Background(), req)
	require.NoError(t, err)
	return promo
}

// seedPromoA is the reference promotion: prod_A at 50 with a 20% discount
// price of 40.
func (e *testEnv) seedPromoA(t *testing.T) {
	t.Helper()
	e.seedProduct(t, "prod_A", "Aquarium 60L", "50", "aquariums")
	e.seedPrice(t, "prod_A", nil, "price_base_A", "50", false)
	e.seedPrice(t, "prod_A", nil, "price_promo_A", "40", true)
	e.seedContent(t, models.ProductContentKey("prod_A", models.FieldDiscountPercentage), "20")
}

func line(id, productID, price string, qty int) models.CartLineItem {
	return models.CartLineItem{
		ID:        id,
		ProductID: productID,
		Quantity:  qty,
		UnitPrice: dec(price),
		Currency:  "eur",
	}
}

func giftLine(id, productID string) models.CartLineItem {
	return models.CartLineItem{ID: id, ProductID: productID, Quantity: 1, UnitPrice: decimal.Zero, IsGift: true}
}

func intPtr(n int) *int { return &n }
