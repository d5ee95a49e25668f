// internal/router/router.go
package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/Makeis02/landingmaj-sub003/internal/config"
	"github.com/Makeis02/landingmaj-sub003/internal/handlers"
	"github.com/Makeis02/landingmaj-sub003/internal/middleware"
	"github.com/Makeis02/landingmaj-sub003/internal/services"
)

// Services holds the wired service graph shared by the router and the
// background workers.
type Services struct {
	Store      *services.PriceStore
	Resolver   *services.DiscountResolver
	PromoCodes *services.PromoCodeService
	Orders     *services.OrderService
	Checkout   *services.CheckoutService
	Promotions *services.PromotionService
	Catalog    *services.CatalogService
	Carts      *services.CartService
	Auth       *services.AuthService
	Storage    *services.StorageService
	Gateway    services.PaymentGateway
}

// NewServices wires the services. A nil cache falls back to an in-process
// one; nil events are only logged.
func NewServices(
	db *gorm.DB,
	cfg *config.Config,
	gateway services.PaymentGateway,
	storage *services.StorageService,
	cache services.PromotionCache,
	events services.EventPublisher,
) *Services {
	currency := cfg.Payment.Currency
	if cache == nil {
		cache = services.NewMemoryPromotionCache(time.Duration(cfg.Redis.PromotionTTL) * time.Second)
	}

	store := services.NewPriceStore(db)
	resolver := services.NewDiscountResolver(store, cache, currency)
	promoCodes := services.NewPromoCodeService(db, store)
	orders := services.NewOrderService(db, promoCodes, gateway, events)

	return &Services{
		Store:      store,
		Resolver:   resolver,
		PromoCodes: promoCodes,
		Orders:     orders,
		Checkout:   services.NewCheckoutService(store, resolver, promoCodes, orders, gateway, cfg.Payment, cfg.Checkout),
		Promotions: services.NewPromotionService(store, resolver, gateway, cache, currency),
		Catalog:    services.NewCatalogService(store, gateway, storage, currency),
		Carts:      services.NewCartService(store, resolver),
		Auth:       services.NewAuthService(db, cfg.JWT),
		Storage:    storage,
		Gateway:    gateway,
	}
}

func Initialize(db *gorm.DB, cfg *config.Config, svc *Services) *gin.Engine {
	// Initialize handlers
	authHandler := handlers.NewAuthHandler(svc.Auth)
	productHandler := handlers.NewProductHandler(svc.Resolver, svc.Promotions, svc.Catalog)
	cartHandler := handlers.NewCartHandler(svc.Carts, svc.PromoCodes)
	paymentHandler := handlers.NewPaymentHandler(svc.Checkout, svc.Orders, svc.Gateway)
	adminHandler := handlers.NewAdminHandler(svc.PromoCodes, svc.Orders)

	// Initialize Gin router
	r := gin.New()

	// Global middleware
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.CORS(cfg.Frontend.AllowedOrigins))
	r.Use(middleware.I18nMiddleware())
	r.Use(middleware.GeneralRateLimit())

	// Health check
	r.GET("/health", func(c *gin.Context) {
		status, code := "healthy", http.StatusOK
		if sqlDB, err := db.DB(); err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
			status, code = "degraded", http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{
			"status":  status,
			"version": "1.0.0",
		})
	})

	if dir := svc.Storage.LocalDir(); dir != "" {
		r.Static("/uploads", dir)
	}

	// API v1 routes
	v1 := r.Group("/v1")
	{
		// Storefront routes
		products := v1.Group("/products")
		{
			products.GET("/:id/price", productHandler.GetPrice)
			products.POST("/promotions", productHandler.CheckPromotions)
		}

		v1.POST("/cart/items", cartHandler.AddItem)
		v1.POST("/apply-promo", middleware.PromoRateLimit(), cartHandler.ApplyPromo)
		v1.POST("/checkout", paymentHandler.CreateCheckout)
		v1.GET("/orders/session/:session_id", paymentHandler.GetOrderBySession)

		// Payment processor callbacks
		v1.POST("/webhooks/stripe", paymentHandler.StripeWebhook)

		v1.POST("/admin/login", middleware.AuthRateLimit(), authHandler.Login)

		// Admin routes
		admin := v1.Group("/admin")
		admin.Use(middleware.AdminRequired(), middleware.AuditLogMiddleware(db))
		{
			admin.GET("/me", authHandler.GetProfile)

			// Promo codes
			promoCodes := admin.Group("/promo-codes")
			{
				promoCodes.GET("", adminHandler.ListPromoCodes)
				promoCodes.POST("", adminHandler.CreatePromoCode)
				promoCodes.GET("/:id", adminHandler.GetPromoCode)
				promoCodes.PATCH("/:id", adminHandler.UpdatePromoCode)
				promoCodes.DELETE("/:id", adminHandler.DeactivatePromoCode)
			}

			// Percentage promotions
			promotions := admin.Group("/promotions")
			{
				promotions.POST("/activate", productHandler.ActivatePromotion)
				promotions.POST("/deactivate", productHandler.DeactivatePromotion)
			}

			// Catalog
			adminProducts := admin.Group("/products")
			{
				adminProducts.GET("", productHandler.ListProducts)
				adminProducts.PUT("", productHandler.UpsertProduct)
				adminProducts.GET("/:id", productHandler.GetProduct)
				adminProducts.POST("/:id/price", productHandler.SyncPrice)
				adminProducts.PUT("/:id/stock", productHandler.SetStock)
				adminProducts.POST("/:id/image", middleware.UploadRateLimit(), productHandler.UploadImage)
			}

			// Orders
			orders := admin.Group("/orders")
			{
				orders.GET("", adminHandler.ListOrders)
				orders.GET("/:id", adminHandler.GetOrder)
				orders.POST("/:id/fulfill", adminHandler.FulfillOrder)
				orders.POST("/:id/refund", adminHandler.RefundOrder)
			}
		}
	}

	return r
}
