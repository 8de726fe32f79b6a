// Package router maps the storefront's HTTP surface onto the handlers.
package router

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/evermart/storefront-api/internal/handler"
	"github.com/evermart/storefront-api/internal/middleware"
)

// Handlers bundles everything RegisterRoutes needs to wire up.
type Handlers struct {
	Auth      *handler.AuthHandler
	Products  *handler.ProductHandler
	Cart      *handler.CartHandler
	Checkout  *handler.CheckoutHandler
	Analytics *handler.AnalyticsHandler
}

// RegisterRoutes attaches every endpoint to the Echo instance. The
// access-token middleware guards everything below /api except the
// public catalog reads; admin-only routes stack the role check on top.
func RegisterRoutes(e *echo.Echo, h Handlers, accessSecret string, users middleware.UserLoader, rdb *redis.Client) {
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())

	e.GET("/healthz", handler.Health)

	requireAuth := middleware.RequireAuth(accessSecret, users)
	requireAdmin := middleware.RequireAdmin()

	// Auth endpoints are rate limited per client IP to slow down
	// credential stuffing.
	auth := e.Group("/api/auth", middleware.NewRateLimiter(middleware.LoadRateLimitConfig(), rdb))
	auth.POST("/signup", h.Auth.Signup)
	auth.POST("/login", h.Auth.Login)
	auth.POST("/logout", h.Auth.Logout)
	auth.GET("/refresh-token", h.Auth.Refresh)
	auth.GET("/profile", h.Auth.Profile, requireAuth)

	products := e.Group("/api/products")
	products.GET("", h.Products.GetAll, requireAuth, requireAdmin)
	products.GET("/featured", h.Products.GetFeatured)
	products.GET("/recommendations", h.Products.GetRecommendations)
	products.GET("/category/:category", h.Products.GetByCategory)
	products.GET("/shop", h.Products.GetShop)
	products.GET("/categories", h.Products.GetCategories)
	products.GET("/price-range", h.Products.GetPriceRange)
	products.POST("", h.Products.Create, requireAuth, requireAdmin)
	products.DELETE("/:id", h.Products.Delete, requireAuth, requireAdmin)
	products.PATCH("/:id", h.Products.ToggleFeatured, requireAuth, requireAdmin)

	cart := e.Group("/api/cart", requireAuth)
	cart.GET("", h.Cart.Get)
	cart.POST("", h.Cart.Add)
	cart.DELETE("", h.Cart.Remove)
	cart.PUT("/:id", h.Cart.SetQuantity)

	coupons := e.Group("/api/coupons", requireAuth)
	coupons.GET("", h.Checkout.GetCoupon)
	coupons.POST("/validate", h.Checkout.ValidateCoupon)

	payments := e.Group("/api/payments", requireAuth)
	payments.POST("/create-checkout-session", h.Checkout.CreateSession)
	payments.POST("/checkout-success", h.Checkout.ConfirmSuccess)

	e.GET("/api/analytics", h.Analytics.Get, requireAuth, requireAdmin)
}
