package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing

	"github.com/iliyamo/content-paywall/internal/handler"    // import the handlers that implement business logic
	"github.com/iliyamo/content-paywall/internal/middleware" // import middleware for identity, caching and the fingerprint protocol
	"github.com/iliyamo/content-paywall/internal/model"
)

// RegisterRoutes registers routes that do not require authentication on the
// provided Echo instance.  Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo) {
	// Map the GET request at path "/healthz" to the Health handler.  This
	// endpoint can be used by load balancers or monitoring systems to verify
	// that the service is up and running.
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers the authentication routes.  Accounts are optional
// in this service (guests can buy and unlock content with an order key),
// so only register and login exist; both return an access token directly.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, rateLimit echo.MiddlewareFunc) {
	g := e.Group("/v1/auth", rateLimit)
	// Register a POST endpoint to handle user registration at /v1/auth/register.
	g.POST("/register", a.Register)
	// Register a POST endpoint to handle user login at /v1/auth/login.
	g.POST("/login", a.Login)
}

// RegisterContent registers the catalog and gated content routes.  These
// are the page views the cache-consistency protocol protects, so the
// chain matters:
//
//  1. EnsureSession gives every visitor a stable session id;
//  2. OptionalAuth upgrades the request when a Bearer token is present,
//     without ever rejecting guests;
//  3. the page cache answers from Redis when it can (its vary cookies
//     and bypass predicates were registered by the cache backend);
//  4. the cache buster recomputes the fingerprint, syncs cookies and
//     issues corrective redirects before the handler runs.
func RegisterContent(e *echo.Echo, p *handler.ProductHandler, pu *handler.PurchasesHandler,
	jwtSecret string, pageCache *middleware.PageCache, cb *middleware.CacheBuster) {
	g := e.Group(
		"/v1",
		middleware.EnsureSession(),
		middleware.OptionalAuth(jwtSecret),
		pageCache.Middleware(),
		cb.Middleware(),
	)
	g.GET("/products", p.List)
	g.GET("/products/:id", p.Get)
	g.GET("/products/:id/page", p.Page)
	g.GET("/purchases", pu.List)
}

// RegisterCart registers the cart and checkout routes.  They mutate the
// fingerprint inputs and fire the recompute themselves, so they skip the
// page-view middleware; checkout additionally sits behind the rate
// limiter because it creates orders.
func RegisterCart(e *echo.Echo, cart *handler.CartHandler, checkout *handler.CheckoutHandler,
	jwtSecret string, rateLimit echo.MiddlewareFunc) {
	g := e.Group(
		"/v1",
		middleware.EnsureSession(),
		middleware.OptionalAuth(jwtSecret),
	)
	g.GET("/cart", cart.Get)
	g.POST("/cart/items", cart.AddItem)
	g.DELETE("/cart/items/:id", cart.RemoveItem)
	g.DELETE("/cart", cart.Empty)
	g.POST("/checkout", checkout.Checkout, rateLimit)
}

// RegisterAdmin registers operator-scoped catalog management under /v1.
// All routes require a valid JWT and the ADMIN role.
func RegisterAdmin(e *echo.Echo, p *handler.ProductHandler, jwtSecret string) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleAdmin),
	)
	g.POST("/products", p.Create)
}
