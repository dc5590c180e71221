package handler

// cart.go mutates the visitor's cart. Every mutation is one of the
// events that changes the fingerprint inputs, so after saving the
// session each handler recomputes the fingerprint and pushes the fresh
// cookies in the same response.

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/content-paywall/internal/cachebuster"
	"github.com/iliyamo/content-paywall/internal/middleware"
	"github.com/iliyamo/content-paywall/internal/repository"
)

// CartHandler bundles dependencies for cart endpoints.
type CartHandler struct {
	Products           *repository.ProductRepo
	Sessions           *repository.SessionRepo
	Ctrl               *cachebuster.Controller
	CacheBusterEnabled bool
}

func NewCartHandler(p *repository.ProductRepo, s *repository.SessionRepo,
	ctrl *cachebuster.Controller, cbEnabled bool) *CartHandler {
	return &CartHandler{Products: p, Sessions: s, Ctrl: ctrl, CacheBusterEnabled: cbEnabled}
}

type cartResp struct {
	ProductIDs []uint64 `json:"product_ids"`
	CartHash   string   `json:"cart_hash,omitempty"`
}

// Get returns the current cart contents.
func (h *CartHandler) Get(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	session, err := h.Sessions.Load(ctx, middleware.SessionID(c))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "session load failed"})
	}
	return c.JSON(http.StatusOK, cartResp{ProductIDs: session.CartProductIDs, CartHash: session.CartHash()})
}

// AddItem puts a published product into the cart.
func (h *CartHandler) AddItem(c echo.Context) error {
	var req struct {
		ProductID uint64 `json:"product_id"`
	}
	if err := c.Bind(&req); err != nil || req.ProductID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "product_id required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	product, err := h.Products.GetProduct(ctx, req.ProductID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load failed"})
	}
	if product == nil || !product.IsPublished() {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "product not found"})
	}

	return h.mutate(c, ctx, func(s *repository.Session) bool {
		return s.AddCartItem(req.ProductID)
	})
}

// RemoveItem drops a product from the cart.
func (h *CartHandler) RemoveItem(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid product id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	return h.mutate(c, ctx, func(s *repository.Session) bool {
		return s.RemoveCartItem(id)
	})
}

// Empty clears the cart.
func (h *CartHandler) Empty(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	return h.mutate(c, ctx, func(s *repository.Session) bool {
		return s.EmptyCart()
	})
}

// mutate loads the session, applies the change, saves, and refreshes the
// fingerprint cookies when anything actually changed.
func (h *CartHandler) mutate(c echo.Context, ctx context.Context, fn func(*repository.Session) bool) error {
	sid := middleware.SessionID(c)
	session, err := h.Sessions.Load(ctx, sid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "session load failed"})
	}

	if fn(session) {
		if err := h.Sessions.Save(ctx, sid, session); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "session save failed"})
		}
		h.refreshFingerprint(c, session)
	}
	return c.JSON(http.StatusOK, cartResp{ProductIDs: session.CartProductIDs, CartHash: session.CartHash()})
}

// refreshFingerprint recomputes from the post-mutation session and syncs
// cookies. Mutating routes bypass the page-view middleware, so this is
// where their trigger fires.
func (h *CartHandler) refreshFingerprint(c echo.Context, session *repository.Session) {
	if !h.CacheBusterEnabled {
		return
	}
	st := cachebuster.NewState()
	h.Ctrl.Recompute(st, session.CartHash(), session.OrderIDs)
	_, loggedIn := middleware.CurrentUser(c)
	h.Ctrl.SyncCookies(c, st, loggedIn)
}
