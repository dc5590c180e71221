package handler

// checkout.go turns the cart into a paid order. Payment capture itself is
// out of scope; checkout acts as the commerce platform and records the
// order as paid immediately. Completing a purchase is the second event
// that changes the fingerprint inputs, and it also invalidates every
// memoized entitlement answer for the rest of the request.

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/content-paywall/internal/cachebuster"
	"github.com/iliyamo/content-paywall/internal/clock"
	"github.com/iliyamo/content-paywall/internal/entitlement"
	"github.com/iliyamo/content-paywall/internal/middleware"
	"github.com/iliyamo/content-paywall/internal/model"
	"github.com/iliyamo/content-paywall/internal/queue"
	"github.com/iliyamo/content-paywall/internal/repository"
	queue_publisher "github.com/iliyamo/content-paywall/internal/service"
	"github.com/iliyamo/content-paywall/internal/utils"
)

// CheckoutHandler bundles dependencies for the checkout endpoint.
type CheckoutHandler struct {
	Products           *repository.ProductRepo
	Orders             *repository.OrderRepo
	Sessions           *repository.SessionRepo
	Resolver           *entitlement.Resolver
	Ctrl               *cachebuster.Controller
	Clock              clock.Clock
	CacheBusterEnabled bool
}

func NewCheckoutHandler(p *repository.ProductRepo, o *repository.OrderRepo, s *repository.SessionRepo,
	r *entitlement.Resolver, ctrl *cachebuster.Controller, clk clock.Clock, cbEnabled bool) *CheckoutHandler {
	return &CheckoutHandler{
		Products: p, Orders: o, Sessions: s,
		Resolver: r, Ctrl: ctrl, Clock: clk, CacheBusterEnabled: cbEnabled,
	}
}

type checkoutResp struct {
	OrderID    uint64   `json:"order_id"`
	OrderKey   string   `json:"order_key"`
	ProductIDs []uint64 `json:"product_ids"`
	CanView    bool     `json:"can_view"`
}

// Checkout creates a paid order from the cart, records the order in the
// guest session, publishes the order event, and refreshes the visitor's
// fingerprint cookies so the very next page view already sees the
// purchase.
func (h *CheckoutHandler) Checkout(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	sid := middleware.SessionID(c)
	session, err := h.Sessions.Load(ctx, sid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "session load failed"})
	}
	if len(session.CartProductIDs) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "cart is empty"})
	}

	now := h.Clock.Now()
	order := &model.Order{
		Status:      model.OrderStatusPaid,
		DatePaid:    &now,
		DateCreated: &now,
	}
	if uid, ok := middleware.CurrentUser(c); ok {
		order.UserID = &uid
	}
	order.OrderKey, err = utils.NewOrderKey()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "order key failed"})
	}

	var (
		titles []string
		total  uint32
	)
	for _, pid := range session.CartProductIDs {
		product, err := h.Products.GetProduct(ctx, pid)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load failed"})
		}
		if product == nil || !product.IsPublished() {
			return c.JSON(http.StatusConflict, echo.Map{"error": "cart contains an unavailable product"})
		}
		item := model.OrderItem{ProductID: product.ID, PriceCents: product.PriceCents}
		if product.CustomExpiration {
			// Snapshot the custom rule so later product edits do not
			// change what this purchase already bought.
			v, u := product.ExpireValue, product.ExpireUnits
			item.ExpireValue = &v
			item.ExpireUnits = &u
		}
		order.Items = append(order.Items, item)
		titles = append(titles, product.Title)
		total += product.PriceCents
	}

	if err := h.Orders.Create(ctx, order); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "order create failed"})
	}

	// Record the purchase in the session: the order id is the guest's
	// proof, the purchased list is display-only.
	session.AppendOrder(order.ID)
	session.AppendPurchased(session.CartProductIDs...)
	purchased := append([]uint64(nil), session.CartProductIDs...)
	session.EmptyCart()
	if err := h.Sessions.Save(ctx, sid, session); err != nil {
		c.Logger().Warnf("checkout: session save failed: %v", err)
	}

	// Answer with an entitlement view that is guaranteed to rebuild from
	// storage: the invalidation drops any memoized state before the new
	// order is queried, so the response reflects the purchase.
	visitor := entitlement.Visitor{SessionOrderIDs: session.OrderIDs}
	if order.UserID != nil {
		visitor.UserID = order.UserID
	}
	ent := h.Resolver.ForVisitor(visitor)
	ent.InvalidatePurchases()
	ent.AppendSessionOrder(order.ID)
	canView := true
	for _, pid := range purchased {
		if !ent.CanView(ctx, entitlement.Query{ProductID: pid}) {
			canView = false
			break
		}
	}

	h.refreshFingerprint(c, session)
	h.publishEvent(order, titles, total)

	return c.JSON(http.StatusCreated, checkoutResp{
		OrderID:    order.ID,
		OrderKey:   order.OrderKey,
		ProductIDs: purchased,
		CanView:    canView,
	})
}

func (h *CheckoutHandler) refreshFingerprint(c echo.Context, session *repository.Session) {
	if !h.CacheBusterEnabled {
		return
	}
	st := cachebuster.NewState()
	h.Ctrl.Recompute(st, session.CartHash(), session.OrderIDs)
	_, loggedIn := middleware.CurrentUser(c)
	h.Ctrl.SyncCookies(c, st, loggedIn)
}

// publishEvent sends the order to the broker. Failures are logged by the
// publisher and ignored; the purchase already succeeded.
func (h *CheckoutHandler) publishEvent(order *model.Order, titles []string, total uint32) {
	ev := queue.OrderPlacedEvent{
		OrderID:          order.ID,
		OrderKey:         order.OrderKey,
		ProductTitles:    titles,
		TotalAmountCents: total,
		PlacedAt:         h.Clock.Now().UTC().Format(time.RFC3339),
	}
	if order.UserID != nil {
		ev.UserID = *order.UserID
	}
	for _, it := range order.Items {
		ev.ProductIDs = append(ev.ProductIDs, it.ProductID)
	}
	if order.ExpiresOn != nil {
		ev.ExpiresOn = order.ExpiresOn.UTC().Format(time.RFC3339)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = queue_publisher.PublishOrderPlaced(ctx, ev)
}
