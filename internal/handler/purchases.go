package handler

// purchases.go lists what the visitor currently holds: one entry per
// distinct product, newest purchase first, with its expiration status.

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/content-paywall/internal/entitlement"
	"github.com/iliyamo/content-paywall/internal/repository"
)

// PurchasesHandler bundles dependencies for the purchases listing.
type PurchasesHandler struct {
	Sessions *repository.SessionRepo
	Resolver *entitlement.Resolver
}

func NewPurchasesHandler(s *repository.SessionRepo, r *entitlement.Resolver) *PurchasesHandler {
	return &PurchasesHandler{Sessions: s, Resolver: r}
}

type purchaseView struct {
	ProductID    uint64 `json:"product_id"`
	Title        string `json:"title"`
	Type         string `json:"type"`
	OrderID      uint64 `json:"order_id"`
	Status       string `json:"status"`
	ExpiresInSec *int64 `json:"expires_in_seconds,omitempty"`
}

// List returns the visitor's purchase ledger. Registered users see all
// their paid orders; guests see the orders recorded in their session.
func (h *PurchasesHandler) List(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	visitor, _, err := loadVisitor(ctx, c, h.Sessions)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "session load failed"})
	}
	ent := h.Resolver.ForVisitor(visitor)

	records := ent.Ledger(ctx).Records()
	out := make([]purchaseView, 0, len(records))
	for _, rec := range records {
		view := purchaseView{
			ProductID: rec.Product.ID,
			Title:     rec.Product.Title,
			Type:      rec.Product.Type,
			OrderID:   rec.Order.ID,
		}
		if status, ok := ent.ExpirationStatus(ctx, rec.Product.ID); ok {
			view.Status = status
		}
		if ttl, ok := ent.TimeToExpire(ctx, rec.Product.ID); ok {
			secs := int64(ttl / time.Second)
			view.ExpiresInSec = &secs
		}
		out = append(out, view)
	}
	return c.JSON(http.StatusOK, echo.Map{"purchases": out})
}
