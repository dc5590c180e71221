package handler

// product.go serves the catalog and the gated content pages. The JSON
// detail endpoint answers the entitlement question for API clients; the
// page endpoint renders gated HTML with the fingerprint embedded and a
// client-side fallback that corrects a stale cached copy by reloading
// with the fingerprint parameter.

import (
	"context"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/content-paywall/internal/cachebuster"
	"github.com/iliyamo/content-paywall/internal/config"
	"github.com/iliyamo/content-paywall/internal/entitlement"
	"github.com/iliyamo/content-paywall/internal/middleware"
	"github.com/iliyamo/content-paywall/internal/model"
	"github.com/iliyamo/content-paywall/internal/repository"
)

// ProductHandler bundles dependencies for catalog and content endpoints.
type ProductHandler struct {
	Cfg      config.PaywallConfig
	Products *repository.ProductRepo
	Sessions *repository.SessionRepo
	Resolver *entitlement.Resolver
	Ctrl     *cachebuster.Controller
}

func NewProductHandler(cfg config.PaywallConfig, p *repository.ProductRepo, s *repository.SessionRepo,
	r *entitlement.Resolver, ctrl *cachebuster.Controller) *ProductHandler {
	return &ProductHandler{Cfg: cfg, Products: p, Sessions: s, Resolver: r, Ctrl: ctrl}
}

type productView struct {
	ID               uint64 `json:"id"`
	Title            string `json:"title"`
	Type             string `json:"type"`
	PriceCents       uint32 `json:"price_cents"`
	CanView          bool   `json:"can_view"`
	ExpirationStatus string `json:"expiration_status,omitempty"`
	ExpiresInSec     *int64 `json:"expires_in_seconds,omitempty"`
	PageURL          string `json:"page_url,omitempty"`
}

// List returns the published catalog. Draft products stay invisible here
// even though purchases of them keep resolving internally.
func (h *ProductHandler) List(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	products, err := h.Products.ListPublished(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list failed"})
	}
	out := make([]productView, 0, len(products))
	for _, p := range products {
		out = append(out, productView{ID: p.ID, Title: p.Title, Type: p.Type, PriceCents: p.PriceCents})
	}
	return c.JSON(http.StatusOK, echo.Map{"products": out})
}

// Get answers the entitlement question for one product. The optional
// `key` query parameter carries a guest's proof-of-purchase token; the
// optional `paywall_status` parameter is the operator preview toggle.
func (h *ProductHandler) Get(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid product id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	product, err := h.Products.MustGetProduct(ctx, id)
	if err == repository.ErrProductNotFound {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "product not found"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load failed"})
	}

	visitor, _, err := loadVisitor(ctx, c, h.Sessions)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "session load failed"})
	}
	ent := h.Resolver.ForVisitor(visitor)

	view := h.buildView(ctx, ent, product, entitlement.Query{
		ProductID: product.ID,
		OrderKey:  c.QueryParam("key"),
		Preview:   previewParam(c),
	})

	// Gated-page links carry the fingerprint parameter on backends that
	// enforce by URL, so a cached copy of this response still points the
	// visitor at their own page variant. Logged-in visitors bypass the
	// shared cache, so their links stay clean.
	view.PageURL = fmt.Sprintf("/v1/products/%d/page", product.ID)
	if _, loggedIn := middleware.CurrentUser(c); !loggedIn {
		if st, ok := middleware.StateFromContext(c); ok {
			view.PageURL = h.Ctrl.AnnotateURL(st, view.PageURL)
		}
	}
	return c.JSON(http.StatusOK, view)
}

func (h *ProductHandler) buildView(ctx context.Context, ent *entitlement.VisitorEntitlements,
	product *model.Product, q entitlement.Query) productView {
	view := productView{
		ID:         product.ID,
		Title:      product.Title,
		Type:       product.Type,
		PriceCents: product.PriceCents,
		CanView:    ent.CanView(ctx, q),
	}
	if status, ok := ent.ExpirationStatus(ctx, product.ID); ok {
		view.ExpirationStatus = status
	}
	if ttl, ok := ent.TimeToExpire(ctx, product.ID); ok {
		secs := int64(ttl / time.Second)
		view.ExpiresInSec = &secs
	}
	return view
}

// pageTmpl renders a gated content page. The fingerprint and product id
// are embedded so the inline script can detect a stale cached copy: when
// the paywall_hash cookie disagrees with the hash baked into the page,
// the visitor is looking at someone else's cache entry, and the script
// reloads with the corrected fingerprint parameter.
var pageTmpl = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html>
<head><title>{{.Title}}</title></head>
<body>
<article data-product="{{.ID}}">
<h1>{{.Title}}</h1>
{{if .CanView}}<div class="content">{{.Content}}</div>
{{else}}<div class="paywall-notice">This content is for customers only. Purchase to unlock.</div>
{{end}}
</article>
<script>
(function () {
  var pageHash = {{.Fingerprint}};
  var m = document.cookie.match(/(?:^|; )paywall_hash=([^;]*)/);
  var cookieHash = m ? decodeURIComponent(m[1]) : null;
  if (cookieHash && pageHash && cookieHash !== pageHash) {
    var u = new URL(window.location.href);
    u.searchParams.set({{.HashParam}}, cookieHash);
    window.location.replace(u.toString());
  }
})();
</script>
</body>
</html>
`))

type pageData struct {
	ID          uint64
	Title       string
	CanView     bool
	Content     string
	Fingerprint string
	HashParam   string
}

// Page renders the gated HTML page for one product.
func (h *ProductHandler) Page(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid product id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	product, err := h.Products.MustGetProduct(ctx, id)
	if err == repository.ErrProductNotFound {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "product not found"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load failed"})
	}

	visitor, _, err := loadVisitor(ctx, c, h.Sessions)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "session load failed"})
	}
	ent := h.Resolver.ForVisitor(visitor)
	canView := ent.CanView(ctx, entitlement.Query{
		ProductID: product.ID,
		OrderKey:  c.QueryParam("key"),
		Preview:   previewParam(c),
	})

	fp := ""
	if st, ok := middleware.StateFromContext(c); ok && st.Fingerprint().IsSet() {
		fp = st.Fingerprint().Value()
	}

	data := pageData{
		ID:          product.ID,
		Title:       product.Title,
		CanView:     canView,
		Content:     "Premium content for " + product.Title + ".",
		Fingerprint: fp,
		HashParam:   cachebuster.HashName,
	}
	c.Response().Header().Set(echo.HeaderContentType, echo.MIMETextHTMLCharsetUTF8)
	c.Response().WriteHeader(http.StatusOK)
	return pageTmpl.Execute(c.Response(), data)
}

// Create adds a product to the catalog. Operator only.
func (h *ProductHandler) Create(c echo.Context) error {
	var req struct {
		Title            string `json:"title"`
		Type             string `json:"type"`
		Status           string `json:"status"`
		PriceCents       uint32 `json:"price_cents"`
		CustomExpiration bool   `json:"custom_expiration"`
		ExpireValue      int    `json:"expire_value"`
		ExpireUnits      string `json:"expire_units"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.Title == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "title required"})
	}
	if req.Type != model.ProductTypePaywall && req.Type != model.ProductTypePass {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "type must be paywall or pass"})
	}
	if req.Status == "" {
		req.Status = model.ProductStatusPublish
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	p := &model.Product{
		Title:            req.Title,
		Type:             req.Type,
		Status:           req.Status,
		PriceCents:       req.PriceCents,
		CustomExpiration: req.CustomExpiration,
		ExpireValue:      req.ExpireValue,
		ExpireUnits:      req.ExpireUnits,
	}
	if err := h.Products.Create(ctx, p); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create failed"})
	}
	return c.JSON(http.StatusCreated, echo.Map{"id": p.ID})
}
