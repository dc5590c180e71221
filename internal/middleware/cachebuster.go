package middleware

// cachebuster.go runs the cache-consistency protocol on page views. For
// every cacheable GET it loads the visitor session, recomputes the
// fingerprint from the cart and session orders, syncs the fingerprint
// cookies, and, on backends that enforce by URL, issues a corrective
// redirect when the URL carries a stale fingerprint parameter. Mutating
// routes (cart, checkout) do not go through here; their handlers fire
// the recompute themselves after the mutation.

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/content-paywall/internal/cachebuster"
	"github.com/iliyamo/content-paywall/internal/repository"
)

// Context keys for the per-request fingerprint state and the loaded
// session, so handlers downstream reuse them instead of reloading.
const (
	stateContextKey   = "cachebuster_state"
	sessionContextKey = "visitor_session"
)

// SessionSource is the slice of the session store the protocol needs.
// *repository.SessionRepo satisfies it; tests substitute fakes.
type SessionSource interface {
	Load(ctx context.Context, sid string) (*repository.Session, error)
}

// CacheBuster wires the fingerprint controller and the session store into
// the request path.
type CacheBuster struct {
	Enabled  bool
	Ctrl     *cachebuster.Controller
	Sessions SessionSource
}

// NewCacheBuster builds the middleware carrier.
func NewCacheBuster(enabled bool, ctrl *cachebuster.Controller, sessions SessionSource) *CacheBuster {
	return &CacheBuster{Enabled: enabled, Ctrl: ctrl, Sessions: sessions}
}

// Middleware returns the Echo middleware running the protocol.
func (cb *CacheBuster) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !cb.Enabled || ignorableRequest(c.Request()) {
				return next(c)
			}

			sid := SessionID(c)
			session, err := cb.Sessions.Load(c.Request().Context(), sid)
			if err != nil {
				// Session store down: serve the page without the protocol
				// rather than failing the request.
				c.Logger().Warnf("cachebuster: session load failed: %v", err)
				return next(c)
			}
			c.Set(sessionContextKey, session)

			st := cachebuster.NewState()
			cb.Ctrl.Recompute(st, session.CartHash(), session.OrderIDs)
			c.Set(stateContextKey, st)

			_, loggedIn := CurrentUser(c)
			cb.Ctrl.SyncCookies(c, st, loggedIn)

			// URL enforcement applies to anonymous visitors only; cache
			// layers already keep logged-in visitors out of the shared
			// cache via the logged-in cookie.
			if !loggedIn {
				if target, ok := cb.Ctrl.RedirectURL(st, c.Request()); ok {
					return c.Redirect(http.StatusTemporaryRedirect, target)
				}
			}
			return next(c)
		}
	}
}

// StateFromContext returns the fingerprint state stored by the
// middleware, if the protocol ran for this request.
func StateFromContext(c echo.Context) (*cachebuster.State, bool) {
	st, ok := c.Get(stateContextKey).(*cachebuster.State)
	return st, ok
}

// SessionFromContext returns the visitor session loaded by the
// middleware, if any.
func SessionFromContext(c echo.Context) (*repository.Session, bool) {
	s, ok := c.Get(sessionContextKey).(*repository.Session)
	return s, ok
}

// ignorableRequest reports whether the protocol should stay out of the
// way: only GET and HEAD page views participate, and crawlers are left
// alone since they carry no purchase state worth fingerprinting.
func ignorableRequest(r *http.Request) bool {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		return true
	}
	ua := strings.ToLower(r.Header.Get("User-Agent"))
	for _, marker := range []string{"bot", "crawl", "spider", "slurp"} {
		if strings.Contains(ua, marker) {
			return true
		}
	}
	return false
}
