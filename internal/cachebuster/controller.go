package cachebuster

import (
	"log"
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"
)

// State is the per-request fingerprint state machine: either NO_FINGERPRINT
// (the sentinel) or FINGERPRINT(value). It is created fresh for every
// request and never shared.
type State struct {
	fingerprint Fingerprint

	// recomputed is the once-per-request guard: only the first trigger
	// performs the hashing work, later triggers observe the stored value.
	recomputed bool
}

// NewState returns a state in NO_FINGERPRINT.
func NewState() *State { return &State{} }

// Fingerprint returns the current fingerprint (or the NONE sentinel).
func (s *State) Fingerprint() Fingerprint { return s.fingerprint }

// Controller orchestrates fingerprint recomputation on state-changing
// events, cookie synchronization, URL annotation and mismatch redirects.
// It is shared across requests and keeps no mutable state of its own; all
// per-request state lives in State.
type Controller struct {
	backend Backend
	secret  string
}

// NewController builds a controller for the selected page-cache backend.
func NewController(backend Backend, secret string) *Controller {
	return &Controller{backend: backend, secret: secret}
}

// Backend exposes the active backend, mainly for startup registration.
func (c *Controller) Backend() Backend { return c.backend }

// Recompute derives the fingerprint from the current cart hash and session
// order ids. Triggered by every cart/order mutation event; within one
// request only the first trigger recomputes.
//
// Later triggers deliberately no-op. This mirrors the original guard and
// may be a latent bug: a cart mutation after the initial session load
// keeps the earlier fingerprint for the rest of the request. Preserved
// rather than fixed, because correctness is restored on the next request.
func (c *Controller) Recompute(st *State, cartHash string, orderIDs []uint64) {
	if st.recomputed {
		log.Printf("cachebuster: recompute already done, keeping %s", st.fingerprint.Value())
		return
	}
	st.recomputed = true

	next := Compute(c.secret, cartHash, orderIDs)
	if next.Equal(st.fingerprint) {
		log.Printf("cachebuster: hash unchanged (%s)", next.Value())
		return
	}
	log.Printf("cachebuster: hash set to %s (old=%s)", next.Value(), st.fingerprint.Value())
	st.fingerprint = next
}

// AnnotateURL adds the fingerprint parameter to a gated-page URL, unless
// the backend handles variance itself or no fingerprint is set.
func (c *Controller) AnnotateURL(st *State, rawURL string) string {
	return c.backend.AnnotateURL(rawURL, st.fingerprint)
}

// SyncCookies writes the fingerprint and logged-in cookies. Cookies must
// go out before any body bytes; when the response is already committed the
// write is logged and skipped, never retried. Unchanged values are not
// re-sent.
func (c *Controller) SyncCookies(ec echo.Context, st *State, loggedIn bool) {
	c.maybeSetCookie(ec, HashName, st.fingerprint.Value())
	flag := "N"
	if loggedIn {
		flag = "Y"
	}
	c.maybeSetCookie(ec, LoggedInCookieName, flag)
}

func (c *Controller) maybeSetCookie(ec echo.Context, name, value string) {
	if ec.Response().Committed {
		log.Printf("cachebuster: trying to set cookie %s=%s after headers already sent", name, value)
		return
	}
	if existing, err := ec.Cookie(name); err == nil && existing.Value == value {
		return
	}
	ec.SetCookie(&http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
	})
}

// RedirectURL decides whether an incoming anonymous request must be
// redirected to the same path and query with a corrected fingerprint
// parameter. Returns the target URL and true when a 307 should be issued:
// the state carries a fingerprint, the backend wants redirects, and the
// request's parameter is missing or stale. The rest of the query string is
// preserved.
func (c *Controller) RedirectURL(st *State, r *http.Request) (string, bool) {
	if !st.fingerprint.IsSet() || !c.backend.ShouldRedirect() {
		return "", false
	}

	q := r.URL.Query()
	if q.Get(HashName) == st.fingerprint.Value() {
		return "", false
	}
	q.Set(HashName, st.fingerprint.Value())

	target := url.URL{Path: r.URL.Path, RawQuery: q.Encode()}
	return target.String(), true
}
