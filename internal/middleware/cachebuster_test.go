package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/content-paywall/internal/cachebuster"
	"github.com/iliyamo/content-paywall/internal/repository"
)

// A nil Redis client makes SessionRepo degrade to empty sessions, which
// is exactly what these tests need: the protocol runs, computes
// NO_FINGERPRINT, and stays quiet.
func newTestCacheBuster(enabled bool) *CacheBuster {
	ctrl := cachebuster.NewController(cachebuster.GeneralBackend{}, "test-secret")
	return NewCacheBuster(enabled, ctrl, repository.NewSessionRepo(nil, 0))
}

func runRequest(t *testing.T, cb *CacheBuster, req *http.Request) (*httptest.ResponseRecorder, bool) {
	t.Helper()
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("session_id", "sid-1")

	called := false
	err := cb.Middleware()(func(c echo.Context) error {
		called = true
		return c.String(http.StatusOK, "page")
	})(c)
	require.NoError(t, err)
	return rec, called
}

func TestCacheBuster_Middleware(t *testing.T) {
	t.Run("disabled protocol passes straight through", func(t *testing.T) {
		cb := newTestCacheBuster(false)
		req := httptest.NewRequest(http.MethodGet, "/v1/products/1/page", nil)
		_, called := runRequest(t, cb, req)
		assert.True(t, called)
	})

	t.Run("empty session stays NO_FINGERPRINT with no redirect", func(t *testing.T) {
		cb := newTestCacheBuster(true)
		req := httptest.NewRequest(http.MethodGet, "/v1/products/1/page?paywall_hash=stale", nil)
		rec, called := runRequest(t, cb, req)

		assert.True(t, called, "stale parameter without a fingerprint is not corrected")
		byName := map[string]string{}
		for _, ck := range rec.Result().Cookies() {
			byName[ck.Name] = ck.Value
		}
		assert.Equal(t, cachebuster.ValueNone, byName[cachebuster.HashName],
			"stateless visitors carry the sentinel, not a real fingerprint")
		assert.Equal(t, "N", byName[cachebuster.LoggedInCookieName])
	})

	t.Run("mutating methods are ignored", func(t *testing.T) {
		cb := newTestCacheBuster(true)
		req := httptest.NewRequest(http.MethodPost, "/v1/cart/items", nil)
		_, called := runRequest(t, cb, req)
		assert.True(t, called)
	})

	t.Run("crawlers are ignored", func(t *testing.T) {
		cb := newTestCacheBuster(true)
		req := httptest.NewRequest(http.MethodGet, "/v1/products/1/page", nil)
		req.Header.Set("User-Agent", "Googlebot/2.1 (+http://www.google.com/bot.html)")
		_, called := runRequest(t, cb, req)
		assert.True(t, called)
	})
}

// stubSessions serves a canned session, standing in for the Redis store.
type stubSessions struct{ s *repository.Session }

func (f stubSessions) Load(ctx context.Context, sid string) (*repository.Session, error) {
	return f.s, nil
}

func TestCacheBuster_RedirectScope(t *testing.T) {
	newCB := func() *CacheBuster {
		ctrl := cachebuster.NewController(cachebuster.GeneralBackend{}, "test-secret")
		return NewCacheBuster(true, ctrl, stubSessions{s: &repository.Session{CartProductIDs: []uint64{10}}})
	}
	run := func(t *testing.T, userID interface{}) (*httptest.ResponseRecorder, bool) {
		t.Helper()
		e := echo.New()
		req := httptest.NewRequest(http.MethodGet, "/v1/products/10/page?paywall_hash=stale", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.Set("session_id", "sid-1")
		if userID != nil {
			c.Set("user_id", userID)
		}
		called := false
		err := newCB().Middleware()(func(c echo.Context) error {
			called = true
			return c.String(http.StatusOK, "page")
		})(c)
		require.NoError(t, err)
		return rec, called
	}

	t.Run("anonymous visitor with a stale parameter is corrected", func(t *testing.T) {
		rec, called := run(t, nil)
		assert.False(t, called)
		assert.Equal(t, http.StatusTemporaryRedirect, rec.Code)
		assert.Contains(t, rec.Header().Get(echo.HeaderLocation), cachebuster.HashName+"=")
	})

	t.Run("logged-in visitor is never redirected", func(t *testing.T) {
		rec, called := run(t, float64(42))
		assert.True(t, called, "enforcement is scoped to anonymous requests")
		assert.Equal(t, http.StatusOK, rec.Code)

		// Cookies still sync, with the logged-in flag raised.
		byName := map[string]string{}
		for _, ck := range rec.Result().Cookies() {
			byName[ck.Name] = ck.Value
		}
		assert.Equal(t, "Y", byName[cachebuster.LoggedInCookieName])
		assert.NotEqual(t, cachebuster.ValueNone, byName[cachebuster.HashName])
	})
}

func TestIgnorableRequest(t *testing.T) {
	get := httptest.NewRequest(http.MethodGet, "/page", nil)
	get.Header.Set("User-Agent", "Mozilla/5.0")
	assert.False(t, ignorableRequest(get))

	head := httptest.NewRequest(http.MethodHead, "/page", nil)
	assert.False(t, ignorableRequest(head))

	post := httptest.NewRequest(http.MethodPost, "/page", nil)
	assert.True(t, ignorableRequest(post))

	spider := httptest.NewRequest(http.MethodGet, "/page", nil)
	spider.Header.Set("User-Agent", "AhrefsSpider")
	assert.True(t, ignorableRequest(spider))
}

func TestCurrentUser(t *testing.T) {
	e := echo.New()
	ctx := func(v interface{}) echo.Context {
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
		if v != nil {
			c.Set("user_id", v)
		}
		return c
	}

	t.Run("absent means anonymous", func(t *testing.T) {
		_, ok := CurrentUser(ctx(nil))
		assert.False(t, ok)
	})

	t.Run("json float64 sub claim", func(t *testing.T) {
		uid, ok := CurrentUser(ctx(float64(42)))
		require.True(t, ok)
		assert.Equal(t, uint64(42), uid)
	})

	t.Run("numeric string", func(t *testing.T) {
		uid, ok := CurrentUser(ctx("7"))
		require.True(t, ok)
		assert.Equal(t, uint64(7), uid)
	})

	t.Run("garbage is anonymous", func(t *testing.T) {
		_, ok := CurrentUser(ctx("not-a-number"))
		assert.False(t, ok)
	})
}

func TestEnsureSession(t *testing.T) {
	e := echo.New()

	t.Run("issues a cookie on first contact", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		err := EnsureSession()(func(c echo.Context) error { return nil })(c)
		require.NoError(t, err)

		assert.NotEmpty(t, SessionID(c))
		cookies := rec.Result().Cookies()
		require.Len(t, cookies, 1)
		assert.Equal(t, SessionCookieName, cookies[0].Name)
		assert.Equal(t, SessionID(c), cookies[0].Value)
	})

	t.Run("keeps an existing session id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "existing"})
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		err := EnsureSession()(func(c echo.Context) error { return nil })(c)
		require.NoError(t, err)

		assert.Equal(t, "existing", SessionID(c))
		assert.Empty(t, rec.Result().Cookies())
	})
}
