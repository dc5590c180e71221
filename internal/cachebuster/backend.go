package cachebuster

import (
	"net/http"
	"net/url"
)

// VaryRegistry is what a full-page cache exposes so a backend can make the
// cache vary by the fingerprint cookie and bypass caching for requests
// that must always be served fresh.
type VaryRegistry interface {
	AddVaryCookie(name string)
	AddBypass(fn func(r *http.Request) bool)
}

// Backend is the page-cache-specific strategy. A cache product with its
// own cookie-based variance (like our Redis page cache) registers the
// fingerprint cookie and no-ops the URL annotation and redirect steps; the
// general backend does the opposite.
type Backend interface {
	Name() string
	OnRegister(reg VaryRegistry)
	AnnotateURL(rawURL string, fp Fingerprint) string
	ShouldRedirect() bool
}

// GeneralBackend serves unknown or absent page caches: it annotates
// outbound gated URLs with the fingerprint parameter and redirects stale
// requests.
type GeneralBackend struct{}

func (GeneralBackend) Name() string { return "general" }

// OnRegister is a no-op: there is no cooperating cache product.
func (GeneralBackend) OnRegister(VaryRegistry) {}

// AnnotateURL appends the fingerprint query parameter when a fingerprint
// is set. Unparseable URLs are returned unchanged.
func (GeneralBackend) AnnotateURL(rawURL string, fp Fingerprint) string {
	if !fp.IsSet() {
		return rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	q := u.Query()
	q.Set(HashName, fp.Value())
	u.RawQuery = q.Encode()
	return u.String()
}

func (GeneralBackend) ShouldRedirect() bool { return true }

// RedisPageBackend cooperates with the in-house Redis full-page cache: the
// cache varies by the fingerprint cookie, so URL annotation and redirects
// are unnecessary. It additionally bypasses caching for requests that
// carry the hash parameter or arrive without a hash cookie, so first-time
// visitors always see fresh pages.
type RedisPageBackend struct{}

func (RedisPageBackend) Name() string { return "redispage" }

// OnRegister wires the fingerprint and logged-in cookies into the page
// cache's key and installs the freshness bypass.
func (RedisPageBackend) OnRegister(reg VaryRegistry) {
	reg.AddVaryCookie(HashName)
	reg.AddVaryCookie(LoggedInCookieName)
	reg.AddBypass(func(r *http.Request) bool {
		if r.URL.Query().Get(HashName) != "" {
			return true
		}
		if _, err := r.Cookie(HashName); err != nil {
			return true
		}
		return false
	})
}

// AnnotateURL is a no-op for this caching implementation.
func (RedisPageBackend) AnnotateURL(rawURL string, _ Fingerprint) string { return rawURL }

// ShouldRedirect is false: cookie variance already partitions the cache.
func (RedisPageBackend) ShouldRedirect() bool { return false }

// SelectBackend probes capabilities once at startup: when the Redis page
// cache is enabled its backend is used, otherwise the general one.
func SelectBackend(redisPageCacheEnabled bool) Backend {
	if redisPageCacheEnabled {
		return RedisPageBackend{}
	}
	return GeneralBackend{}
}
