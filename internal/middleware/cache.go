package middleware

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/content-paywall/internal/config"
)

// PageCache is the Redis full-page response cache. It is the shared cache
// the fingerprint protocol exists to keep honest: without variance, one
// visitor's gated page would be served to everyone. Cache-buster backends
// register cookie variance and bypass predicates on it at startup, before
// the middleware is mounted, through AddVaryCookie and AddBypass.
type PageCache struct {
	cfg         config.PageCacheConfig
	rdb         *redis.Client
	varyCookies []string
	bypasses    []func(*http.Request) bool
}

// NewPageCache builds a PageCache. A nil Redis client disables caching.
func NewPageCache(cfg config.PageCacheConfig, rdb *redis.Client) *PageCache {
	return &PageCache{cfg: cfg, rdb: rdb}
}

// AddVaryCookie makes the named cookie's value part of every cache key,
// so visitors with different values get separate entries.
func (p *PageCache) AddVaryCookie(name string) {
	p.varyCookies = append(p.varyCookies, name)
}

// AddBypass registers a predicate; any request it matches is served fresh
// and never stored.
func (p *PageCache) AddBypass(fn func(*http.Request) bool) {
	p.bypasses = append(p.bypasses, fn)
}

// Enabled reports whether the cache will actually store anything.
func (p *PageCache) Enabled() bool { return p.cfg.Enabled && p.rdb != nil }

// captureWriter captures response body/status while forwarding to the client.
type captureWriter struct {
	http.ResponseWriter
	status int
	buf    bytes.Buffer
	size   int64
	limit  int64
}

func (cw *captureWriter) WriteHeader(code int) {
	cw.status = code
	cw.ResponseWriter.WriteHeader(code)
}
func (cw *captureWriter) Write(b []byte) (int, error) {
	if cw.limit <= 0 || cw.size < cw.limit {
		remain := cw.limit - cw.size
		if cw.limit <= 0 {
			cw.buf.Write(b)
		} else if remain > 0 {
			if int64(len(b)) <= remain {
				cw.buf.Write(b)
			} else {
				cw.buf.Write(b[:remain])
			}
		}
		cw.size += int64(len(b))
	}
	return cw.ResponseWriter.Write(b)
}

// cacheKey builds a stable key honoring prefix/strategy plus the values
// of every registered vary cookie. An absent cookie contributes the empty
// string, which keys first-time visitors together.
func (p *PageCache) cacheKey(c echo.Context) string {
	r := c.Request()
	method := r.Method
	route := c.Path()
	query := r.URL.RawQuery

	parts := []string{p.cfg.Prefix}
	switch strings.ToLower(p.cfg.KeyStrategy) {
	case "route":
		parts = append(parts, "route", route)
	case "method_route":
		parts = append(parts, "method", method, "route", route)
	case "method_route_query":
		parts = append(parts, "method", method, "route", route, "q", query)
	default: // "route_query"
		parts = append(parts, "route", route, "q", query)
	}
	for _, name := range p.varyCookies {
		val := ""
		if ck, err := r.Cookie(name); err == nil {
			val = ck.Value
		}
		parts = append(parts, "ck", name, val)
	}

	tail := strings.Join(parts[1:], ":")
	sum := sha1.Sum([]byte(tail))
	return fmt.Sprintf("%s:%x", parts[0], sum[:])
}

// encodePayload packs: [4 bytes status][4 bytes headerLen][headerJSON][body]
func encodePayload(status int, header http.Header, body []byte) ([]byte, error) {
	hdrJSON, err := json.Marshal(header)
	if err != nil {
		return nil, err
	}
	total := 4 + 4 + len(hdrJSON) + len(body)
	out := make([]byte, total)
	binary.BigEndian.PutUint32(out[0:4], uint32(status))
	binary.BigEndian.PutUint32(out[4:8], uint32(len(hdrJSON)))
	copy(out[8:8+len(hdrJSON)], hdrJSON)
	copy(out[8+len(hdrJSON):], body)
	return out, nil
}

func decodePayload(bs []byte) (status int, header http.Header, body []byte, ok bool) {
	if len(bs) < 8 {
		return 0, nil, nil, false
	}
	status = int(binary.BigEndian.Uint32(bs[0:4]))
	hlen := int(binary.BigEndian.Uint32(bs[4:8]))
	if 8+hlen > len(bs) || hlen < 0 {
		return 0, nil, nil, false
	}
	var hdr http.Header
	if hlen > 0 {
		if err := json.Unmarshal(bs[8:8+hlen], &hdr); err != nil {
			return 0, nil, nil, false
		}
	} else {
		hdr = make(http.Header)
	}
	body = bs[8+hlen:]
	return status, hdr, body, true
}

// Middleware returns the Echo middleware. Stored entries keep headers +
// body so clients see identical formatting (e.g. pretty JSON) as the
// original response.
func (p *PageCache) Middleware() echo.MiddlewareFunc {
	if !p.Enabled() {
		return func(next echo.HandlerFunc) echo.HandlerFunc {
			return func(c echo.Context) error { return next(c) }
		}
	}
	ttl := p.cfg.TTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	maxBody := int64(p.cfg.MaxBodyBytes)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !p.cfg.Methods[strings.ToUpper(c.Request().Method)] {
				return next(c)
			}
			for _, bypass := range p.bypasses {
				if bypass(c.Request()) {
					return next(c)
				}
			}

			ctx := c.Request().Context()
			key := p.cacheKey(c)

			// Try get from Redis
			if bs, err := p.rdb.Get(ctx, key).Bytes(); err == nil && len(bs) >= 8 {
				if status, hdr, body, ok := decodePayload(bs); ok {
					// Restore headers; skip Content-Length (Echo will handle)
					for k, vals := range hdr {
						if strings.EqualFold(k, "Content-Length") {
							continue
						}
						for _, v := range vals {
							c.Response().Header().Add(k, v)
						}
					}
					c.Response().Header().Set("X-Cache", "HIT")
					c.Response().WriteHeader(status)
					if len(body) > 0 {
						_, _ = c.Response().Write(body)
					}
					return nil
				}
			}

			// Miss: capture
			cw := &captureWriter{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: maxBody}
			c.Response().Writer = cw
			c.Response().Header().Set("X-Cache", "MISS")

			if err := next(c); err != nil {
				return err
			}

			if cw.status == http.StatusOK {
				hdr := make(http.Header, len(c.Response().Header()))
				for k, vals := range c.Response().Header() {
					vv := make([]string, len(vals))
					copy(vv, vals)
					hdr[k] = vv
				}
				body := cw.buf.Bytes()
				if maxBody > 0 && int64(len(body)) > maxBody {
					body = body[:maxBody]
				}
				if payload, err := encodePayload(cw.status, hdr, body); err == nil {
					_ = p.rdb.SetEx(context.Background(), key, payload, ttl).Err()
				}
			}
			return nil
		}
	}
}
