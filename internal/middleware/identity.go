package middleware

// identity.go resolves who the visitor is before any gated route runs.
// Registered users present a Bearer token; anonymous visitors are tracked
// by an opaque session-id cookie. Neither is required: a request carrying
// no proof at all is simply an anonymous visitor with a fresh session.

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/content-paywall/internal/repository"
)

// SessionCookieName carries the anonymous visitor's session id.
const SessionCookieName = "paywall_session"

// OptionalAuth parses a Bearer token when one is present and stores the
// subject and role in context under "user_id" and "role". Unlike JWTAuth
// it never rejects: a missing or invalid token just downgrades the
// request to anonymous. Gated content routes use this so guests and
// customers share one code path.
func OptionalAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return next(c)
			}
			raw := strings.TrimPrefix(auth, "Bearer ")
			tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, echo.ErrUnauthorized
				}
				return []byte(secret), nil
			})
			if err != nil || !tok.Valid {
				return next(c)
			}
			if claims, ok := tok.Claims.(jwt.MapClaims); ok {
				c.Set("user_id", claims["sub"])
				c.Set("role", claims["role"])
			}
			return next(c)
		}
	}
}

// EnsureSession guarantees every visitor carries a session-id cookie and
// stores the id in context under "session_id". The cookie is issued on
// first contact and kept stable afterwards so the Redis session survives
// across requests.
func EnsureSession() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if ck, err := c.Cookie(SessionCookieName); err == nil && ck.Value != "" {
				c.Set("session_id", ck.Value)
				return next(c)
			}
			sid, err := repository.NewSessionID()
			if err != nil {
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": "session init failed"})
			}
			c.SetCookie(&http.Cookie{
				Name:     SessionCookieName,
				Value:    sid,
				Path:     "/",
				HttpOnly: true,
				Expires:  time.Now().Add(7 * 24 * time.Hour),
			})
			c.Set("session_id", sid)
			return next(c)
		}
	}
}

// CurrentUser returns the authenticated user id from context. The second
// return value is false for anonymous visitors. The sub claim arrives as
// json float64 after parsing, so both numeric shapes are accepted.
func CurrentUser(c echo.Context) (uint64, bool) {
	v := c.Get("user_id")
	if v == nil {
		return 0, false
	}
	switch t := v.(type) {
	case uint64:
		return t, true
	case float64:
		if t > 0 {
			return uint64(t), true
		}
	case string:
		if n, err := strconv.ParseUint(t, 10, 64); err == nil && n > 0 {
			return n, true
		}
	}
	return 0, false
}

// CurrentRole returns the role claim from context, or "" for anonymous
// visitors.
func CurrentRole(c echo.Context) string {
	if v, ok := c.Get("role").(string); ok {
		return v
	}
	return ""
}

// SessionID returns the visitor session id stored by EnsureSession.
func SessionID(c echo.Context) string {
	if v, ok := c.Get("session_id").(string); ok {
		return v
	}
	return ""
}

// currentUserID renders the visitor identity for rate-limit keys. It
// prefers the authenticated user id and falls back to "anon".
func currentUserID(c echo.Context) string {
	if uid, ok := CurrentUser(c); ok {
		return fmt.Sprintf("%d", uid)
	}
	return "anon"
}
