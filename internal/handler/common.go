package handler

// common.go holds helpers shared by the content, cart and checkout
// handlers: resolving the visitor identity for entitlement queries and
// parsing shared query parameters.

import (
	"context"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/content-paywall/internal/entitlement"
	"github.com/iliyamo/content-paywall/internal/middleware"
	"github.com/iliyamo/content-paywall/internal/model"
	"github.com/iliyamo/content-paywall/internal/repository"
)

// loadVisitor assembles the entitlement visitor for this request and
// returns the session it came from. The session is taken from the
// cache-buster middleware when it ran, otherwise loaded fresh.
func loadVisitor(ctx context.Context, c echo.Context, sessions *repository.SessionRepo) (entitlement.Visitor, *repository.Session, error) {
	var visitor entitlement.Visitor
	if uid, ok := middleware.CurrentUser(c); ok {
		visitor.UserID = &uid
	}
	session, ok := middleware.SessionFromContext(c)
	if !ok {
		var err error
		session, err = sessions.Load(ctx, middleware.SessionID(c))
		if err != nil {
			return visitor, nil, err
		}
	}
	visitor.SessionOrderIDs = session.OrderIDs
	return visitor, session, nil
}

// previewParam parses the operator preview toggle from the query string.
// Only operators get one; for everyone else the toggle does not exist,
// so a customer pasting the parameter into a URL changes nothing.
func previewParam(c echo.Context) *bool {
	if middleware.CurrentRole(c) != model.RoleAdmin {
		return nil
	}
	switch strings.ToLower(c.QueryParam("paywall_status")) {
	case "visible":
		t := true
		return &t
	case "hidden":
		f := false
		return &f
	}
	return nil
}

// paramID parses a numeric path parameter.
func paramID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	return id, err == nil && id > 0
}
