package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Health answers liveness checks. It deliberately touches neither the
// database nor Redis, so a degraded cache never flips the service to
// unhealthy.
func Health(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}
