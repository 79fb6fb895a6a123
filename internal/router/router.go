package router // package router registers the worker's HTTP routes

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/rental-booking/internal/handler"
)

// RegisterRoutes registers the liveness and readiness endpoints. The
// process serves no booking API over HTTP.
func RegisterRoutes(e *echo.Echo, ready *handler.ReadinessHandler) {
	e.GET("/healthz", handler.Health)
	e.GET("/readyz", ready.Ready)
}
