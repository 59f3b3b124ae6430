// Package router maps the HTTP API onto handlers and attaches the
// authentication, role, cache and rate-limit middleware each route needs.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/tour-experience-booking/internal/handler"
	"github.com/iliyamo/tour-experience-booking/internal/middleware"
	"github.com/iliyamo/tour-experience-booking/internal/model"
)

// RegisterRoutes registers routes that do not belong to the API, currently
// only the health check.
func RegisterRoutes(e *echo.Echo, db handler.Pinger) {
	e.GET("/healthz", handler.Health(db))
}

// RegisterAuth registers /api/auth.  Register, login and refresh are public
// and rate limited; profile and logout need an access token.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string, limit echo.MiddlewareFunc) {
	g := e.Group("/api/auth")
	g.POST("/register", a.Register, limit)
	g.POST("/login", a.Login, limit)
	g.POST("/refresh", a.Refresh, limit)

	auth := middleware.JWTAuth(jwtSecret)
	g.GET("/profile", a.Profile, auth)
	g.POST("/logout", a.Logout, auth)
}

// RegisterCatalog registers /api/experiences.  Browsing is public and
// served through the response cache; writes are restricted to guides and
// ownership is checked by the service.
func RegisterCatalog(e *echo.Echo, h *handler.CatalogHandler, jwtSecret string, cache echo.MiddlewareFunc) {
	g := e.Group("/api/experiences")
	g.GET("", h.List, cache)
	g.GET("/:id", h.Get, cache)
	g.GET("/:id/availability", h.Availability, cache)
	g.GET("/:id/reviews", h.Reviews, cache)

	guide := []echo.MiddlewareFunc{middleware.JWTAuth(jwtSecret), middleware.RequireRole(model.RoleGuide)}
	g.GET("/my-experiences", h.Mine, guide...)
	g.POST("", h.Create, guide...)
	g.PUT("/:id", h.Update, guide...)
	g.POST("/:id/dates", h.AddDates, guide...)
}
