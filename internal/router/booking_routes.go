package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/tour-experience-booking/internal/handler"
	"github.com/iliyamo/tour-experience-booking/internal/middleware"
	"github.com/iliyamo/tour-experience-booking/internal/model"
)

// RegisterBookings registers bookings, reviews and the payment webhook.
// Visibility of a single booking (traveler, guide or admin) is decided by
// the service, so the group only requires a valid token.
func RegisterBookings(e *echo.Echo, b *handler.BookingHandler, r *handler.ReviewHandler, w *handler.WebhookHandler, jwtSecret string, limit echo.MiddlewareFunc) {
	g := e.Group("/api/bookings", middleware.JWTAuth(jwtSecret))
	g.POST("", b.Create, middleware.RequireRole(model.RoleTraveler), limit)
	g.GET("/my-bookings", b.Mine, middleware.RequireRole(model.RoleTraveler))
	g.GET("/guide", b.Guide, middleware.RequireRole(model.RoleGuide))
	g.GET("/:id", b.Get)
	g.DELETE("/:id", b.Cancel, middleware.RequireRole(model.RoleTraveler, model.RoleAdmin))
	g.PUT("/:id/complete", b.Complete, middleware.RequireRole(model.RoleGuide, model.RoleAdmin))

	e.POST("/api/reviews", r.Create, middleware.JWTAuth(jwtSecret), middleware.RequireRole(model.RoleTraveler))

	// Signed by the payment provider, not by our tokens.
	e.POST("/api/payments/webhook", w.Payment)
}

// RegisterAdmin registers /api/admin.  Every route requires the admin role.
func RegisterAdmin(e *echo.Echo, h *handler.AdminHandler, jwtSecret string) {
	g := e.Group("/api/admin", middleware.JWTAuth(jwtSecret), middleware.RequireRole(model.RoleAdmin))
	g.GET("/statistics", h.Statistics)
	g.GET("/guides", h.Guides)
	g.PUT("/guides/:id/approve", h.ApproveGuide)
	g.PUT("/experiences/:id/status", h.ExperienceStatus)
}
