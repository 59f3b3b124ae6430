package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/tour-experience-booking/internal/handler"
	"github.com/iliyamo/tour-experience-booking/internal/model"
	"github.com/iliyamo/tour-experience-booking/internal/utils"
)

const secret = "router-secret"

func passThrough(next echo.HandlerFunc) echo.HandlerFunc { return next }

func newServer() *echo.Echo {
	e := echo.New()
	RegisterRoutes(e, nil)
	RegisterAuth(e, handler.NewAuthHandler(nil), secret, passThrough)
	RegisterCatalog(e, handler.NewCatalogHandler(nil), secret, passThrough)
	RegisterBookings(e, handler.NewBookingHandler(nil), handler.NewReviewHandler(nil), handler.NewWebhookHandler(nil, nil), secret, passThrough)
	RegisterAdmin(e, handler.NewAdminHandler(nil), secret)
	return e
}

func request(t *testing.T, e *echo.Echo, method, path, role string) int {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if role != "" {
		tok, err := utils.NewAccessToken(secret, 9, role, 5)
		require.NoError(t, err)
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+tok.Token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec.Code
}

func TestRoutesRegistered(t *testing.T) {
	e := newServer()
	have := map[string]bool{}
	for _, r := range e.Routes() {
		have[r.Method+" "+r.Path] = true
	}
	for _, want := range []string{
		"POST /api/auth/register",
		"POST /api/auth/login",
		"GET /api/auth/profile",
		"GET /api/experiences",
		"GET /api/experiences/:id",
		"GET /api/experiences/:id/availability",
		"GET /api/experiences/my-experiences",
		"POST /api/experiences",
		"PUT /api/experiences/:id",
		"POST /api/bookings",
		"GET /api/bookings/my-bookings",
		"GET /api/bookings/guide",
		"DELETE /api/bookings/:id",
		"PUT /api/bookings/:id/complete",
		"POST /api/reviews",
		"POST /api/payments/webhook",
		"GET /api/admin/statistics",
		"PUT /api/admin/guides/:id/approve",
		"PUT /api/admin/experiences/:id/status",
		"GET /healthz",
	} {
		assert.True(t, have[want], want)
	}
}

func TestRouteGuards(t *testing.T) {
	e := newServer()

	assert.Equal(t, http.StatusOK, request(t, e, http.MethodGet, "/healthz", ""))

	cases := []struct {
		method, path, role string
		status             int
	}{
		{http.MethodGet, "/api/auth/profile", "", http.StatusUnauthorized},
		{http.MethodGet, "/api/admin/statistics", "", http.StatusUnauthorized},
		{http.MethodGet, "/api/admin/statistics", model.RoleTraveler, http.StatusForbidden},
		{http.MethodGet, "/api/admin/guides", model.RoleGuide, http.StatusForbidden},
		{http.MethodPost, "/api/experiences", model.RoleTraveler, http.StatusForbidden},
		{http.MethodGet, "/api/experiences/my-experiences", model.RoleAdmin, http.StatusForbidden},
		{http.MethodPost, "/api/bookings", model.RoleGuide, http.StatusForbidden},
		{http.MethodGet, "/api/bookings/guide", model.RoleTraveler, http.StatusForbidden},
		{http.MethodPut, "/api/bookings/1/complete", model.RoleTraveler, http.StatusForbidden},
		{http.MethodDelete, "/api/bookings/1", model.RoleGuide, http.StatusForbidden},
		{http.MethodPost, "/api/reviews", model.RoleGuide, http.StatusForbidden},
		{http.MethodPost, "/api/reviews", "", http.StatusUnauthorized},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.status, request(t, e, tc.method, tc.path, tc.role), tc.method+" "+tc.path+" as "+tc.role)
	}
}
