// Package handler adapts HTTP requests to the service layer.  Handlers
// bind and validate the body, bound the call with a timeout and translate
// service errors into JSON {"error": ...} responses.
package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/tour-experience-booking/internal/logger"
	"github.com/iliyamo/tour-experience-booking/internal/middleware"
	"github.com/iliyamo/tour-experience-booking/internal/payment"
	"github.com/iliyamo/tour-experience-booking/internal/repository"
	"github.com/iliyamo/tour-experience-booking/internal/service"
)

const requestTimeout = 5 * time.Second

func withTimeout(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}

func errorJSON(c echo.Context, status int, msg string) error {
	return c.JSON(status, echo.Map{"error": msg})
}

// caller reads the identity stored by middleware.JWTAuth.
func caller(c echo.Context) (service.Caller, bool) {
	id, role, ok := middleware.CurrentUser(c)
	if !ok {
		return service.Caller{}, false
	}
	return service.Caller{UserID: id, Role: role}, true
}

func pathID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}

// bind decodes and validates the request body.  The returned message is
// meant for the client.
func bind(c echo.Context, dst any) (string, bool) {
	if err := c.Bind(dst); err != nil {
		return "invalid body", false
	}
	if err := c.Validate(dst); err != nil {
		return err.Error(), false
	}
	return "", true
}

// respondError maps service and repository errors to HTTP responses.
func respondError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, service.ErrValidation):
		return errorJSON(c, http.StatusBadRequest, strings.TrimPrefix(err.Error(), service.ErrValidation.Error()+": "))
	case errors.Is(err, repository.ErrEmailExists):
		return errorJSON(c, http.StatusBadRequest, "email already registered")
	case errors.Is(err, repository.ErrInsufficientSlots):
		return errorJSON(c, http.StatusBadRequest, "not enough available slots")
	case errors.Is(err, service.ErrInvalidCredentials):
		return errorJSON(c, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, payment.ErrPaymentMethodRequired):
		return errorJSON(c, http.StatusBadRequest, "payment_method_id is required")
	case errors.Is(err, payment.ErrInvalidSignature):
		return errorJSON(c, http.StatusBadRequest, "invalid signature")
	case errors.Is(err, payment.ErrPaymentFailed):
		return errorJSON(c, http.StatusPaymentRequired, "payment failed")
	case errors.Is(err, repository.ErrGuideNotApproved):
		return errorJSON(c, http.StatusForbidden, "guide not approved")
	case errors.Is(err, repository.ErrForbidden):
		return errorJSON(c, http.StatusForbidden, "forbidden")
	case errors.Is(err, repository.ErrNotFound):
		return errorJSON(c, http.StatusNotFound, "not found")
	case errors.Is(err, repository.ErrReviewExists):
		return errorJSON(c, http.StatusConflict, "booking already reviewed")
	case errors.Is(err, repository.ErrInvalidTransition):
		return errorJSON(c, http.StatusConflict, "booking status does not allow this action")
	case errors.Is(err, repository.ErrConflict):
		return errorJSON(c, http.StatusConflict, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return errorJSON(c, http.StatusGatewayTimeout, "timeout")
	}
	logger.FromContext(c.Request().Context()).Error().Err(err).Str("path", c.Path()).Msg("unhandled error")
	return errorJSON(c, http.StatusInternalServerError, "internal error")
}
