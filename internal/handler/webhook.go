package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/tour-experience-booking/internal/logger"
	"github.com/iliyamo/tour-experience-booking/internal/payment"
)

const maxWebhookBody = 64 << 10

type WebhookParser interface {
	Parse(payload []byte, signature string) (*payment.Event, error)
}

type PaymentEventHandler interface {
	HandlePaymentEvent(ctx context.Context, ev *payment.Event) error
}

// WebhookHandler receives payment provider callbacks.
type WebhookHandler struct {
	Verifier WebhookParser
	Bookings PaymentEventHandler
}

func NewWebhookHandler(v WebhookParser, b PaymentEventHandler) *WebhookHandler {
	return &WebhookHandler{Verifier: v, Bookings: b}
}

// Payment verifies the Stripe-Signature header over the raw body and
// reconciles the referenced booking.
func (h *WebhookHandler) Payment(c echo.Context) error {
	payload, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, "unreadable body")
	}
	ev, err := h.Verifier.Parse(payload, c.Request().Header.Get("Stripe-Signature"))
	if err != nil {
		return respondError(c, err)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	if err := h.Bookings.HandlePaymentEvent(ctx, ev); err != nil {
		return respondError(c, err)
	}
	logger.FromContext(ctx).Debug().Str("event_id", ev.ID).Str("type", ev.Type).Msg("webhook processed")
	return c.JSON(http.StatusOK, echo.Map{"received": true})
}
