package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/tour-experience-booking/internal/model"
	"github.com/iliyamo/tour-experience-booking/internal/service"
)

// BookingAPI is implemented by service.BookingService.
type BookingAPI interface {
	Create(ctx context.Context, c service.Caller, in service.CreateBookingInput) (*model.Booking, error)
	Cancel(ctx context.Context, c service.Caller, id uint64) (*model.Booking, error)
	Complete(ctx context.Context, c service.Caller, id uint64) (*model.Booking, error)
	Get(ctx context.Context, c service.Caller, id uint64) (*model.Booking, error)
	ListMine(ctx context.Context, c service.Caller) ([]model.Booking, error)
	ListForGuide(ctx context.Context, c service.Caller) ([]model.Booking, error)
}

// BookingHandler serves /api/bookings.
type BookingHandler struct {
	Bookings BookingAPI
}

func NewBookingHandler(s BookingAPI) *BookingHandler {
	return &BookingHandler{Bookings: s}
}

type createBookingReq struct {
	ExperienceID    uint64 `json:"experience_id" validate:"required"`
	DateID          uint64 `json:"experience_date_id" validate:"required"`
	GuestCount      int    `json:"guest_count" validate:"min=1"`
	PaymentMethodID string `json:"payment_method_id" validate:"omitempty,max=255"`
}

// Create reserves places on one date.  The body names the date by its id
// as returned from the availability endpoint.
func (h *BookingHandler) Create(c echo.Context) error {
	who, ok := caller(c)
	if !ok {
		return errorJSON(c, http.StatusUnauthorized, "unauthorized")
	}
	var req createBookingReq
	if msg, ok := bind(c, &req); !ok {
		return errorJSON(c, http.StatusBadRequest, msg)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	b, err := h.Bookings.Create(ctx, who, service.CreateBookingInput{
		ExperienceID:    req.ExperienceID,
		DateID:          req.DateID,
		GuestCount:      req.GuestCount,
		PaymentMethodID: req.PaymentMethodID,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"booking": b})
}

func (h *BookingHandler) Mine(c echo.Context) error {
	who, ok := caller(c)
	if !ok {
		return errorJSON(c, http.StatusUnauthorized, "unauthorized")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	list, err := h.Bookings.ListMine(ctx, who)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"bookings": list})
}

// Guide lists bookings made on the calling guide's experiences.
func (h *BookingHandler) Guide(c echo.Context) error {
	who, ok := caller(c)
	if !ok {
		return errorJSON(c, http.StatusUnauthorized, "unauthorized")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	list, err := h.Bookings.ListForGuide(ctx, who)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"bookings": list})
}

func (h *BookingHandler) Get(c echo.Context) error {
	return h.byID(c, h.Bookings.Get)
}

// Cancel cancels a pending or confirmed booking and releases its slots.
func (h *BookingHandler) Cancel(c echo.Context) error {
	return h.byID(c, h.Bookings.Cancel)
}

// Complete marks a confirmed booking as completed after the tour.
func (h *BookingHandler) Complete(c echo.Context) error {
	return h.byID(c, h.Bookings.Complete)
}

func (h *BookingHandler) byID(c echo.Context, op func(context.Context, service.Caller, uint64) (*model.Booking, error)) error {
	who, ok := caller(c)
	if !ok {
		return errorJSON(c, http.StatusUnauthorized, "unauthorized")
	}
	id, ok := pathID(c, "id")
	if !ok {
		return errorJSON(c, http.StatusBadRequest, "invalid id")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	b, err := op(ctx, who, id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"booking": b})
}
