package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/tour-experience-booking/internal/model"
	"github.com/iliyamo/tour-experience-booking/internal/service"
)

type ReviewAPI interface {
	Create(ctx context.Context, c service.Caller, in service.CreateReviewInput) (*model.Review, error)
}

// ReviewHandler serves /api/reviews.
type ReviewHandler struct {
	Reviews ReviewAPI
}

func NewReviewHandler(s ReviewAPI) *ReviewHandler {
	return &ReviewHandler{Reviews: s}
}

type createReviewReq struct {
	BookingID uint64 `json:"booking_id" validate:"required"`
	Rating    int    `json:"rating" validate:"min=1,max=5"`
	Comment   string `json:"comment" validate:"max=4000"`
}

func (h *ReviewHandler) Create(c echo.Context) error {
	who, ok := caller(c)
	if !ok {
		return errorJSON(c, http.StatusUnauthorized, "unauthorized")
	}
	var req createReviewReq
	if msg, ok := bind(c, &req); !ok {
		return errorJSON(c, http.StatusBadRequest, msg)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	r, err := h.Reviews.Create(ctx, who, service.CreateReviewInput{
		BookingID: req.BookingID,
		Rating:    req.Rating,
		Comment:   req.Comment,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"review": r})
}
