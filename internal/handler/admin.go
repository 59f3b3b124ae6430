package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/tour-experience-booking/internal/model"
)

// AdminAPI is implemented by service.AdminService.
type AdminAPI interface {
	Statistics(ctx context.Context) (*model.Statistics, error)
	ListGuides(ctx context.Context, approved *bool) ([]model.User, error)
	ApproveGuide(ctx context.Context, id uint64) (*model.User, error)
	SetExperienceActive(ctx context.Context, id uint64, active bool) (*model.Experience, error)
}

// AdminHandler serves /api/admin.  Every route requires the admin role.
type AdminHandler struct {
	Admin AdminAPI
}

func NewAdminHandler(s AdminAPI) *AdminHandler {
	return &AdminHandler{Admin: s}
}

type experienceStatusReq struct {
	IsActive *bool `json:"is_active" validate:"required"`
}

func (h *AdminHandler) Statistics(c echo.Context) error {
	ctx, cancel := withTimeout(c)
	defer cancel()
	st, err := h.Admin.Statistics(ctx)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, st)
}

// Guides lists guide accounts, optionally filtered by ?approved=true|false.
func (h *AdminHandler) Guides(c echo.Context) error {
	var approved *bool
	if raw := c.QueryParam("approved"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return errorJSON(c, http.StatusBadRequest, "approved must be true or false")
		}
		approved = &v
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	guides, err := h.Admin.ListGuides(ctx, approved)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"guides": guides})
}

func (h *AdminHandler) ApproveGuide(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return errorJSON(c, http.StatusBadRequest, "invalid id")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	u, err := h.Admin.ApproveGuide(ctx, id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"user": u})
}

// ExperienceStatus activates or deactivates any experience.
func (h *AdminHandler) ExperienceStatus(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return errorJSON(c, http.StatusBadRequest, "invalid id")
	}
	var req experienceStatusReq
	if msg, ok := bind(c, &req); !ok {
		return errorJSON(c, http.StatusBadRequest, msg)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	e, err := h.Admin.SetExperienceActive(ctx, id, *req.IsActive)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"experience": e})
}
