package handler

import (
	"context"
	"math"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/tour-experience-booking/internal/model"
	"github.com/iliyamo/tour-experience-booking/internal/service"
)

// CatalogAPI is implemented by service.CatalogService.
type CatalogAPI interface {
	List(ctx context.Context, q service.ListQuery) (*service.ListResult, error)
	Get(ctx context.Context, id uint64) (*model.Experience, error)
	Availability(ctx context.Context, id uint64, start, end string) ([]model.ExperienceDate, error)
	Reviews(ctx context.Context, id uint64) ([]model.Review, error)
	Mine(ctx context.Context, c service.Caller) ([]model.Experience, error)
	Create(ctx context.Context, c service.Caller, in service.ExperienceInput) (*model.Experience, error)
	Update(ctx context.Context, c service.Caller, id uint64, p service.ExperiencePatch) (*model.Experience, error)
	AddDates(ctx context.Context, c service.Caller, id uint64, dates []string) ([]model.ExperienceDate, error)
}

// CatalogHandler serves /api/experiences.
type CatalogHandler struct {
	Catalog CatalogAPI
}

func NewCatalogHandler(s CatalogAPI) *CatalogHandler {
	return &CatalogHandler{Catalog: s}
}

type experienceReq struct {
	Title          string   `json:"title" validate:"required,max=200"`
	Description    string   `json:"description" validate:"required"`
	Category       string   `json:"category" validate:"required,max=60"`
	Location       string   `json:"location" validate:"required,max=120"`
	PricePerPerson float64  `json:"price_per_person" validate:"gt=0"`
	MaxGroupSize   int      `json:"max_group_size" validate:"min=1,max=500"`
	DurationHours  *float64 `json:"duration_hours" validate:"omitempty,gt=0"`
	Itinerary      string   `json:"itinerary"`
	Includes       string   `json:"includes"`
	Excludes       string   `json:"excludes"`
	Photos         []string `json:"photos" validate:"omitempty,max=20,dive,url"`
	Dates          []string `json:"dates" validate:"omitempty,max=366,dive,datetime=2006-01-02"`
}

type experiencePatchReq struct {
	Title          *string  `json:"title" validate:"omitempty,min=1,max=200"`
	Description    *string  `json:"description"`
	Category       *string  `json:"category" validate:"omitempty,min=1,max=60"`
	Location       *string  `json:"location" validate:"omitempty,min=1,max=120"`
	PricePerPerson *float64 `json:"price_per_person" validate:"omitempty,gt=0"`
	MaxGroupSize   *int     `json:"max_group_size" validate:"omitempty,min=1,max=500"`
	DurationHours  *float64 `json:"duration_hours" validate:"omitempty,gt=0"`
	Itinerary      *string  `json:"itinerary"`
	Includes       *string  `json:"includes"`
	Excludes       *string  `json:"excludes"`
	Photos         []string `json:"photos" validate:"omitempty,max=20,dive,url"`
	IsActive       *bool    `json:"is_active"`
	Dates          []string `json:"dates" validate:"omitempty,max=366,dive,datetime=2006-01-02"`
}

type datesReq struct {
	Dates []string `json:"dates" validate:"required,min=1,max=366,dive,datetime=2006-01-02"`
}

// List searches active experiences of approved guides.
func (h *CatalogHandler) List(c echo.Context) error {
	q := service.ListQuery{
		Category: c.QueryParam("category"),
		Location: c.QueryParam("location"),
		Search:   c.QueryParam("search"),
		Date:     c.QueryParam("date"),
	}
	var ok bool
	if q.MinPrice, ok = floatQuery(c, "min_price"); !ok {
		return errorJSON(c, http.StatusBadRequest, "min_price must be a number")
	}
	if q.MaxPrice, ok = floatQuery(c, "max_price"); !ok {
		return errorJSON(c, http.StatusBadRequest, "max_price must be a number")
	}
	if q.Page, ok = intQuery(c, "page"); !ok {
		return errorJSON(c, http.StatusBadRequest, "page must be an integer")
	}
	if q.PageSize, ok = intQuery(c, "page_size"); !ok {
		return errorJSON(c, http.StatusBadRequest, "page_size must be an integer")
	}

	ctx, cancel := withTimeout(c)
	defer cancel()
	res, err := h.Catalog.List(ctx, q)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// Get returns one experience with its upcoming dates and rating.
func (h *CatalogHandler) Get(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return errorJSON(c, http.StatusBadRequest, "invalid id")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	e, err := h.Catalog.Get(ctx, id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"experience": e})
}

func (h *CatalogHandler) Availability(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return errorJSON(c, http.StatusBadRequest, "invalid id")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	dates, err := h.Catalog.Availability(ctx, id, c.QueryParam("start_date"), c.QueryParam("end_date"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"experience_id": id, "dates": dates})
}

func (h *CatalogHandler) Reviews(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return errorJSON(c, http.StatusBadRequest, "invalid id")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	reviews, err := h.Catalog.Reviews(ctx, id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"reviews": reviews})
}

// Mine lists every experience of the calling guide, inactive ones included.
func (h *CatalogHandler) Mine(c echo.Context) error {
	who, ok := caller(c)
	if !ok {
		return errorJSON(c, http.StatusUnauthorized, "unauthorized")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	list, err := h.Catalog.Mine(ctx, who)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"experiences": list})
}

func (h *CatalogHandler) Create(c echo.Context) error {
	who, ok := caller(c)
	if !ok {
		return errorJSON(c, http.StatusUnauthorized, "unauthorized")
	}
	var req experienceReq
	if msg, ok := bind(c, &req); !ok {
		return errorJSON(c, http.StatusBadRequest, msg)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	e, err := h.Catalog.Create(ctx, who, service.ExperienceInput{
		Title:          req.Title,
		Description:    req.Description,
		Category:       req.Category,
		Location:       req.Location,
		PricePerPerson: req.PricePerPerson,
		MaxGroupSize:   req.MaxGroupSize,
		DurationHours:  req.DurationHours,
		Itinerary:      req.Itinerary,
		Includes:       req.Includes,
		Excludes:       req.Excludes,
		Photos:         req.Photos,
		Dates:          req.Dates,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"experience": e})
}

func (h *CatalogHandler) Update(c echo.Context) error {
	who, ok := caller(c)
	if !ok {
		return errorJSON(c, http.StatusUnauthorized, "unauthorized")
	}
	id, ok := pathID(c, "id")
	if !ok {
		return errorJSON(c, http.StatusBadRequest, "invalid id")
	}
	var req experiencePatchReq
	if msg, ok := bind(c, &req); !ok {
		return errorJSON(c, http.StatusBadRequest, msg)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	e, err := h.Catalog.Update(ctx, who, id, service.ExperiencePatch{
		Title:          req.Title,
		Description:    req.Description,
		Category:       req.Category,
		Location:       req.Location,
		PricePerPerson: req.PricePerPerson,
		MaxGroupSize:   req.MaxGroupSize,
		DurationHours:  req.DurationHours,
		Itinerary:      req.Itinerary,
		Includes:       req.Includes,
		Excludes:       req.Excludes,
		Photos:         req.Photos,
		IsActive:       req.IsActive,
		Dates:          req.Dates,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"experience": e})
}

// AddDates offers more days for an existing experience.
func (h *CatalogHandler) AddDates(c echo.Context) error {
	who, ok := caller(c)
	if !ok {
		return errorJSON(c, http.StatusUnauthorized, "unauthorized")
	}
	id, ok := pathID(c, "id")
	if !ok {
		return errorJSON(c, http.StatusBadRequest, "invalid id")
	}
	var req datesReq
	if msg, ok := bind(c, &req); !ok {
		return errorJSON(c, http.StatusBadRequest, msg)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	dates, err := h.Catalog.AddDates(ctx, who, id, req.Dates)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"experience_id": id, "dates": dates})
}

func floatQuery(c echo.Context, name string) (*float64, bool) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, true
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, false
	}
	return &v, true
}

func intQuery(c echo.Context, name string) (int, bool) {
	raw := c.QueryParam(name)
	if raw == "" {
		return 0, true
	}
	v, err := strconv.Atoi(raw)
	return v, err == nil
}
