package service

import (
    "context"
    "database/sql"
    "strings"
    "time"

    "github.com/iliyamo/tour-experience-booking/internal/logger"
    "github.com/iliyamo/tour-experience-booking/internal/model"
    "github.com/iliyamo/tour-experience-booking/internal/repository"
)

const (
    defaultPageSize = 20
    maxPageSize     = 100
)

type CatalogService struct {
    db          *sql.DB
    users       *repository.UserRepo
    experiences *repository.ExperienceRepo
    dates       *repository.ExperienceDateRepo
    reviews     *repository.ReviewRepo
    now         func() time.Time
}

func NewCatalogService(db *sql.DB, users *repository.UserRepo, experiences *repository.ExperienceRepo,
    dates *repository.ExperienceDateRepo, reviews *repository.ReviewRepo) *CatalogService {
    return &CatalogService{db: db, users: users, experiences: experiences, dates: dates, reviews: reviews, now: time.Now}
}

// ListQuery carries the public catalog filters.  Prices are in currency
// units as sent by clients.
type ListQuery struct {
    Category string
    Location string
    Search   string
    MinPrice *float64
    MaxPrice *float64
    Date     string
    Page     int
    PageSize int
}

type ListResult struct {
    Experiences []model.Experience `json:"experiences"`
    Total       int64              `json:"total"`
    Page        int                `json:"page"`
    PageSize    int                `json:"page_size"`
}

// List returns one page of bookable experiences, newest first.
func (s *CatalogService) List(ctx context.Context, lq ListQuery) (*ListResult, error) {
    page, size := lq.Page, lq.PageSize
    if page < 1 {
        page = 1
    }
    if size < 1 {
        size = defaultPageSize
    }
    if size > maxPageSize {
        size = maxPageSize
    }
    f := repository.ExperienceFilter{
        Category: strings.ToLower(strings.TrimSpace(lq.Category)),
        Location: strings.TrimSpace(lq.Location),
        Search:   strings.TrimSpace(lq.Search),
        Limit:    size,
        Offset:   (page - 1) * size,
    }
    if f.Category != "" && !model.ValidCategory(f.Category) {
        return nil, invalid("unknown category %q", lq.Category)
    }
    if lq.MinPrice != nil {
        c := model.ToCents(*lq.MinPrice)
        f.MinPriceCents = &c
    }
    if lq.MaxPrice != nil {
        c := model.ToCents(*lq.MaxPrice)
        f.MaxPriceCents = &c
    }
    if f.MinPriceCents != nil && f.MaxPriceCents != nil && *f.MinPriceCents > *f.MaxPriceCents {
        return nil, invalid("min_price exceeds max_price")
    }
    if lq.Date != "" {
        d, err := parseDay(lq.Date)
        if err != nil {
            return nil, err
        }
        f.Date = &d
    }
    items, total, err := s.experiences.Search(ctx, f)
    if err != nil {
        return nil, err
    }
    return &ListResult{Experiences: items, Total: total, Page: page, PageSize: size}, nil
}

// Get returns a bookable experience with its upcoming dates and rating.
func (s *CatalogService) Get(ctx context.Context, id uint64) (*model.Experience, error) {
    e, err := s.experiences.GetPublic(ctx, id)
    if err != nil {
        return nil, err
    }
    today := startOfDay(s.now())
    if e.Dates, err = s.dates.ListByExperience(ctx, id, &today, nil); err != nil {
        return nil, err
    }
    summary, err := s.reviews.Summary(ctx, id)
    if err != nil {
        return nil, err
    }
    e.Rating = &summary
    return e, nil
}

// Availability lists the date rows of a bookable experience.  Without a
// start date only today and later are returned.
func (s *CatalogService) Availability(ctx context.Context, id uint64, start, end string) ([]model.ExperienceDate, error) {
    if _, err := s.experiences.GetPublic(ctx, id); err != nil {
        return nil, err
    }
    from := startOfDay(s.now())
    if start != "" {
        d, err := parseDay(start)
        if err != nil {
            return nil, err
        }
        from = d
    }
    var to *time.Time
    if end != "" {
        d, err := parseDay(end)
        if err != nil {
            return nil, err
        }
        if d.Before(from) {
            return nil, invalid("end date before start date")
        }
        to = &d
    }
    return s.dates.ListByExperience(ctx, id, &from, to)
}

func (s *CatalogService) Reviews(ctx context.Context, id uint64) ([]model.Review, error) {
    if _, err := s.experiences.GetPublic(ctx, id); err != nil {
        return nil, err
    }
    return s.reviews.ListByExperience(ctx, id)
}

// Mine lists the calling guide's experiences, inactive ones included.
func (s *CatalogService) Mine(ctx context.Context, c Caller) ([]model.Experience, error) {
    if !c.IsGuide() {
        return nil, repository.ErrForbidden
    }
    return s.experiences.ListByGuide(ctx, c.UserID)
}

// ExperienceInput is the payload of Create.
type ExperienceInput struct {
    Title          string
    Description    string
    Category       string
    Location       string
    PricePerPerson float64
    MaxGroupSize   int
    DurationHours  *float64
    Itinerary      string
    Includes       string
    Excludes       string
    Photos         []string
    Dates          []string
}

// Create publishes a new experience for an approved guide together with
// one inventory row per offered date.
func (s *CatalogService) Create(ctx context.Context, c Caller, in ExperienceInput) (*model.Experience, error) {
    if err := s.requireApprovedGuide(ctx, c); err != nil {
        return nil, err
    }
    e := &model.Experience{
        GuideID:             c.UserID,
        Title:               strings.TrimSpace(in.Title),
        Description:         strings.TrimSpace(in.Description),
        Category:            strings.ToLower(strings.TrimSpace(in.Category)),
        Location:            strings.TrimSpace(in.Location),
        PricePerPersonCents: model.ToCents(in.PricePerPerson),
        MaxGroupSize:        in.MaxGroupSize,
        DurationHours:       in.DurationHours,
        Itinerary:           in.Itinerary,
        Includes:            in.Includes,
        Excludes:            in.Excludes,
        Photos:              in.Photos,
        IsActive:            true,
    }
    if err := validateExperience(e); err != nil {
        return nil, err
    }
    days, err := s.futureDays(in.Dates)
    if err != nil {
        return nil, err
    }
    err = withTx(ctx, s.db, func(tx *sql.Tx) error {
        if err := s.experiences.CreateTx(ctx, tx, e); err != nil {
            return err
        }
        return s.dates.InsertTx(ctx, tx, e.ID, days, e.MaxGroupSize)
    })
    if err != nil {
        return nil, err
    }
    logger.FromContext(ctx).Info().Uint64("experience_id", e.ID).Uint64("guide_id", c.UserID).Int("dates", len(days)).Msg("experience created")
    return s.withDates(ctx, e.ID)
}

// ExperiencePatch is a partial update; nil fields are left unchanged.
type ExperiencePatch struct {
    Title          *string
    Description    *string
    Category       *string
    Location       *string
    PricePerPerson *float64
    MaxGroupSize   *int
    DurationHours  *float64
    Itinerary      *string
    Includes       *string
    Excludes       *string
    Photos         []string
    IsActive       *bool
    Dates          []string
}

// Update applies a partial update by the owning guide.  A new group size
// shifts every date's remaining slots by the difference and fails with
// ErrConflict when a date already holds more guests than the new size.
func (s *CatalogService) Update(ctx context.Context, c Caller, id uint64, p ExperiencePatch) (*model.Experience, error) {
    if !c.IsGuide() {
        return nil, repository.ErrForbidden
    }
    days, err := s.futureDays(p.Dates)
    if err != nil {
        return nil, err
    }
    err = withTx(ctx, s.db, func(tx *sql.Tx) error {
        e, err := s.experiences.GetForUpdateTx(ctx, tx, id)
        if err != nil {
            return err
        }
        if e.GuideID != c.UserID {
            return repository.ErrForbidden
        }
        oldSize := e.MaxGroupSize
        applyPatch(e, p)
        if err := validateExperience(e); err != nil {
            return err
        }
        if err := s.dates.ShiftSlotsTx(ctx, tx, id, e.MaxGroupSize-oldSize); err != nil {
            return err
        }
        if err := s.experiences.UpdateTx(ctx, tx, e); err != nil {
            return err
        }
        return s.dates.InsertTx(ctx, tx, id, days, e.MaxGroupSize)
    })
    if err != nil {
        return nil, err
    }
    logger.FromContext(ctx).Info().Uint64("experience_id", id).Msg("experience updated")
    return s.withDates(ctx, id)
}

// AddDates offers more dates for an owned experience.
func (s *CatalogService) AddDates(ctx context.Context, c Caller, id uint64, dates []string) ([]model.ExperienceDate, error) {
    if !c.IsGuide() {
        return nil, repository.ErrForbidden
    }
    if len(dates) == 0 {
        return nil, invalid("dates are required")
    }
    days, err := s.futureDays(dates)
    if err != nil {
        return nil, err
    }
    err = withTx(ctx, s.db, func(tx *sql.Tx) error {
        e, err := s.experiences.GetForUpdateTx(ctx, tx, id)
        if err != nil {
            return err
        }
        if e.GuideID != c.UserID {
            return repository.ErrForbidden
        }
        return s.dates.InsertTx(ctx, tx, id, days, e.MaxGroupSize)
    })
    if err != nil {
        return nil, err
    }
    today := startOfDay(s.now())
    return s.dates.ListByExperience(ctx, id, &today, nil)
}

func (s *CatalogService) requireApprovedGuide(ctx context.Context, c Caller) error {
    if !c.IsGuide() {
        return repository.ErrForbidden
    }
    u, err := s.users.GetByID(ctx, c.UserID)
    if err != nil {
        return err
    }
    if !u.IsApproved {
        return repository.ErrGuideNotApproved
    }
    return nil
}

func (s *CatalogService) withDates(ctx context.Context, id uint64) (*model.Experience, error) {
    e, err := s.experiences.GetByID(ctx, id)
    if err != nil {
        return nil, err
    }
    today := startOfDay(s.now())
    if e.Dates, err = s.dates.ListByExperience(ctx, id, &today, nil); err != nil {
        return nil, err
    }
    return e, nil
}

// futureDays parses and de-duplicates offered dates, rejecting past ones.
func (s *CatalogService) futureDays(raw []string) ([]time.Time, error) {
    today := startOfDay(s.now())
    seen := make(map[string]bool, len(raw))
    out := make([]time.Time, 0, len(raw))
    for _, r := range raw {
        d, err := parseDay(strings.TrimSpace(r))
        if err != nil {
            return nil, err
        }
        if d.Before(today) {
            return nil, invalid("date %s is in the past", r)
        }
        key := d.Format(model.DateLayout)
        if seen[key] {
            continue
        }
        seen[key] = true
        out = append(out, d)
    }
    return out, nil
}

func applyPatch(e *model.Experience, p ExperiencePatch) {
    if p.Title != nil {
        e.Title = strings.TrimSpace(*p.Title)
    }
    if p.Description != nil {
        e.Description = strings.TrimSpace(*p.Description)
    }
    if p.Category != nil {
        e.Category = strings.ToLower(strings.TrimSpace(*p.Category))
    }
    if p.Location != nil {
        e.Location = strings.TrimSpace(*p.Location)
    }
    if p.PricePerPerson != nil {
        e.PricePerPersonCents = model.ToCents(*p.PricePerPerson)
    }
    if p.MaxGroupSize != nil {
        e.MaxGroupSize = *p.MaxGroupSize
    }
    if p.DurationHours != nil {
        e.DurationHours = p.DurationHours
    }
    if p.Itinerary != nil {
        e.Itinerary = *p.Itinerary
    }
    if p.Includes != nil {
        e.Includes = *p.Includes
    }
    if p.Excludes != nil {
        e.Excludes = *p.Excludes
    }
    if p.Photos != nil {
        e.Photos = p.Photos
    }
    if p.IsActive != nil {
        e.IsActive = *p.IsActive
    }
}

func validateExperience(e *model.Experience) error {
    switch {
    case e.Title == "":
        return invalid("title is required")
    case e.Description == "":
        return invalid("description is required")
    case !model.ValidCategory(e.Category):
        return invalid("unknown category %q", e.Category)
    case e.Location == "":
        return invalid("location is required")
    case e.PricePerPersonCents < 0:
        return invalid("price_per_person must not be negative")
    case e.MaxGroupSize < 1:
        return invalid("max_group_size must be at least 1")
    case e.DurationHours != nil && *e.DurationHours <= 0:
        return invalid("duration_hours must be positive")
    }
    return nil
}
