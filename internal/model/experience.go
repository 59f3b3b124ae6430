package model

import (
    "math"
    "time"
)

// Experience categories accepted by the catalog.
const (
    CategorySafari    = "safari"
    CategoryCultural  = "cultural"
    CategoryFood      = "food"
    CategoryAdventure = "adventure"
    CategoryWildlife  = "wildlife"
    CategoryBeach     = "beach"
    CategoryCity      = "city"
)

var categories = map[string]bool{
    CategorySafari:    true,
    CategoryCultural:  true,
    CategoryFood:      true,
    CategoryAdventure: true,
    CategoryWildlife:  true,
    CategoryBeach:     true,
    CategoryCity:      true,
}

// ValidCategory reports whether c is a known experience category.
func ValidCategory(c string) bool { return categories[c] }

// DateLayout is the wire and storage format of tour dates.
const DateLayout = "2006-01-02"

// Experience is a bookable listing owned by exactly one guide.  It maps
// to the `experiences` table.  Prices are kept in cents; PricePerPerson
// is filled for responses only.
type Experience struct {
    ID                  uint64           `json:"id"`
    GuideID             uint64           `json:"guide_id"`
    GuideName           string           `json:"guide_name,omitempty"`
    Title               string           `json:"title"`
    Description         string           `json:"description"`
    Category            string           `json:"category"`
    Location            string           `json:"location"`
    PricePerPersonCents int64            `json:"price_per_person_cents"`
    PricePerPerson      float64          `json:"price_per_person"`
    MaxGroupSize        int              `json:"max_group_size"`
    DurationHours       *float64         `json:"duration_hours,omitempty"`
    Itinerary           string           `json:"itinerary"`
    Includes            string           `json:"includes"`
    Excludes            string           `json:"excludes"`
    Photos              []string         `json:"photos"`
    IsActive            bool             `json:"is_active"`
    Dates               []ExperienceDate `json:"dates,omitempty"`
    Rating              *RatingSummary   `json:"rating,omitempty"`
    CreatedAt           time.Time        `json:"created_at"`
    UpdatedAt           time.Time        `json:"updated_at"`
}

// ExperienceDate is one offered day of an experience with its remaining
// capacity.  AvailableSlots stays within [0, Experience.MaxGroupSize].
type ExperienceDate struct {
    ID             uint64    `json:"id"`
    ExperienceID   uint64    `json:"experience_id"`
    TourDate       time.Time `json:"-"`
    Date           string    `json:"tour_date"`
    AvailableSlots int       `json:"available_slots"`
}

// RatingSummary aggregates the reviews of one experience.
type RatingSummary struct {
    Count   int     `json:"count"`
    Average float64 `json:"average"`
}

// ToCents converts a currency amount into integer cents, rounding to the
// nearest cent.
func ToCents(amount float64) int64 { return int64(math.Round(amount * 100)) }

// FromCents converts integer cents into a currency amount.
func FromCents(cents int64) float64 { return float64(cents) / 100.0 }
