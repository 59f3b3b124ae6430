package model

import "time"

// BookingStatus is the lifecycle stage of a reservation.
type BookingStatus string

const (
    BookingPending   BookingStatus = "pending"
    BookingConfirmed BookingStatus = "confirmed"
    BookingCompleted BookingStatus = "completed"
    BookingCancelled BookingStatus = "cancelled"
)

// transitions lists, for every status, the statuses it may move to.
// completed and cancelled are terminal.
var transitions = map[BookingStatus][]BookingStatus{
    BookingPending:   {BookingConfirmed, BookingCancelled},
    BookingConfirmed: {BookingCompleted, BookingCancelled},
}

// CanTransition reports whether a booking in status s may move to next.
func (s BookingStatus) CanTransition(next BookingStatus) bool {
    for _, t := range transitions[s] {
        if t == next {
            return true
        }
    }
    return false
}

// Terminal reports whether no further transition is possible.
func (s BookingStatus) Terminal() bool { return len(transitions[s]) == 0 }

// Valid reports whether s is a known status.
func (s BookingStatus) Valid() bool {
    switch s {
    case BookingPending, BookingConfirmed, BookingCompleted, BookingCancelled:
        return true
    }
    return false
}

// Booking links a traveler to one date row of one experience.  The
// per-person price is snapshotted at creation so later price changes
// never alter TotalPriceCents.
type Booking struct {
    ID                  uint64        `json:"id"`
    ExperienceID        uint64        `json:"experience_id"`
    ExperienceDateID    uint64        `json:"experience_date_id"`
    TravelerID          uint64        `json:"traveler_id"`
    GuideID             uint64        `json:"guide_id,omitempty"`
    TourDate            time.Time     `json:"-"`
    Date                string        `json:"tour_date"`
    GuestCount          int           `json:"guest_count"`
    PricePerPersonCents int64         `json:"price_per_person_cents"`
    TotalPriceCents     int64         `json:"total_price_cents"`
    TotalPrice          float64       `json:"total_price"`
    Status              BookingStatus `json:"status"`
    PaymentIntentID     *string       `json:"payment_intent_id,omitempty"`
    // ClientSecret is set only on the create response of a pending booking.
    ClientSecret        string        `json:"client_secret,omitempty"`
    ExperienceTitle     string        `json:"experience_title,omitempty"`
    Location            string        `json:"location,omitempty"`
    CreatedAt           time.Time     `json:"created_at"`
    UpdatedAt           time.Time     `json:"updated_at"`
}

// Review is a traveler's rating of a completed booking.  There is at most
// one review per booking.
type Review struct {
    ID           uint64    `json:"id"`
    BookingID    uint64    `json:"booking_id"`
    ExperienceID uint64    `json:"experience_id"`
    TravelerID   uint64    `json:"traveler_id"`
    TravelerName string    `json:"traveler_name,omitempty"`
    Rating       int       `json:"rating"`
    Comment      string    `json:"comment"`
    CreatedAt    time.Time `json:"created_at"`
}

// Statistics is the admin dashboard aggregate.
type Statistics struct {
    UsersByRole       map[string]int64 `json:"users_by_role"`
    PendingGuides     int64            `json:"pending_guides"`
    ActiveExperiences int64            `json:"active_experiences"`
    BookingsByStatus  map[string]int64 `json:"bookings_by_status"`
    RevenueCents      int64            `json:"revenue_cents"`
    Revenue           float64          `json:"revenue"`
    ReviewCount       int64            `json:"review_count"`
    AverageRating     float64          `json:"average_rating"`
}
