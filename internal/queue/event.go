// Package queue defines the booking events exchanged over RabbitMQ and the
// background consumer that turns them into traveler notifications.
package queue

import (
    "time"

    "github.com/iliyamo/tour-experience-booking/internal/model"
)

// Routing keys on the bookings topic exchange.
const (
    BookingConfirmed = "booking.confirmed"
    BookingPending   = "booking.pending"
    BookingCancelled = "booking.cancelled"
    BookingCompleted = "booking.completed"
)

// BookingEvent is published after a booking changes state.  It carries
// enough for consumers to notify the traveler and guide without querying
// the primary database.
type BookingEvent struct {
    Type            string `json:"type"`
    BookingID       uint64 `json:"booking_id"`
    ExperienceID    uint64 `json:"experience_id"`
    ExperienceTitle string `json:"experience_title"`
    TravelerID      uint64 `json:"traveler_id"`
    GuideID         uint64 `json:"guide_id"`
    TourDate        string `json:"tour_date"`
    GuestCount      int    `json:"guest_count"`
    TotalPriceCents int64  `json:"total_price_cents"`
    Status          string `json:"status"`
    OccurredAt      string `json:"occurred_at"`
}

// RoutingKeyFor maps a booking status to its routing key.
func RoutingKeyFor(s model.BookingStatus) string {
    switch s {
    case model.BookingConfirmed:
        return BookingConfirmed
    case model.BookingCancelled:
        return BookingCancelled
    case model.BookingCompleted:
        return BookingCompleted
    default:
        return BookingPending
    }
}

// NewBookingEvent builds the event for b in its current status.
func NewBookingEvent(b *model.Booking) BookingEvent {
    return BookingEvent{
        Type:            RoutingKeyFor(b.Status),
        BookingID:       b.ID,
        ExperienceID:    b.ExperienceID,
        ExperienceTitle: b.ExperienceTitle,
        TravelerID:      b.TravelerID,
        GuideID:         b.GuideID,
        TourDate:        b.Date,
        GuestCount:      b.GuestCount,
        TotalPriceCents: b.TotalPriceCents,
        Status:          string(b.Status),
        OccurredAt:      time.Now().UTC().Format(time.RFC3339),
    }
}
