package service

import (
    "context"
    "database/sql"
    "fmt"
    "strings"

    "github.com/iliyamo/tour-experience-booking/internal/logger"
    "github.com/iliyamo/tour-experience-booking/internal/model"
    "github.com/iliyamo/tour-experience-booking/internal/repository"
)

type ReviewService struct {
    db       *sql.DB
    bookings *repository.BookingRepo
    reviews  *repository.ReviewRepo
}

func NewReviewService(db *sql.DB, bookings *repository.BookingRepo, reviews *repository.ReviewRepo) *ReviewService {
    return &ReviewService{db: db, bookings: bookings, reviews: reviews}
}

type CreateReviewInput struct {
    BookingID uint64
    Rating    int
    Comment   string
}

// Create stores the single review a traveler may leave on a completed
// booking.  The booking row is locked so two concurrent reviews cannot
// both pass the existence check.
func (s *ReviewService) Create(ctx context.Context, c Caller, in CreateReviewInput) (*model.Review, error) {
    if in.Rating < 1 || in.Rating > 5 {
        return nil, invalid("rating must be between 1 and 5")
    }
    rv := &model.Review{
        BookingID:  in.BookingID,
        TravelerID: c.UserID,
        Rating:     in.Rating,
        Comment:    strings.TrimSpace(in.Comment),
    }
    err := withTx(ctx, s.db, func(tx *sql.Tx) error {
        b, err := s.bookings.GetForUpdateTx(ctx, tx, in.BookingID)
        if err != nil {
            return err
        }
        if b.TravelerID != c.UserID {
            return repository.ErrForbidden
        }
        if b.Status != model.BookingCompleted {
            return fmt.Errorf("booking is %s, only completed tours can be reviewed: %w", b.Status, repository.ErrConflict)
        }
        exists, err := s.reviews.ExistsForBookingTx(ctx, tx, b.ID)
        if err != nil {
            return err
        }
        if exists {
            return repository.ErrReviewExists
        }
        rv.ExperienceID = b.ExperienceID
        return s.reviews.CreateTx(ctx, tx, rv)
    })
    if err != nil {
        return nil, err
    }
    logger.FromContext(ctx).Info().Uint64("review_id", rv.ID).Uint64("booking_id", rv.BookingID).Int("rating", rv.Rating).Msg("review created")
    return rv, nil
}
