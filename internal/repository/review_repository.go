package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/tour-experience-booking/internal/model"
)

type ReviewRepo struct {
	db *sql.DB
}

func NewReviewRepo(db *sql.DB) *ReviewRepo { return &ReviewRepo{db: db} }

// ExistsForBookingTx reports whether the booking already has a review.
func (r *ReviewRepo) ExistsForBookingTx(ctx context.Context, tx *sql.Tx, bookingID uint64) (bool, error) {
	var n int
	err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM reviews WHERE booking_id = ?", bookingID).Scan(&n)
	return n > 0, err
}

// CreateTx inserts rv.  The unique index on booking_id turns a concurrent
// second review into ErrReviewExists.
func (r *ReviewRepo) CreateTx(ctx context.Context, tx *sql.Tx, rv *model.Review) error {
	res, err := tx.ExecContext(ctx,
		"INSERT INTO reviews (booking_id, experience_id, traveler_id, rating, comment) VALUES (?,?,?,?,?)",
		rv.BookingID, rv.ExperienceID, rv.TravelerID, rv.Rating, rv.Comment)
	if err != nil {
		if isDuplicate(err) {
			return ErrReviewExists
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	rv.ID = uint64(id)
	return nil
}

// ListByExperience returns reviews newest first with the reviewer's name.
func (r *ReviewRepo) ListByExperience(ctx context.Context, experienceID uint64) ([]model.Review, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT rv.id, rv.booking_id, rv.experience_id, rv.traveler_id, u.name, rv.rating, rv.comment, rv.created_at
		 FROM reviews rv JOIN users u ON u.id = rv.traveler_id
		 WHERE rv.experience_id = ? ORDER BY rv.created_at DESC, rv.id DESC`, experienceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Review{}
	for rows.Next() {
		var rv model.Review
		if err := rows.Scan(&rv.ID, &rv.BookingID, &rv.ExperienceID, &rv.TravelerID,
			&rv.TravelerName, &rv.Rating, &rv.Comment, &rv.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, rv)
	}
	return out, rows.Err()
}

// Summary returns the review count and mean rating of an experience.
func (r *ReviewRepo) Summary(ctx context.Context, experienceID uint64) (model.RatingSummary, error) {
	var s model.RatingSummary
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*), COALESCE(AVG(rating), 0) FROM reviews WHERE experience_id = ?",
		experienceID).Scan(&s.Count, &s.Average)
	return s, err
}
