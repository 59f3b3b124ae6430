package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/tour-experience-booking/internal/model"
)

// BookingRepo persists bookings.  Status changes are guarded by the
// current status in the WHERE clause so a stale caller cannot move a
// booking out of a terminal state.
type BookingRepo struct {
	db *sql.DB
}

func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

func (r *BookingRepo) DB() *sql.DB { return r.db }

const bookingCols = `b.id, b.experience_id, b.experience_date_id, b.traveler_id, e.guide_id,
	b.tour_date, b.guest_count, b.price_per_person_cents, b.total_price_cents, b.status,
	b.payment_intent_id, b.created_at, b.updated_at, e.title, e.location`

const bookingFrom = ` FROM bookings b JOIN experiences e ON e.id = b.experience_id`

// CreateTx inserts b and fills in its ID.  The price fields must already
// hold the snapshot taken at booking time.
func (r *BookingRepo) CreateTx(ctx context.Context, tx *sql.Tx, b *model.Booking) error {
	const q = `INSERT INTO bookings
		(experience_id, experience_date_id, traveler_id, tour_date, guest_count,
		 price_per_person_cents, total_price_cents, status, payment_intent_id)
		VALUES (?,?,?,?,?,?,?,?,?)`
	res, err := tx.ExecContext(ctx, q, b.ExperienceID, b.ExperienceDateID, b.TravelerID,
		b.TourDate.Format(model.DateLayout), b.GuestCount, b.PricePerPersonCents,
		b.TotalPriceCents, string(b.Status), nullString(b.PaymentIntentID))
	if err != nil {
		if isDuplicate(err) {
			return ErrConflict
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = uint64(id)
	b.Date = b.TourDate.Format(model.DateLayout)
	b.TotalPrice = model.FromCents(b.TotalPriceCents)
	return nil
}

// GetByID returns a booking with its experience title, location and guide.
func (r *BookingRepo) GetByID(ctx context.Context, id uint64) (*model.Booking, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+bookingCols+bookingFrom+" WHERE b.id = ?", id)
	return scanBooking(row)
}

// GetForUpdateTx loads and row-locks a booking for the rest of tx.
func (r *BookingRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Booking, error) {
	row := tx.QueryRowContext(ctx, "SELECT "+bookingCols+bookingFrom+" WHERE b.id = ? FOR UPDATE", id)
	return scanBooking(row)
}

// GetByPaymentIntentForUpdateTx loads and row-locks the booking paid by a
// provider payment intent.
func (r *BookingRepo) GetByPaymentIntentForUpdateTx(ctx context.Context, tx *sql.Tx, intentID string) (*model.Booking, error) {
	row := tx.QueryRowContext(ctx, "SELECT "+bookingCols+bookingFrom+" WHERE b.payment_intent_id = ? FOR UPDATE", intentID)
	return scanBooking(row)
}

// UpdateStatusTx moves a booking from one status to another.  It returns
// ErrInvalidTransition when the move is not allowed or the booking is no
// longer in status from.
func (r *BookingRepo) UpdateStatusTx(ctx context.Context, tx *sql.Tx, id uint64, from, to model.BookingStatus) error {
	if !from.CanTransition(to) {
		return ErrInvalidTransition
	}
	res, err := tx.ExecContext(ctx,
		"UPDATE bookings SET status = ? WHERE id = ? AND status = ?", string(to), id, string(from))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrInvalidTransition
	}
	return nil
}

// ListByTraveler returns the traveler's bookings, newest first.
func (r *BookingRepo) ListByTraveler(ctx context.Context, travelerID uint64) ([]model.Booking, error) {
	return r.list(ctx, "SELECT "+bookingCols+bookingFrom+
		" WHERE b.traveler_id = ? ORDER BY b.created_at DESC, b.id DESC", travelerID)
}

// ListByGuide returns bookings on any of the guide's experiences, by tour date.
func (r *BookingRepo) ListByGuide(ctx context.Context, guideID uint64) ([]model.Booking, error) {
	return r.list(ctx, "SELECT "+bookingCols+bookingFrom+
		" WHERE e.guide_id = ? ORDER BY b.tour_date ASC, b.id ASC", guideID)
}

// ListDueForCompletion returns up to limit confirmed bookings whose tour
// date is before the given day.
func (r *BookingRepo) ListDueForCompletion(ctx context.Context, before time.Time, limit int) ([]model.Booking, error) {
	return r.list(ctx, "SELECT "+bookingCols+bookingFrom+
		" WHERE b.status = ? AND b.tour_date < ? ORDER BY b.tour_date ASC, b.id ASC LIMIT ?",
		string(model.BookingConfirmed), before.Format(model.DateLayout), limit)
}

// ListStalePending returns up to limit pending bookings created before the
// given instant, oldest first.
func (r *BookingRepo) ListStalePending(ctx context.Context, createdBefore time.Time, limit int) ([]model.Booking, error) {
	return r.list(ctx, "SELECT "+bookingCols+bookingFrom+
		" WHERE b.status = ? AND b.created_at < ? ORDER BY b.created_at ASC, b.id ASC LIMIT ?",
		string(model.BookingPending), createdBefore.UTC(), limit)
}

func (r *BookingRepo) list(ctx context.Context, q string, args ...any) ([]model.Booking, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Booking{}
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

func scanBooking(s scanner) (*model.Booking, error) {
	var (
		b      model.Booking
		status string
		intent sql.NullString
	)
	err := s.Scan(&b.ID, &b.ExperienceID, &b.ExperienceDateID, &b.TravelerID, &b.GuideID,
		&b.TourDate, &b.GuestCount, &b.PricePerPersonCents, &b.TotalPriceCents, &status,
		&intent, &b.CreatedAt, &b.UpdatedAt, &b.ExperienceTitle, &b.Location)
	if err != nil {
		return nil, notFound(err)
	}
	b.Status = model.BookingStatus(status)
	b.PaymentIntentID = stringPtr(intent)
	b.Date = b.TourDate.Format(model.DateLayout)
	b.TotalPrice = model.FromCents(b.TotalPriceCents)
	return &b, nil
}
