package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/tour-experience-booking/internal/model"
)

// StatsRepo runs the aggregate queries behind the admin dashboard.
type StatsRepo struct {
	db *sql.DB
}

func NewStatsRepo(db *sql.DB) *StatsRepo { return &StatsRepo{db: db} }

// Statistics collects marketplace totals.  Revenue counts confirmed and
// completed bookings only.
func (r *StatsRepo) Statistics(ctx context.Context) (*model.Statistics, error) {
	st := &model.Statistics{
		UsersByRole:      map[string]int64{model.RoleTraveler: 0, model.RoleGuide: 0, model.RoleAdmin: 0},
		BookingsByStatus: map[string]int64{},
	}
	for _, s := range []model.BookingStatus{model.BookingPending, model.BookingConfirmed, model.BookingCompleted, model.BookingCancelled} {
		st.BookingsByStatus[string(s)] = 0
	}

	if err := r.groupCount(ctx, "SELECT role, COUNT(*) FROM users GROUP BY role", st.UsersByRole); err != nil {
		return nil, err
	}
	if err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM users WHERE role = ? AND is_approved = 0", model.RoleGuide).Scan(&st.PendingGuides); err != nil {
		return nil, err
	}
	if err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*)"+experienceFrom+" WHERE "+publicVisible).Scan(&st.ActiveExperiences); err != nil {
		return nil, err
	}
	if err := r.groupCount(ctx, "SELECT status, COUNT(*) FROM bookings GROUP BY status", st.BookingsByStatus); err != nil {
		return nil, err
	}
	if err := r.db.QueryRowContext(ctx,
		"SELECT COALESCE(SUM(total_price_cents), 0) FROM bookings WHERE status IN (?, ?)",
		string(model.BookingConfirmed), string(model.BookingCompleted)).Scan(&st.RevenueCents); err != nil {
		return nil, err
	}
	st.Revenue = model.FromCents(st.RevenueCents)
	if err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*), COALESCE(AVG(rating), 0) FROM reviews").Scan(&st.ReviewCount, &st.AverageRating); err != nil {
		return nil, err
	}
	return st, nil
}

func (r *StatsRepo) groupCount(ctx context.Context, q string, into map[string]int64) error {
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			key string
			n   int64
		)
		if err := rows.Scan(&key, &n); err != nil {
			return err
		}
		into[key] = n
	}
	return rows.Err()
}
