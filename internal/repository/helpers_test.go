package repository

import (
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return db, mock
}

func q(s string) string { return regexp.QuoteMeta(s) }

var (
	tourDay = time.Date(2030, 5, 10, 0, 0, 0, 0, time.UTC)
	stamp   = time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)
)

var bookingColumns = []string{"id", "experience_id", "experience_date_id", "traveler_id", "guide_id",
	"tour_date", "guest_count", "price_per_person_cents", "total_price_cents", "status",
	"payment_intent_id", "created_at", "updated_at", "title", "location"}

func bookingRow(rows *sqlmock.Rows, id uint64, status string, guests int) *sqlmock.Rows {
	return rows.AddRow(id, 7, 3, 11, 5, tourDay, guests, 5000, int64(guests)*5000, status,
		nil, stamp, stamp, "Sunset Safari", "Arusha")
}

var experienceColumns = []string{"id", "guide_id", "name", "title", "description", "category", "location",
	"price_per_person_cents", "max_group_size", "duration_hours", "itinerary", "includes",
	"excludes", "photos", "is_active", "created_at", "updated_at"}

func experienceRow(rows *sqlmock.Rows, id uint64) *sqlmock.Rows {
	return rows.AddRow(id, 5, "Amani", "Sunset Safari", "Big five", "safari", "Arusha",
		5000, 4, 6.5, "Day 1", "Lunch", "Tips", `["https://img/1.jpg"]`, true, stamp, stamp)
}
