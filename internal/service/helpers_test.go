package service

import (
    "context"
    "database/sql"
    "regexp"
    "testing"
    "time"

    "github.com/DATA-DOG/go-sqlmock"
    "github.com/stretchr/testify/mock"
    "github.com/stretchr/testify/require"

    "github.com/iliyamo/tour-experience-booking/internal/model"
    "github.com/iliyamo/tour-experience-booking/internal/payment"
)

var (
    today   = time.Date(2030, 5, 1, 9, 30, 0, 0, time.UTC)
    tourDay = time.Date(2030, 5, 10, 0, 0, 0, 0, time.UTC)
    stamp   = time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)
)

func fixedNow() time.Time { return today }

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
    t.Helper()
    db, m, err := sqlmock.New()
    require.NoError(t, err)
    t.Cleanup(func() {
        require.NoError(t, m.ExpectationsWereMet())
        db.Close()
    })
    return db, m
}

func q(s string) string { return regexp.QuoteMeta(s) }

var experienceColumns = []string{"id", "guide_id", "name", "title", "description", "category", "location",
    "price_per_person_cents", "max_group_size", "duration_hours", "itinerary", "includes",
    "excludes", "photos", "is_active", "created_at", "updated_at"}

// experienceRows returns a safari priced 50.00 per person for up to 4 guests.
func experienceRows(id uint64, guideID uint64) *sqlmock.Rows {
    return sqlmock.NewRows(experienceColumns).AddRow(id, guideID, "Amani", "Sunset Safari", "Big five",
        "safari", "Arusha", 5000, 4, nil, "", "", "", "[]", true, stamp, stamp)
}

var dateColumns = []string{"id", "experience_id", "tour_date", "available_slots"}

var bookingColumns = []string{"id", "experience_id", "experience_date_id", "traveler_id", "guide_id",
    "tour_date", "guest_count", "price_per_person_cents", "total_price_cents", "status",
    "payment_intent_id", "created_at", "updated_at", "title", "location"}

func bookingRows(id, travelerID uint64, status model.BookingStatus, guests int, intent any) *sqlmock.Rows {
    return sqlmock.NewRows(bookingColumns).AddRow(id, 7, 3, travelerID, 5, tourDay, guests, 5000,
        int64(guests)*5000, string(status), intent, stamp, stamp, "Sunset Safari", "Arusha")
}

type mockGateway struct{ mock.Mock }

func (m *mockGateway) CreateIntent(ctx context.Context, req payment.ChargeRequest) (*payment.Intent, error) {
    args := m.Called(ctx, req)
    intent, _ := args.Get(0).(*payment.Intent)
    return intent, args.Error(1)
}

func (m *mockGateway) Refund(ctx context.Context, intentID string) error {
    return m.Called(ctx, intentID).Error(0)
}

func (m *mockGateway) CancelIntent(ctx context.Context, intentID string) error {
    return m.Called(ctx, intentID).Error(0)
}

type recordingPublisher struct {
    events []model.Booking
}

func (p *recordingPublisher) PublishBooking(_ context.Context, b *model.Booking) {
    p.events = append(p.events, *b)
}
