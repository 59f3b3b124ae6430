package service

import (
    "context"
    "errors"
    "testing"
    "time"

    "github.com/DATA-DOG/go-sqlmock"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/mock"
    "github.com/stretchr/testify/require"

    "github.com/iliyamo/tour-experience-booking/internal/model"
    "github.com/iliyamo/tour-experience-booking/internal/payment"
    "github.com/iliyamo/tour-experience-booking/internal/repository"
)

var (
    traveler = Caller{UserID: 11, Role: model.RoleTraveler}
    guide    = Caller{UserID: 5, Role: model.RoleGuide}
    admin    = Caller{UserID: 1, Role: model.RoleAdmin}
)

func newBookingService(t *testing.T, gw payment.Gateway) (*BookingService, sqlmock.Sqlmock, *recordingPublisher) {
    db, m := setupMockDB(t)
    pub := &recordingPublisher{}
    s := NewBookingService(db, repository.NewExperienceRepo(db), repository.NewExperienceDateRepo(db),
        repository.NewBookingRepo(db), gw, pub)
    s.now = fixedNow
    return s, m, pub
}

func expectBookable(m sqlmock.Sqlmock) {
    m.ExpectQuery(q("WHERE e.id = ? AND e.is_active = 1 AND u.is_approved = 1")).
        WithArgs(7).
        WillReturnRows(experienceRows(7, 5))
}

func expectDecrement(m sqlmock.Sqlmock, guests int, remaining int) {
    m.ExpectExec(q("SET available_slots = available_slots - ?")).
        WithArgs(guests, 3, 7, guests).
        WillReturnResult(sqlmock.NewResult(0, 1))
    m.ExpectQuery(q("FROM experience_dates WHERE id = ? AND experience_id = ?")).
        WithArgs(3, 7).
        WillReturnRows(sqlmock.NewRows(dateColumns).AddRow(3, 7, tourDay, remaining))
}

// Price 50, group of 4, three guests: total 150 and one slot left.
func TestBookingService_CreateSnapshotsTotal(t *testing.T) {
    s, m, pub := newBookingService(t, nil)
    m.ExpectBegin()
    expectBookable(m)
    expectDecrement(m, 3, 1)
    m.ExpectExec(q("INSERT INTO bookings")).
        WithArgs(7, 3, 11, "2030-05-10", 3, 5000, 15000, "confirmed", nil).
        WillReturnResult(sqlmock.NewResult(21, 1))
    m.ExpectCommit()

    b, err := s.Create(context.Background(), traveler, CreateBookingInput{ExperienceID: 7, DateID: 3, GuestCount: 3})
    require.NoError(t, err)
    assert.Equal(t, uint64(21), b.ID)
    assert.Equal(t, int64(15000), b.TotalPriceCents)
    assert.InDelta(t, 150.0, b.TotalPrice, 0.001)
    assert.Equal(t, model.BookingConfirmed, b.Status)
    require.Len(t, pub.events, 1)
    assert.Equal(t, uint64(5), pub.events[0].GuideID)
}

// A second booking of two guests when one slot is left fails and changes nothing.
func TestBookingService_CreateRejectsOverbooking(t *testing.T) {
    s, m, pub := newBookingService(t, nil)
    m.ExpectBegin()
    expectBookable(m)
    m.ExpectExec(q("SET available_slots = available_slots - ?")).
        WithArgs(2, 3, 7, 2).
        WillReturnResult(sqlmock.NewResult(0, 0))
    m.ExpectQuery(q("FROM experience_dates WHERE id = ? AND experience_id = ?")).
        WithArgs(3, 7).
        WillReturnRows(sqlmock.NewRows(dateColumns).AddRow(3, 7, tourDay, 1))
    m.ExpectRollback()

    _, err := s.Create(context.Background(), traveler, CreateBookingInput{ExperienceID: 7, DateID: 3, GuestCount: 2})
    assert.ErrorIs(t, err, repository.ErrInsufficientSlots)
    assert.Empty(t, pub.events)
}

func TestBookingService_CreateValidation(t *testing.T) {
    s, _, _ := newBookingService(t, nil)

    _, err := s.Create(context.Background(), traveler, CreateBookingInput{ExperienceID: 7, DateID: 3})
    assert.ErrorIs(t, err, ErrValidation)

    _, err = s.Create(context.Background(), guide, CreateBookingInput{ExperienceID: 7, DateID: 3, GuestCount: 1})
    assert.ErrorIs(t, err, repository.ErrForbidden)
}

func TestBookingService_CreateUnknownExperience(t *testing.T) {
    s, m, _ := newBookingService(t, nil)
    m.ExpectBegin()
    m.ExpectQuery(q("WHERE e.id = ?")).WithArgs(7).WillReturnRows(sqlmock.NewRows(experienceColumns))
    m.ExpectRollback()

    _, err := s.Create(context.Background(), traveler, CreateBookingInput{ExperienceID: 7, DateID: 3, GuestCount: 1})
    assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestBookingService_CreatePastDate(t *testing.T) {
    s, m, _ := newBookingService(t, nil)
    s.now = func() time.Time { return tourDay.AddDate(0, 0, 1) }
    m.ExpectBegin()
    expectBookable(m)
    expectDecrement(m, 1, 3)
    m.ExpectRollback()

    _, err := s.Create(context.Background(), traveler, CreateBookingInput{ExperienceID: 7, DateID: 3, GuestCount: 1})
    assert.ErrorIs(t, err, ErrValidation)
}

func TestBookingService_CreatePaymentDeclinedRollsBack(t *testing.T) {
    gw := &mockGateway{}
    gw.On("CreateIntent", mock.Anything, mock.MatchedBy(func(r payment.ChargeRequest) bool {
        return r.AmountCents == 10000 && r.GuestCount == 2
    })).Return(nil, payment.ErrPaymentFailed)
    s, m, pub := newBookingService(t, gw)
    m.ExpectBegin()
    expectBookable(m)
    expectDecrement(m, 2, 2)
    m.ExpectRollback()

    _, err := s.Create(context.Background(), traveler, CreateBookingInput{ExperienceID: 7, DateID: 3, GuestCount: 2, PaymentMethodID: "pm_x"})
    assert.ErrorIs(t, err, payment.ErrPaymentFailed)
    assert.Empty(t, pub.events)
    gw.AssertExpectations(t)
}

func TestBookingService_CreateAwaitingPaymentIsPending(t *testing.T) {
    gw := &mockGateway{}
    gw.On("CreateIntent", mock.Anything, mock.Anything).Return(&payment.Intent{ID: "pi_1", Status: "requires_action", ClientSecret: "pi_1_secret"}, nil)
    s, m, _ := newBookingService(t, gw)
    m.ExpectBegin()
    expectBookable(m)
    expectDecrement(m, 1, 3)
    m.ExpectExec(q("INSERT INTO bookings")).
        WithArgs(7, 3, 11, "2030-05-10", 1, 5000, 5000, "pending", "pi_1").
        WillReturnResult(sqlmock.NewResult(22, 1))
    m.ExpectCommit()

    b, err := s.Create(context.Background(), traveler, CreateBookingInput{ExperienceID: 7, DateID: 3, GuestCount: 1, PaymentMethodID: "pm_x"})
    require.NoError(t, err)
    assert.Equal(t, model.BookingPending, b.Status)
    require.NotNil(t, b.PaymentIntentID)
    assert.Equal(t, "pi_1", *b.PaymentIntentID)
    assert.Equal(t, "pi_1_secret", b.ClientSecret)
}

func TestBookingService_CreateWithGatewayNeedsPaymentMethod(t *testing.T) {
    gw := &mockGateway{}
    s, _, pub := newBookingService(t, gw)

    _, err := s.Create(context.Background(), traveler, CreateBookingInput{ExperienceID: 7, DateID: 3, GuestCount: 1})
    require.ErrorIs(t, err, ErrValidation)
    assert.Contains(t, err.Error(), "payment_method_id is required")
    assert.Empty(t, pub.events)
    gw.AssertNotCalled(t, "CreateIntent", mock.Anything, mock.Anything)
}

func TestBookingService_CreateRefundsWhenCommitFails(t *testing.T) {
    gw := &mockGateway{}
    gw.On("CreateIntent", mock.Anything, mock.Anything).Return(&payment.Intent{ID: "pi_9", Succeeded: true}, nil)
    gw.On("Refund", mock.Anything, "pi_9").Return(nil)
    s, m, pub := newBookingService(t, gw)
    m.ExpectBegin()
    expectBookable(m)
    expectDecrement(m, 1, 3)
    m.ExpectExec(q("INSERT INTO bookings")).WillReturnResult(sqlmock.NewResult(23, 1))
    m.ExpectCommit().WillReturnError(errors.New("connection lost"))

    _, err := s.Create(context.Background(), traveler, CreateBookingInput{ExperienceID: 7, DateID: 3, GuestCount: 1, PaymentMethodID: "pm_x"})
    assert.Error(t, err)
    assert.Empty(t, pub.events)
    gw.AssertExpectations(t)
}

func expectLockedBooking(m sqlmock.Sqlmock, rows *sqlmock.Rows) {
    m.ExpectQuery(q("WHERE b.id = ? FOR UPDATE")).WithArgs(21).WillReturnRows(rows)
}

func TestBookingService_CancelRestoresSlots(t *testing.T) {
    s, m, pub := newBookingService(t, nil)
    m.ExpectBegin()
    expectLockedBooking(m, bookingRows(21, 11, model.BookingConfirmed, 3, nil))
    m.ExpectExec(q("UPDATE bookings SET status = ? WHERE id = ? AND status = ?")).
        WithArgs("cancelled", 21, "confirmed").
        WillReturnResult(sqlmock.NewResult(0, 1))
    m.ExpectExec(q("SET available_slots = available_slots + ? WHERE id = ?")).
        WithArgs(3, 3).
        WillReturnResult(sqlmock.NewResult(0, 1))
    m.ExpectCommit()

    b, err := s.Cancel(context.Background(), traveler, 21)
    require.NoError(t, err)
    assert.Equal(t, model.BookingCancelled, b.Status)
    require.Len(t, pub.events, 1)
    assert.Equal(t, model.BookingCancelled, pub.events[0].Status)
}

func TestBookingService_CancelTwiceConflicts(t *testing.T) {
    s, m, _ := newBookingService(t, nil)
    m.ExpectBegin()
    expectLockedBooking(m, bookingRows(21, 11, model.BookingCancelled, 3, nil))
    m.ExpectRollback()

    _, err := s.Cancel(context.Background(), traveler, 21)
    assert.ErrorIs(t, err, repository.ErrInvalidTransition)
}

func TestBookingService_CancelCompletedConflicts(t *testing.T) {
    s, m, _ := newBookingService(t, nil)
    m.ExpectBegin()
    expectLockedBooking(m, bookingRows(21, 11, model.BookingCompleted, 3, nil))
    m.ExpectRollback()

    _, err := s.Cancel(context.Background(), admin, 21)
    assert.ErrorIs(t, err, repository.ErrInvalidTransition)
}

func TestBookingService_CancelByStrangerForbidden(t *testing.T) {
    s, m, _ := newBookingService(t, nil)
    m.ExpectBegin()
    expectLockedBooking(m, bookingRows(21, 11, model.BookingConfirmed, 3, nil))
    m.ExpectRollback()

    _, err := s.Cancel(context.Background(), Caller{UserID: 99, Role: model.RoleTraveler}, 21)
    assert.ErrorIs(t, err, repository.ErrForbidden)
}

func TestBookingService_CancelPaidBookingRefunds(t *testing.T) {
    gw := &mockGateway{}
    gw.On("Refund", mock.Anything, "pi_1").Return(nil)
    s, m, _ := newBookingService(t, gw)
    m.ExpectBegin()
    expectLockedBooking(m, bookingRows(21, 11, model.BookingConfirmed, 2, "pi_1"))
    m.ExpectExec(q("UPDATE bookings SET status = ?")).WillReturnResult(sqlmock.NewResult(0, 1))
    m.ExpectExec(q("available_slots + ?")).WithArgs(2, 3).WillReturnResult(sqlmock.NewResult(0, 1))
    m.ExpectCommit()

    _, err := s.Cancel(context.Background(), admin, 21)
    require.NoError(t, err)
    gw.AssertExpectations(t)
}

func TestBookingService_CompleteBeforeTourConflicts(t *testing.T) {
    s, m, _ := newBookingService(t, nil)
    m.ExpectBegin()
    expectLockedBooking(m, bookingRows(21, 11, model.BookingConfirmed, 2, nil))
    m.ExpectRollback()

    _, err := s.Complete(context.Background(), guide, 21)
    assert.ErrorIs(t, err, repository.ErrConflict)
}

func TestBookingService_CompleteByGuideAfterTour(t *testing.T) {
    s, m, pub := newBookingService(t, nil)
    s.now = func() time.Time { return tourDay.Add(20 * time.Hour) }
    m.ExpectBegin()
    expectLockedBooking(m, bookingRows(21, 11, model.BookingConfirmed, 2, nil))
    m.ExpectExec(q("UPDATE bookings SET status = ?")).
        WithArgs("completed", 21, "confirmed").
        WillReturnResult(sqlmock.NewResult(0, 1))
    m.ExpectCommit()

    b, err := s.Complete(context.Background(), guide, 21)
    require.NoError(t, err)
    assert.Equal(t, model.BookingCompleted, b.Status)
    assert.Len(t, pub.events, 1)
}

func TestBookingService_CompleteByOtherGuideForbidden(t *testing.T) {
    s, m, _ := newBookingService(t, nil)
    m.ExpectBegin()
    expectLockedBooking(m, bookingRows(21, 11, model.BookingConfirmed, 2, nil))
    m.ExpectRollback()

    _, err := s.Complete(context.Background(), Caller{UserID: 6, Role: model.RoleGuide}, 21)
    assert.ErrorIs(t, err, repository.ErrForbidden)
}

func TestBookingService_CompleteDue(t *testing.T) {
    s, m, pub := newBookingService(t, nil)
    rows := sqlmock.NewRows(bookingColumns).
        AddRow(31, 7, 3, 11, 5, tourDay, 2, 5000, 10000, "confirmed", nil, stamp, stamp, "Sunset Safari", "Arusha").
        AddRow(32, 7, 3, 12, 5, tourDay, 1, 5000, 5000, "confirmed", nil, stamp, stamp, "Sunset Safari", "Arusha")
    m.ExpectQuery(q("WHERE b.status = ? AND b.tour_date < ?")).
        WithArgs("confirmed", "2030-05-01", completionBatch).
        WillReturnRows(rows)
    m.ExpectBegin()
    m.ExpectExec(q("UPDATE bookings SET status = ?")).WithArgs("completed", 31, "confirmed").WillReturnResult(sqlmock.NewResult(0, 1))
    m.ExpectCommit()
    m.ExpectBegin()
    m.ExpectExec(q("UPDATE bookings SET status = ?")).WithArgs("completed", 32, "confirmed").WillReturnResult(sqlmock.NewResult(0, 0))
    m.ExpectRollback()

    n, err := s.CompleteDue(context.Background())
    require.NoError(t, err)
    assert.Equal(t, 1, n)
    require.Len(t, pub.events, 1)
    assert.Equal(t, uint64(31), pub.events[0].ID)
}

// Booking 41 is still unpaid and expires; 42 was confirmed by a webhook
// between the listing and the lock, so it is left alone.
func TestBookingService_ExpirePending(t *testing.T) {
    gw := &mockGateway{}
    gw.On("CancelIntent", mock.Anything, "pi_41").Return(nil)
    s, m, pub := newBookingService(t, gw)
    rows := sqlmock.NewRows(bookingColumns).
        AddRow(41, 7, 3, 11, 5, tourDay, 2, 5000, 10000, "pending", "pi_41", stamp, stamp, "Sunset Safari", "Arusha").
        AddRow(42, 7, 3, 12, 5, tourDay, 1, 5000, 5000, "pending", "pi_42", stamp, stamp, "Sunset Safari", "Arusha")
    m.ExpectQuery(q("WHERE b.status = ? AND b.created_at < ?")).
        WithArgs("pending", fixedNow().Add(-DefaultPendingTTL), completionBatch).
        WillReturnRows(rows)

    m.ExpectBegin()
    m.ExpectQuery(q("WHERE b.id = ? FOR UPDATE")).WithArgs(41).WillReturnRows(bookingRows(41, 11, model.BookingPending, 2, "pi_41"))
    m.ExpectExec(q("UPDATE bookings SET status = ?")).WithArgs("cancelled", 41, "pending").WillReturnResult(sqlmock.NewResult(0, 1))
    m.ExpectExec(q("available_slots + ?")).WithArgs(2, 3).WillReturnResult(sqlmock.NewResult(0, 1))
    m.ExpectCommit()

    m.ExpectBegin()
    m.ExpectQuery(q("WHERE b.id = ? FOR UPDATE")).WithArgs(42).WillReturnRows(bookingRows(42, 12, model.BookingConfirmed, 1, "pi_42"))
    m.ExpectCommit()

    n, err := s.ExpirePending(context.Background())
    require.NoError(t, err)
    assert.Equal(t, 1, n)
    require.Len(t, pub.events, 1)
    assert.Equal(t, uint64(41), pub.events[0].ID)
    assert.Equal(t, model.BookingCancelled, pub.events[0].Status)
    gw.AssertExpectations(t)
    gw.AssertNotCalled(t, "CancelIntent", mock.Anything, "pi_42")
}

func TestBookingService_ExpirePendingHonoursTTL(t *testing.T) {
    s, m, _ := newBookingService(t, nil)
    s.SetPendingTTL(2 * time.Hour)
    s.SetPendingTTL(0)
    m.ExpectQuery(q("WHERE b.status = ? AND b.created_at < ?")).
        WithArgs("pending", fixedNow().Add(-2*time.Hour), completionBatch).
        WillReturnRows(sqlmock.NewRows(bookingColumns))

    n, err := s.ExpirePending(context.Background())
    require.NoError(t, err)
    assert.Zero(t, n)
}

func expectIntentBooking(m sqlmock.Sqlmock, status model.BookingStatus) {
    m.ExpectQuery(q("WHERE b.payment_intent_id = ? FOR UPDATE")).
        WithArgs("pi_1").
        WillReturnRows(bookingRows(21, 11, status, 2, "pi_1"))
}

func TestBookingService_PaymentSucceededConfirms(t *testing.T) {
    s, m, pub := newBookingService(t, nil)
    m.ExpectBegin()
    expectIntentBooking(m, model.BookingPending)
    m.ExpectExec(q("UPDATE bookings SET status = ?")).WithArgs("confirmed", 21, "pending").WillReturnResult(sqlmock.NewResult(0, 1))
    m.ExpectCommit()

    err := s.HandlePaymentEvent(context.Background(), &payment.Event{Type: payment.EventIntentSucceeded, IntentID: "pi_1"})
    require.NoError(t, err)
    require.Len(t, pub.events, 1)
    assert.Equal(t, model.BookingConfirmed, pub.events[0].Status)
}

func TestBookingService_PaymentEventReplayIsNoop(t *testing.T) {
    s, m, pub := newBookingService(t, nil)
    m.ExpectBegin()
    expectIntentBooking(m, model.BookingConfirmed)
    m.ExpectCommit()

    err := s.HandlePaymentEvent(context.Background(), &payment.Event{Type: payment.EventIntentSucceeded, IntentID: "pi_1"})
    require.NoError(t, err)
    assert.Empty(t, pub.events)
}

func TestBookingService_PaymentFailedCancelsAndRestores(t *testing.T) {
    s, m, _ := newBookingService(t, nil)
    m.ExpectBegin()
    expectIntentBooking(m, model.BookingPending)
    m.ExpectExec(q("UPDATE bookings SET status = ?")).WithArgs("cancelled", 21, "pending").WillReturnResult(sqlmock.NewResult(0, 1))
    m.ExpectExec(q("available_slots + ?")).WithArgs(2, 3).WillReturnResult(sqlmock.NewResult(0, 1))
    m.ExpectCommit()

    err := s.HandlePaymentEvent(context.Background(), &payment.Event{Type: payment.EventIntentFailed, IntentID: "pi_1"})
    require.NoError(t, err)
}

func TestBookingService_GetVisibility(t *testing.T) {
    s, m, _ := newBookingService(t, nil)
    for i := 0; i < 4; i++ {
        m.ExpectQuery(q("WHERE b.id = ?")).WithArgs(21).WillReturnRows(bookingRows(21, 11, model.BookingConfirmed, 2, nil))
    }

    for _, c := range []Caller{traveler, guide, admin} {
        _, err := s.Get(context.Background(), c, 21)
        assert.NoError(t, err, c.Role)
    }
    _, err := s.Get(context.Background(), Caller{UserID: 6, Role: model.RoleGuide}, 21)
    assert.ErrorIs(t, err, repository.ErrForbidden)
}
