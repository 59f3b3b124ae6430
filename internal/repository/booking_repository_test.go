package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/tour-experience-booking/internal/model"
)

func TestBookingRepo_CreateTxSnapshotsPrice(t *testing.T) {
	db, mock := setupMockDB(t)
	tx := beginTx(t, db, mock)
	mock.ExpectExec(q("INSERT INTO bookings")).
		WithArgs(7, 3, 11, "2030-05-10", 3, 5000, 15000, "confirmed", nil).
		WillReturnResult(sqlmock.NewResult(21, 1))

	b := &model.Booking{ExperienceID: 7, ExperienceDateID: 3, TravelerID: 11, TourDate: tourDay,
		GuestCount: 3, PricePerPersonCents: 5000, TotalPriceCents: 15000, Status: model.BookingConfirmed}
	require.NoError(t, NewBookingRepo(db).CreateTx(context.Background(), tx, b))
	assert.Equal(t, uint64(21), b.ID)
	assert.InDelta(t, 150.0, b.TotalPrice, 0.001)
	assert.Equal(t, "2030-05-10", b.Date)
}

func TestBookingRepo_GetByID(t *testing.T) {
	db, mock := setupMockDB(t)
	mock.ExpectQuery(q("FROM bookings b JOIN experiences e ON e.id = b.experience_id WHERE b.id = ?")).
		WithArgs(21).
		WillReturnRows(bookingRow(sqlmock.NewRows(bookingColumns), 21, "pending", 2))

	b, err := NewBookingRepo(db).GetByID(context.Background(), 21)
	require.NoError(t, err)
	assert.Equal(t, model.BookingPending, b.Status)
	assert.Equal(t, uint64(5), b.GuideID)
	assert.Equal(t, "Sunset Safari", b.ExperienceTitle)
	assert.Nil(t, b.PaymentIntentID)
	assert.InDelta(t, 100.0, b.TotalPrice, 0.001)
}

func TestBookingRepo_GetForUpdateTxNotFound(t *testing.T) {
	db, mock := setupMockDB(t)
	tx := beginTx(t, db, mock)
	mock.ExpectQuery(q("WHERE b.id = ? FOR UPDATE")).
		WithArgs(404).
		WillReturnRows(sqlmock.NewRows(bookingColumns))

	_, err := NewBookingRepo(db).GetForUpdateTx(context.Background(), tx, 404)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBookingRepo_UpdateStatusTx(t *testing.T) {
	t.Run("disallowed move never reaches the database", func(t *testing.T) {
		db, mock := setupMockDB(t)
		tx := beginTx(t, db, mock)
		err := NewBookingRepo(db).UpdateStatusTx(context.Background(), tx, 1, model.BookingCancelled, model.BookingConfirmed)
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})
	t.Run("stale status", func(t *testing.T) {
		db, mock := setupMockDB(t)
		tx := beginTx(t, db, mock)
		mock.ExpectExec(q("UPDATE bookings SET status = ? WHERE id = ? AND status = ?")).
			WithArgs("cancelled", 1, "confirmed").
			WillReturnResult(sqlmock.NewResult(0, 0))
		err := NewBookingRepo(db).UpdateStatusTx(context.Background(), tx, 1, model.BookingConfirmed, model.BookingCancelled)
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})
	t.Run("applied", func(t *testing.T) {
		db, mock := setupMockDB(t)
		tx := beginTx(t, db, mock)
		mock.ExpectExec(q("UPDATE bookings SET status = ?")).
			WithArgs("completed", 1, "confirmed").
			WillReturnResult(sqlmock.NewResult(0, 1))
		require.NoError(t, NewBookingRepo(db).UpdateStatusTx(context.Background(), tx, 1, model.BookingConfirmed, model.BookingCompleted))
	})
}

func TestBookingRepo_ListDueForCompletion(t *testing.T) {
	db, mock := setupMockDB(t)
	mock.ExpectQuery(q("WHERE b.status = ? AND b.tour_date < ?")).
		WithArgs("confirmed", "2030-05-11", 50).
		WillReturnRows(bookingRow(sqlmock.NewRows(bookingColumns), 1, "confirmed", 2))

	out, err := NewBookingRepo(db).ListDueForCompletion(context.Background(), tourDay.AddDate(0, 0, 1), 50)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, model.BookingConfirmed, out[0].Status)
}

func TestBookingRepo_ListStalePending(t *testing.T) {
	db, mock := setupMockDB(t)
	cutoff := time.Date(2030, 5, 1, 11, 30, 0, 0, time.UTC)
	mock.ExpectQuery(q("WHERE b.status = ? AND b.created_at < ? ORDER BY b.created_at ASC, b.id ASC LIMIT ?")).
		WithArgs("pending", cutoff, 100).
		WillReturnRows(bookingRow(sqlmock.NewRows(bookingColumns), 4, "pending", 3))

	out, err := NewBookingRepo(db).ListStalePending(context.Background(), cutoff, 100)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, uint64(4), out[0].ID)
	assert.Equal(t, model.BookingPending, out[0].Status)
}
