package model

import (
    "testing"

    "github.com/stretchr/testify/assert"
)

func TestBookingStatus_CanTransition(t *testing.T) {
    cases := []struct {
        from, to BookingStatus
        ok       bool
    }{
        {BookingPending, BookingConfirmed, true},
        {BookingPending, BookingCancelled, true},
        {BookingPending, BookingCompleted, false},
        {BookingConfirmed, BookingCompleted, true},
        {BookingConfirmed, BookingCancelled, true},
        {BookingConfirmed, BookingPending, false},
        {BookingCompleted, BookingCancelled, false},
        {BookingCancelled, BookingConfirmed, false},
    }
    for _, tc := range cases {
        assert.Equal(t, tc.ok, tc.from.CanTransition(tc.to), "%s -> %s", tc.from, tc.to)
    }
}

func TestBookingStatus_Terminal(t *testing.T) {
    assert.True(t, BookingCompleted.Terminal())
    assert.True(t, BookingCancelled.Terminal())
    assert.False(t, BookingPending.Terminal())
    assert.False(t, BookingConfirmed.Terminal())
}

func TestCents(t *testing.T) {
    assert.Equal(t, int64(5000), ToCents(50))
    assert.Equal(t, int64(1999), ToCents(19.99))
    assert.InDelta(t, 150.0, FromCents(15000), 0.0001)
}
