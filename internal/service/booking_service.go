package service

import (
    "context"
    "database/sql"
    "errors"
    "fmt"
    "time"

    "github.com/iliyamo/tour-experience-booking/internal/logger"
    "github.com/iliyamo/tour-experience-booking/internal/model"
    "github.com/iliyamo/tour-experience-booking/internal/payment"
    "github.com/iliyamo/tour-experience-booking/internal/repository"
)

// completionBatch bounds how many bookings one CompleteDue or
// ExpirePending pass touches.
const completionBatch = 100

// DefaultPendingTTL is how long a booking may wait for its payment before
// ExpirePending releases it.
const DefaultPendingTTL = 30 * time.Minute

type BookingService struct {
    db          *sql.DB
    experiences *repository.ExperienceRepo
    dates       *repository.ExperienceDateRepo
    bookings    *repository.BookingRepo
    gateway     payment.Gateway
    events      EventPublisher
    pendingTTL  time.Duration
    now         func() time.Time
}

// NewBookingService wires the booking use cases.  A nil gateway disables
// payments and bookings are confirmed immediately; a nil publisher drops
// events.
func NewBookingService(db *sql.DB, experiences *repository.ExperienceRepo, dates *repository.ExperienceDateRepo,
    bookings *repository.BookingRepo, gateway payment.Gateway, events EventPublisher) *BookingService {
    if events == nil {
        events = NoopPublisher{}
    }
    return &BookingService{
        db:          db,
        experiences: experiences,
        dates:       dates,
        bookings:    bookings,
        gateway:     gateway,
        events:      events,
        pendingTTL:  DefaultPendingTTL,
        now:         time.Now,
    }
}

// SetPendingTTL changes how long unpaid bookings hold their slots.
// Non-positive values keep the default.
func (s *BookingService) SetPendingTTL(d time.Duration) {
    if d > 0 {
        s.pendingTTL = d
    }
}

type CreateBookingInput struct {
    ExperienceID    uint64
    DateID          uint64
    GuestCount      int
    PaymentMethodID string
}

// Create books guest_count places on one date of an experience.  The slot
// decrement, the payment and the insert succeed or fail together: a
// refused payment rolls back the decrement.
func (s *BookingService) Create(ctx context.Context, c Caller, in CreateBookingInput) (*model.Booking, error) {
    if c.Role != model.RoleTraveler {
        return nil, repository.ErrForbidden
    }
    if in.GuestCount < 1 {
        return nil, invalid("guest_count must be at least 1")
    }
    if s.gateway != nil && in.PaymentMethodID == "" {
        return nil, invalid("payment_method_id is required")
    }

    tx, err := s.db.BeginTx(ctx, nil)
    if err != nil {
        return nil, err
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()

    exp, err := s.experiences.GetPublicTx(ctx, tx, in.ExperienceID)
    if err != nil {
        return nil, err
    }
    date, err := s.dates.DecrementTx(ctx, tx, in.DateID, in.ExperienceID, in.GuestCount)
    if err != nil {
        return nil, err
    }
    if date.TourDate.Before(startOfDay(s.now())) {
        return nil, invalid("tour date %s has passed", date.Date)
    }

    b := &model.Booking{
        ExperienceID:        exp.ID,
        ExperienceDateID:    date.ID,
        TravelerID:          c.UserID,
        GuideID:             exp.GuideID,
        TourDate:            date.TourDate,
        GuestCount:          in.GuestCount,
        PricePerPersonCents: exp.PricePerPersonCents,
        TotalPriceCents:     exp.PricePerPersonCents * int64(in.GuestCount),
        Status:              model.BookingConfirmed,
        ExperienceTitle:     exp.Title,
        Location:            exp.Location,
    }

    var intent *payment.Intent
    if s.gateway != nil {
        intent, err = s.gateway.CreateIntent(ctx, payment.ChargeRequest{
            AmountCents:     b.TotalPriceCents,
            PaymentMethodID: in.PaymentMethodID,
            ExperienceID:    exp.ID,
            DateID:          date.ID,
            TravelerID:      c.UserID,
            GuestCount:      in.GuestCount,
        })
        if err != nil {
            return nil, err
        }
        b.PaymentIntentID = &intent.ID
        if !intent.Succeeded {
            b.Status = model.BookingPending
            b.ClientSecret = intent.ClientSecret
        }
    }

    if err := s.bookings.CreateTx(ctx, tx, b); err != nil {
        s.releasePayment(ctx, intent)
        return nil, err
    }
    if err := tx.Commit(); err != nil {
        s.releasePayment(ctx, intent)
        return nil, err
    }
    committed = true

    logger.FromContext(ctx).Info().
        Uint64("booking_id", b.ID).
        Uint64("experience_id", b.ExperienceID).
        Int("guests", b.GuestCount).
        Int64("total_cents", b.TotalPriceCents).
        Str("status", string(b.Status)).
        Msg("booking created")
    s.events.PublishBooking(ctx, b)
    return b, nil
}

// releasePayment refunds a captured charge or voids an uncaptured intent.
func (s *BookingService) releasePayment(ctx context.Context, intent *payment.Intent) {
    if intent == nil {
        return
    }
    ctx = context.WithoutCancel(ctx)
    var err error
    if intent.Succeeded {
        err = s.gateway.Refund(ctx, intent.ID)
    } else {
        err = s.gateway.CancelIntent(ctx, intent.ID)
    }
    if err != nil {
        logger.FromContext(ctx).Error().Err(err).Str("payment_intent", intent.ID).Msg("releasing payment failed")
    }
}

// Cancel cancels a pending or confirmed booking and gives its slots back
// exactly once.  Paid bookings are refunded after the commit.
func (s *BookingService) Cancel(ctx context.Context, c Caller, id uint64) (*model.Booking, error) {
    var (
        b    *model.Booking
        prev model.BookingStatus
    )
    err := withTx(ctx, s.db, func(tx *sql.Tx) error {
        var err error
        b, err = s.bookings.GetForUpdateTx(ctx, tx, id)
        if err != nil {
            return err
        }
        if b.TravelerID != c.UserID && !c.IsAdmin() {
            return repository.ErrForbidden
        }
        prev = b.Status
        if err := s.transitionTx(ctx, tx, b, model.BookingCancelled); err != nil {
            return err
        }
        return s.dates.RestoreTx(ctx, tx, b.ExperienceDateID, b.GuestCount)
    })
    if err != nil {
        return nil, err
    }

    if s.gateway != nil && b.PaymentIntentID != nil {
        s.releasePayment(ctx, &payment.Intent{ID: *b.PaymentIntentID, Succeeded: prev == model.BookingConfirmed})
    }
    logger.FromContext(ctx).Info().Uint64("booking_id", b.ID).Uint64("by", c.UserID).Int("restored_slots", b.GuestCount).Msg("booking cancelled")
    s.events.PublishBooking(ctx, b)
    return b, nil
}

// Complete marks a confirmed booking whose tour day has arrived as
// completed.  Only an admin or the experience's guide may do so.
func (s *BookingService) Complete(ctx context.Context, c Caller, id uint64) (*model.Booking, error) {
    var b *model.Booking
    err := withTx(ctx, s.db, func(tx *sql.Tx) error {
        var err error
        b, err = s.bookings.GetForUpdateTx(ctx, tx, id)
        if err != nil {
            return err
        }
        if !c.IsAdmin() && !(c.IsGuide() && b.GuideID == c.UserID) {
            return repository.ErrForbidden
        }
        if b.TourDate.After(startOfDay(s.now())) {
            return fmt.Errorf("tour on %s has not taken place yet: %w", b.Date, repository.ErrConflict)
        }
        return s.transitionTx(ctx, tx, b, model.BookingCompleted)
    })
    if err != nil {
        return nil, err
    }
    logger.FromContext(ctx).Info().Uint64("booking_id", b.ID).Uint64("by", c.UserID).Msg("booking completed")
    s.events.PublishBooking(ctx, b)
    return b, nil
}

// CompleteDue moves confirmed bookings whose tour date is before today to
// completed and returns how many it changed.  Bookings that changed state
// concurrently are skipped.
func (s *BookingService) CompleteDue(ctx context.Context) (int, error) {
    due, err := s.bookings.ListDueForCompletion(ctx, startOfDay(s.now()), completionBatch)
    if err != nil {
        return 0, err
    }
    done := 0
    for i := range due {
        b := &due[i]
        err := withTx(ctx, s.db, func(tx *sql.Tx) error {
            return s.bookings.UpdateStatusTx(ctx, tx, b.ID, model.BookingConfirmed, model.BookingCompleted)
        })
        if errors.Is(err, repository.ErrInvalidTransition) {
            continue
        }
        if err != nil {
            return done, err
        }
        b.Status = model.BookingCompleted
        done++
        s.events.PublishBooking(ctx, b)
    }
    return done, nil
}

// ExpirePending cancels bookings that have waited longer than the pending
// TTL for their payment, gives their slots back and voids the intents.
// Bookings paid or cancelled in the meantime are skipped.
func (s *BookingService) ExpirePending(ctx context.Context) (int, error) {
    stale, err := s.bookings.ListStalePending(ctx, s.now().Add(-s.pendingTTL), completionBatch)
    if err != nil {
        return 0, err
    }
    expired := 0
    for i := range stale {
        var (
            b       *model.Booking
            changed bool
        )
        err := withTx(ctx, s.db, func(tx *sql.Tx) error {
            var err error
            b, err = s.bookings.GetForUpdateTx(ctx, tx, stale[i].ID)
            if err != nil {
                return err
            }
            if b.Status != model.BookingPending {
                return nil
            }
            if err := s.transitionTx(ctx, tx, b, model.BookingCancelled); err != nil {
                return err
            }
            changed = true
            return s.dates.RestoreTx(ctx, tx, b.ExperienceDateID, b.GuestCount)
        })
        if errors.Is(err, repository.ErrNotFound) || errors.Is(err, repository.ErrInvalidTransition) {
            continue
        }
        if err != nil {
            return expired, err
        }
        if !changed {
            continue
        }
        if s.gateway != nil && b.PaymentIntentID != nil {
            s.releasePayment(ctx, &payment.Intent{ID: *b.PaymentIntentID})
        }
        expired++
        logger.FromContext(ctx).Info().Uint64("booking_id", b.ID).Int("restored_slots", b.GuestCount).Msg("unpaid booking expired")
        s.events.PublishBooking(ctx, b)
    }
    return expired, nil
}

// HandlePaymentEvent reconciles a booking with an asynchronous payment
// outcome.  Replayed events are no-ops.
func (s *BookingService) HandlePaymentEvent(ctx context.Context, ev *payment.Event) error {
    if ev == nil || ev.IntentID == "" {
        return nil
    }
    var target model.BookingStatus
    switch ev.Type {
    case payment.EventIntentSucceeded:
        target = model.BookingConfirmed
    case payment.EventIntentFailed, payment.EventIntentCanceled:
        target = model.BookingCancelled
    default:
        return nil
    }

    var (
        b       *model.Booking
        changed bool
    )
    err := withTx(ctx, s.db, func(tx *sql.Tx) error {
        var err error
        b, err = s.bookings.GetByPaymentIntentForUpdateTx(ctx, tx, ev.IntentID)
        if err != nil {
            return err
        }
        if b.Status != model.BookingPending {
            return nil
        }
        if err := s.transitionTx(ctx, tx, b, target); err != nil {
            return err
        }
        changed = true
        if target == model.BookingCancelled {
            return s.dates.RestoreTx(ctx, tx, b.ExperienceDateID, b.GuestCount)
        }
        return nil
    })
    if err != nil {
        return err
    }
    if changed {
        logger.FromContext(ctx).Info().Uint64("booking_id", b.ID).Str("event", ev.Type).Str("status", string(b.Status)).Msg("booking reconciled with payment")
        s.events.PublishBooking(ctx, b)
    }
    return nil
}

// Get returns a booking visible to its traveler, its guide or an admin.
func (s *BookingService) Get(ctx context.Context, c Caller, id uint64) (*model.Booking, error) {
    b, err := s.bookings.GetByID(ctx, id)
    if err != nil {
        return nil, err
    }
    if c.IsAdmin() || b.TravelerID == c.UserID || (c.IsGuide() && b.GuideID == c.UserID) {
        return b, nil
    }
    return nil, repository.ErrForbidden
}

func (s *BookingService) ListMine(ctx context.Context, c Caller) ([]model.Booking, error) {
    return s.bookings.ListByTraveler(ctx, c.UserID)
}

// ListForGuide returns the bookings on the calling guide's experiences.
func (s *BookingService) ListForGuide(ctx context.Context, c Caller) ([]model.Booking, error) {
    if !c.IsGuide() {
        return nil, repository.ErrForbidden
    }
    return s.bookings.ListByGuide(ctx, c.UserID)
}

func (s *BookingService) transitionTx(ctx context.Context, tx *sql.Tx, b *model.Booking, to model.BookingStatus) error {
    if !b.Status.CanTransition(to) {
        return fmt.Errorf("booking is %s: %w", b.Status, repository.ErrInvalidTransition)
    }
    if err := s.bookings.UpdateStatusTx(ctx, tx, b.ID, b.Status, to); err != nil {
        return err
    }
    b.Status = to
    return nil
}
