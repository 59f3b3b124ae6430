// Package service implements the marketplace use cases on top of the
// repositories: authentication, the experience catalog, bookings with
// payments, reviews and admin moderation.  Every multi-row change runs in
// a single database transaction.
package service

import (
    "context"
    "database/sql"
    "errors"
    "fmt"
    "time"

    "github.com/iliyamo/tour-experience-booking/internal/model"
)

var (
    // ErrValidation marks malformed input.  The wrapped message is safe to
    // show to clients.
    ErrValidation = errors.New("invalid input")

    ErrInvalidCredentials = errors.New("invalid credentials")
)

func invalid(format string, args ...any) error {
    return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Caller identifies the authenticated user behind a request.
type Caller struct {
    UserID uint64
    Role   string
}

func (c Caller) IsAdmin() bool { return c.Role == model.RoleAdmin }
func (c Caller) IsGuide() bool { return c.Role == model.RoleGuide }

// startOfDay truncates t to midnight UTC, the resolution of tour dates.
func startOfDay(t time.Time) time.Time {
    t = t.UTC()
    return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func parseDay(s string) (time.Time, error) {
    d, err := time.ParseInLocation(model.DateLayout, s, time.UTC)
    if err != nil {
        return time.Time{}, invalid("date %q must be YYYY-MM-DD", s)
    }
    return d, nil
}

// withTx runs fn in a transaction, committing when fn returns nil.
func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
    tx, err := db.BeginTx(ctx, nil)
    if err != nil {
        return err
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()
    if err := fn(tx); err != nil {
        return err
    }
    if err := tx.Commit(); err != nil {
        return err
    }
    committed = true
    return nil
}
