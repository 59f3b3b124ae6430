package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/tour-experience-booking/internal/model"
)

// ExperienceDateRepo manages the per-day inventory of an experience.  The
// available_slots column is only ever changed through conditional UPDATEs
// so two concurrent bookings cannot both take the last slot.
type ExperienceDateRepo struct {
	db *sql.DB
}

func NewExperienceDateRepo(db *sql.DB) *ExperienceDateRepo { return &ExperienceDateRepo{db: db} }

const dateCols = "id, experience_id, tour_date, available_slots"

// InsertTx adds one row per date with the given number of slots.  Dates the
// experience already offers are left untouched.
func (r *ExperienceDateRepo) InsertTx(ctx context.Context, tx *sql.Tx, experienceID uint64, dates []time.Time, slots int) error {
	if len(dates) == 0 {
		return nil
	}
	var sb strings.Builder
	sb.WriteString("INSERT INTO experience_dates (experience_id, tour_date, available_slots) VALUES ")
	args := make([]any, 0, len(dates)*3)
	for i, d := range dates {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString("(?, ?, ?)")
		args = append(args, experienceID, d.Format(model.DateLayout), slots)
	}
	sb.WriteString(" ON DUPLICATE KEY UPDATE id = id")
	_, err := tx.ExecContext(ctx, sb.String(), args...)
	return err
}

// GetTx returns one date row of an experience.
func (r *ExperienceDateRepo) GetTx(ctx context.Context, tx *sql.Tx, dateID, experienceID uint64) (*model.ExperienceDate, error) {
	row := tx.QueryRowContext(ctx,
		"SELECT "+dateCols+" FROM experience_dates WHERE id = ? AND experience_id = ?", dateID, experienceID)
	return scanDate(row)
}

// DecrementTx takes n slots from a date row and returns the updated row.
// It fails with ErrNotFound when the date does not belong to the
// experience and with ErrInsufficientSlots when fewer than n remain.
func (r *ExperienceDateRepo) DecrementTx(ctx context.Context, tx *sql.Tx, dateID, experienceID uint64, n int) (*model.ExperienceDate, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE experience_dates SET available_slots = available_slots - ?
		 WHERE id = ? AND experience_id = ? AND available_slots >= ?`,
		n, dateID, experienceID, n)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		if _, err := r.GetTx(ctx, tx, dateID, experienceID); err != nil {
			return nil, err
		}
		return nil, ErrInsufficientSlots
	}
	return r.GetTx(ctx, tx, dateID, experienceID)
}

// RestoreTx gives n slots back to a date row.
func (r *ExperienceDateRepo) RestoreTx(ctx context.Context, tx *sql.Tx, dateID uint64, n int) error {
	res, err := tx.ExecContext(ctx,
		"UPDATE experience_dates SET available_slots = available_slots + ? WHERE id = ?", n, dateID)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrNotFound
	}
	return nil
}

// ShiftSlotsTx adds delta to every date row of an experience after a change
// of max_group_size.  A negative delta that would push any row below zero
// (more guests booked than the new size allows) yields ErrConflict.
func (r *ExperienceDateRepo) ShiftSlotsTx(ctx context.Context, tx *sql.Tx, experienceID uint64, delta int) error {
	if delta == 0 {
		return nil
	}
	if delta < 0 {
		var over int
		err := tx.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM experience_dates WHERE experience_id = ? AND available_slots < ?",
			experienceID, -delta).Scan(&over)
		if err != nil {
			return err
		}
		if over > 0 {
			return fmt.Errorf("%d date(s) already booked beyond the new group size: %w", over, ErrConflict)
		}
	}
	_, err := tx.ExecContext(ctx,
		"UPDATE experience_dates SET available_slots = available_slots + ? WHERE experience_id = ?",
		delta, experienceID)
	if isCheckViolation(err) {
		return ErrConflict
	}
	return err
}

// ListByExperience returns the date rows of an experience between from and
// to (inclusive, either may be nil), earliest first.
func (r *ExperienceDateRepo) ListByExperience(ctx context.Context, experienceID uint64, from, to *time.Time) ([]model.ExperienceDate, error) {
	q := "SELECT " + dateCols + " FROM experience_dates WHERE experience_id = ?"
	args := []any{experienceID}
	if from != nil {
		q += " AND tour_date >= ?"
		args = append(args, from.Format(model.DateLayout))
	}
	if to != nil {
		q += " AND tour_date <= ?"
		args = append(args, to.Format(model.DateLayout))
	}
	q += " ORDER BY tour_date ASC"
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.ExperienceDate{}
	for rows.Next() {
		d, err := scanDate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

func scanDate(s scanner) (*model.ExperienceDate, error) {
	var d model.ExperienceDate
	if err := s.Scan(&d.ID, &d.ExperienceID, &d.TourDate, &d.AvailableSlots); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	d.Date = d.TourDate.Format(model.DateLayout)
	return &d, nil
}
