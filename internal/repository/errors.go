// Package repository holds the MySQL data access layer and the sentinel
// errors shared by the layers above it.  Handlers translate these values
// into HTTP status codes with errors.Is.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
)

var (
	// ErrNotFound is returned when the requested row does not exist or is
	// not visible to the caller.
	ErrNotFound = errors.New("not found")

	// ErrForbidden is returned when the caller attempts an operation on a
	// resource they do not own.
	ErrForbidden = errors.New("forbidden")

	// ErrConflict is returned when an operation cannot proceed because of
	// the current state of the data.
	ErrConflict = errors.New("conflict")

	ErrEmailExists       = errors.New("email already exists")
	ErrInsufficientSlots = errors.New("not enough available slots for this date")
	ErrInvalidTransition = errors.New("booking status does not allow this change")
	ErrReviewExists      = errors.New("booking already reviewed")
	ErrGuideNotApproved  = errors.New("guide not approved")
)

// DBTX is satisfied by both *sql.DB and *sql.Tx so read helpers can run
// inside or outside a transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

var (
	_ DBTX = (*sql.DB)(nil)
	_ DBTX = (*sql.Tx)(nil)
)

// scanner abstracts *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

const (
	mysqlDuplicateEntry  = 1062
	mysqlCheckConstraint = 3819
)

func mysqlErrno(err error) uint16 {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number
	}
	return 0
}

func isDuplicate(err error) bool {
	return err != nil && mysqlErrno(err) == mysqlDuplicateEntry
}

func isCheckViolation(err error) bool {
	return err != nil && mysqlErrno(err) == mysqlCheckConstraint
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

// containsPattern builds a LIKE argument matching s literally anywhere in
// the column.  MySQL's default LIKE escape character is the backslash.
func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(s)) + "%"
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func nullString(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
