package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/iliyamo/tour-experience-booking/internal/model"
)

type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

const userCols = "id,email,password_hash,name,role,phone,location,bio,is_approved,created_at,updated_at"

// NormalizeEmail lower-cases and trims an address before storage or lookup.
func NormalizeEmail(email string) string { return strings.ToLower(strings.TrimSpace(email)) }

// Create inserts u (PasswordHash already set) and fills in its ID.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	u.Email = NormalizeEmail(u.Email)
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (email,password_hash,name,role,phone,location,bio,is_approved) VALUES (?,?,?,?,?,?,?,?)",
		u.Email, u.PasswordHash, u.Name, u.Role,
		nullString(u.Phone), nullString(u.Location), nullString(u.Bio), u.IsApproved)
	if err != nil {
		if isDuplicate(err) {
			return ErrEmailExists
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	u.ID = uint64(id)
	return nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+userCols+" FROM users WHERE email=? LIMIT 1", NormalizeEmail(email))
	return scanUser(row)
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (*model.User, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+userCols+" FROM users WHERE id=? LIMIT 1", id)
	return scanUser(row)
}

// ListGuides returns guides ordered by signup time.  A nil approved lists
// every guide.
func (r *UserRepo) ListGuides(ctx context.Context, approved *bool) ([]model.User, error) {
	q := "SELECT " + userCols + " FROM users WHERE role=?"
	args := []any{model.RoleGuide}
	if approved != nil {
		q += " AND is_approved=?"
		args = append(args, *approved)
	}
	q += " ORDER BY created_at ASC, id ASC"
	rows, err := r.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

// Approve marks a guide as approved.  Approving an approved guide is a no-op.
func (r *UserRepo) Approve(ctx context.Context, id uint64) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET is_approved=1 WHERE id=? AND role=?", id, model.RoleGuide)
	return err
}

func scanUser(s scanner) (*model.User, error) {
	var (
		u                    model.User
		phone, location, bio sql.NullString
	)
	err := s.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.Role,
		&phone, &location, &bio, &u.IsApproved, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	u.Phone, u.Location, u.Bio = stringPtr(phone), stringPtr(location), stringPtr(bio)
	return &u, nil
}
