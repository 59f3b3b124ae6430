package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/iliyamo/tour-experience-booking/internal/model"
)

// ExperienceRepo stores experiences.  Public reads only see active
// experiences whose guide is approved.
type ExperienceRepo struct {
	db *sql.DB
}

func NewExperienceRepo(db *sql.DB) *ExperienceRepo { return &ExperienceRepo{db: db} }

// DB exposes the handle so services can open transactions spanning repos.
func (r *ExperienceRepo) DB() *sql.DB { return r.db }

const experienceCols = `e.id, e.guide_id, u.name, e.title, e.description, e.category, e.location,
	e.price_per_person_cents, e.max_group_size, e.duration_hours, e.itinerary, e.includes,
	e.excludes, e.photos, e.is_active, e.created_at, e.updated_at`

const experienceFrom = ` FROM experiences e JOIN users u ON u.id = e.guide_id`

const publicVisible = `e.is_active = 1 AND u.is_approved = 1`

// ExperienceFilter narrows Search.  Prices are in cents; zero Limit means
// no paging.
type ExperienceFilter struct {
	Category      string
	Location      string
	Search        string
	MinPriceCents *int64
	MaxPriceCents *int64
	Date          *time.Time
	Limit         int
	Offset        int
}

// CreateTx inserts e and fills in its ID.
func (r *ExperienceRepo) CreateTx(ctx context.Context, tx *sql.Tx, e *model.Experience) error {
	photos, err := encodePhotos(e.Photos)
	if err != nil {
		return err
	}
	const q = `INSERT INTO experiences
		(guide_id, title, description, category, location, price_per_person_cents, max_group_size,
		 duration_hours, itinerary, includes, excludes, photos, is_active)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`
	res, err := tx.ExecContext(ctx, q, e.GuideID, e.Title, e.Description, e.Category, e.Location,
		e.PricePerPersonCents, e.MaxGroupSize, nullFloat(e.DurationHours), e.Itinerary,
		e.Includes, e.Excludes, photos, e.IsActive)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	e.ID = uint64(id)
	return nil
}

// UpdateTx overwrites the editable columns of e.
func (r *ExperienceRepo) UpdateTx(ctx context.Context, tx *sql.Tx, e *model.Experience) error {
	photos, err := encodePhotos(e.Photos)
	if err != nil {
		return err
	}
	const q = `UPDATE experiences SET title=?, description=?, category=?, location=?,
		price_per_person_cents=?, max_group_size=?, duration_hours=?, itinerary=?, includes=?,
		excludes=?, photos=?, is_active=? WHERE id=?`
	_, err = tx.ExecContext(ctx, q, e.Title, e.Description, e.Category, e.Location,
		e.PricePerPersonCents, e.MaxGroupSize, nullFloat(e.DurationHours), e.Itinerary,
		e.Includes, e.Excludes, photos, e.IsActive, e.ID)
	return err
}

// GetByID returns an experience regardless of visibility.
func (r *ExperienceRepo) GetByID(ctx context.Context, id uint64) (*model.Experience, error) {
	return getExperience(ctx, r.db, "e.id = ?", id)
}

// GetPublic returns an experience only if travelers may see and book it.
func (r *ExperienceRepo) GetPublic(ctx context.Context, id uint64) (*model.Experience, error) {
	return getExperience(ctx, r.db, "e.id = ? AND "+publicVisible, id)
}

// GetPublicTx is GetPublic inside a transaction.
func (r *ExperienceRepo) GetPublicTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Experience, error) {
	return getExperience(ctx, tx, "e.id = ? AND "+publicVisible, id)
}

// GetForUpdateTx locks the experience row for the rest of tx.
func (r *ExperienceRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Experience, error) {
	row := tx.QueryRowContext(ctx, "SELECT "+experienceCols+experienceFrom+" WHERE e.id = ? FOR UPDATE", id)
	return scanExperience(row)
}

func getExperience(ctx context.Context, q DBTX, cond string, args ...any) (*model.Experience, error) {
	row := q.QueryRowContext(ctx, "SELECT "+experienceCols+experienceFrom+" WHERE "+cond+" LIMIT 1", args...)
	return scanExperience(row)
}

// Search lists publicly visible experiences, newest first, together with
// the number of matches before paging.
func (r *ExperienceRepo) Search(ctx context.Context, f ExperienceFilter) ([]model.Experience, int64, error) {
	where := []string{publicVisible}
	args := []any{}

	if f.Category != "" {
		where = append(where, "e.category = ?")
		args = append(args, f.Category)
	}
	if f.Location != "" {
		where = append(where, "LOWER(e.location) LIKE ?")
		args = append(args, containsPattern(f.Location))
	}
	if f.Search != "" {
		where = append(where, "(LOWER(e.title) LIKE ? OR LOWER(e.description) LIKE ?)")
		term := containsPattern(f.Search)
		args = append(args, term, term)
	}
	if f.MinPriceCents != nil {
		where = append(where, "e.price_per_person_cents >= ?")
		args = append(args, *f.MinPriceCents)
	}
	if f.MaxPriceCents != nil {
		where = append(where, "e.price_per_person_cents <= ?")
		args = append(args, *f.MaxPriceCents)
	}
	if f.Date != nil {
		where = append(where, `EXISTS (SELECT 1 FROM experience_dates d
			WHERE d.experience_id = e.id AND d.tour_date = ? AND d.available_slots > 0)`)
		args = append(args, f.Date.Format(model.DateLayout))
	}
	cond := strings.Join(where, " AND ")

	var total int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*)"+experienceFrom+" WHERE "+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	dataSQL := "SELECT " + experienceCols + experienceFrom + " WHERE " + cond + " ORDER BY e.created_at DESC, e.id DESC"
	dataArgs := append([]any{}, args...)
	if f.Limit > 0 {
		dataSQL += " LIMIT ? OFFSET ?"
		dataArgs = append(dataArgs, f.Limit, f.Offset)
	}
	out, err := queryExperiences(ctx, r.db, dataSQL, dataArgs...)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// ListByGuide returns every experience of a guide, inactive ones included.
func (r *ExperienceRepo) ListByGuide(ctx context.Context, guideID uint64) ([]model.Experience, error) {
	return queryExperiences(ctx, r.db,
		"SELECT "+experienceCols+experienceFrom+" WHERE e.guide_id = ? ORDER BY e.created_at DESC, e.id DESC", guideID)
}

// SetActive toggles moderation state.
func (r *ExperienceRepo) SetActive(ctx context.Context, id uint64, active bool) error {
	_, err := r.db.ExecContext(ctx, "UPDATE experiences SET is_active=? WHERE id=?", active, id)
	return err
}

func queryExperiences(ctx context.Context, q DBTX, query string, args ...any) ([]model.Experience, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Experience{}
	for rows.Next() {
		e, err := scanExperience(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

func scanExperience(s scanner) (*model.Experience, error) {
	var (
		e        model.Experience
		duration sql.NullFloat64
		photos   []byte
	)
	err := s.Scan(&e.ID, &e.GuideID, &e.GuideName, &e.Title, &e.Description, &e.Category,
		&e.Location, &e.PricePerPersonCents, &e.MaxGroupSize, &duration, &e.Itinerary,
		&e.Includes, &e.Excludes, &photos, &e.IsActive, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	if duration.Valid {
		d := duration.Float64
		e.DurationHours = &d
	}
	e.Photos = []string{}
	if len(photos) > 0 {
		if err := json.Unmarshal(photos, &e.Photos); err != nil {
			return nil, err
		}
	}
	e.PricePerPerson = model.FromCents(e.PricePerPersonCents)
	return &e, nil
}

func encodePhotos(p []string) (string, error) {
	if p == nil {
		p = []string{}
	}
	b, err := json.Marshal(p)
	return string(b), err
}

func nullFloat(p *float64) sql.NullFloat64 {
	if p == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *p, Valid: true}
}
