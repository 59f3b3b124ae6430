package repository

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/tour-experience-booking/internal/model"
)

func TestExperienceRepo_SearchAppliesFilters(t *testing.T) {
	db, mock := setupMockDB(t)
	minPrice, maxPrice := int64(1000), int64(9000)
	day := tourDay

	mock.ExpectQuery(q("SELECT COUNT(*) FROM experiences e JOIN users u ON u.id = e.guide_id WHERE e.is_active = 1 AND u.is_approved = 1 AND e.category = ? AND LOWER(e.location) LIKE ?")).
		WithArgs("safari", "%arusha%", "%sunset%", "%sunset%", minPrice, maxPrice, "2030-05-10").
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(3))
	mock.ExpectQuery(q("ORDER BY e.created_at DESC, e.id DESC LIMIT ? OFFSET ?")).
		WithArgs("safari", "%arusha%", "%sunset%", "%sunset%", minPrice, maxPrice, "2030-05-10", 2, 2).
		WillReturnRows(experienceRow(sqlmock.NewRows(experienceColumns), 8))

	out, total, err := NewExperienceRepo(db).Search(context.Background(), ExperienceFilter{
		Category: "safari", Location: "Arusha", Search: "Sunset",
		MinPriceCents: &minPrice, MaxPriceCents: &maxPrice, Date: &day,
		Limit: 2, Offset: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, out, 1)
	assert.Equal(t, []string{"https://img/1.jpg"}, out[0].Photos)
	assert.InDelta(t, 50.0, out[0].PricePerPerson, 0.001)
	require.NotNil(t, out[0].DurationHours)
	assert.InDelta(t, 6.5, *out[0].DurationHours, 0.001)
}

func TestExperienceRepo_SearchEscapesWildcards(t *testing.T) {
	db, mock := setupMockDB(t)
	loc := `%\_arusha\\%`
	term := `%100\%\_off%`

	mock.ExpectQuery(q("SELECT COUNT(*)")).
		WithArgs(loc, term, term).
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(0))
	mock.ExpectQuery(q("ORDER BY e.created_at DESC, e.id DESC")).
		WithArgs(loc, term, term).
		WillReturnRows(sqlmock.NewRows(experienceColumns))

	out, total, err := NewExperienceRepo(db).Search(context.Background(), ExperienceFilter{
		Location: `_Arusha\`, Search: "100%_OFF",
	})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, out)
}

func TestContainsPattern(t *testing.T) {
	assert.Equal(t, "%arusha%", containsPattern("Arusha"))
	assert.Equal(t, `%50\%%`, containsPattern("50%"))
	assert.Equal(t, `%a\_b%`, containsPattern("a_b"))
	assert.Equal(t, `%c:\\tmp%`, containsPattern(`C:\tmp`))
}

func TestExperienceRepo_SearchDateRequiresFreeSlots(t *testing.T) {
	db, mock := setupMockDB(t)
	day := tourDay
	mock.ExpectQuery(q("d.tour_date = ? AND d.available_slots > 0")).
		WithArgs("2030-05-10").
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(0))
	mock.ExpectQuery(q("ORDER BY e.created_at DESC")).
		WithArgs("2030-05-10").
		WillReturnRows(sqlmock.NewRows(experienceColumns))

	out, total, err := NewExperienceRepo(db).Search(context.Background(), ExperienceFilter{Date: &day})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, out)
}

func TestExperienceRepo_GetPublicHidesInactive(t *testing.T) {
	db, mock := setupMockDB(t)
	mock.ExpectQuery(q("WHERE e.id = ? AND e.is_active = 1 AND u.is_approved = 1")).
		WithArgs(8).
		WillReturnRows(sqlmock.NewRows(experienceColumns))

	_, err := NewExperienceRepo(db).GetPublic(context.Background(), 8)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestExperienceRepo_CreateTxEncodesPhotos(t *testing.T) {
	db, mock := setupMockDB(t)
	tx := beginTx(t, db, mock)
	mock.ExpectExec(q("INSERT INTO experiences")).
		WithArgs(5, "Food walk", "Street food", "food", "Zanzibar", 2500, 8, nil, "", "", "", "[]", true).
		WillReturnResult(sqlmock.NewResult(12, 1))

	e := &model.Experience{GuideID: 5, Title: "Food walk", Description: "Street food", Category: "food",
		Location: "Zanzibar", PricePerPersonCents: 2500, MaxGroupSize: 8, IsActive: true}
	require.NoError(t, NewExperienceRepo(db).CreateTx(context.Background(), tx, e))
	assert.Equal(t, uint64(12), e.ID)
}
