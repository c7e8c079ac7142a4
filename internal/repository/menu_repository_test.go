package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/azhur-katering/katering-api/pkg/errors"

	"github.com/azhur-katering/katering-api/internal/models"
)

func TestDeleteCategoryWithDishes(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCategoryRepository(db)

	countRows := sqlmock.NewRows([]string{"count"}).AddRow(3)
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM dishes WHERE category_id").
		WithArgs("c1").
		WillReturnRows(countRows)

	err := repo.Delete(context.Background(), "c1")
	assert.True(t, apperrors.Is(err, apperrors.ErrCategoryHasDishes))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateCategoryConflict(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCategoryRepository(db)

	mock.ExpectExec("UPDATE categories SET name").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Update(context.Background(), &models.Category{ID: "c1", Name: "Soups", Version: 1})
	assert.True(t, apperrors.Is(err, apperrors.ErrConflict))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetCategoryActiveUnknown(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCategoryRepository(db)

	mock.ExpectExec("UPDATE categories SET is_active").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.SetActive(context.Background(), "missing", false)
	assert.True(t, apperrors.Is(err, apperrors.ErrCategoryNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListCategoriesPublicOnly(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCategoryRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "name", "descr", "sort_order", "is_active", "version", "created_at", "updated_at"}).
		AddRow("c1", "Soups", "", 1, true, 0, now, now)
	mock.ExpectQuery("SELECT (.+) FROM categories WHERE is_active = TRUE").
		WillReturnRows(rows)

	categories, err := repo.List(context.Background(), false)
	require.NoError(t, err)
	require.Len(t, categories, 1)
	assert.True(t, categories[0].Active)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListDishesByCategory(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDishRepository(db)

	now := time.Now()
	listRows := sqlmock.NewRows([]string{"id", "category_id", "name", "descr", "price", "weight_grams", "is_available", "image_url", "thumbnail_url", "version", "created_at", "updated_at"}).
		AddRow("d1", "c1", "Borscht", "beet soup", 350.0, 400, true, nil, nil, 0, now, now)
	mock.ExpectQuery("SELECT (.+) FROM dishes WHERE 1=1 AND category_id = \\$1").
		WithArgs("c1").
		WillReturnRows(listRows)

	countRows := sqlmock.NewRows([]string{"count"}).AddRow(1)
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM dishes WHERE 1=1 AND category_id = \\$1").
		WithArgs("c1").
		WillReturnRows(countRows)

	dishes, total, err := repo.List(context.Background(), models.DishFilter{CategoryID: "c1"})
	require.NoError(t, err)
	assert.Len(t, dishes, 1)
	assert.Equal(t, 1, total)
	assert.Equal(t, "Borscht", dishes[0].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateDishConflict(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDishRepository(db)

	mock.ExpectExec("UPDATE dishes SET category_id").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Update(context.Background(), &models.Dish{ID: "d1", CategoryID: "c1", Name: "Borscht", Price: 350, Version: 4})
	assert.True(t, apperrors.Is(err, apperrors.ErrConflict))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateAuthLog(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAuthLogRepository(db)

	mock.ExpectExec("INSERT INTO auth_logs").
		WillReturnResult(sqlmock.NewResult(1, 1))

	userID := "u1"
	err := repo.Create(context.Background(), &models.AuthLog{
		UserID:    &userID,
		Email:     "ivan@example.com",
		Action:    models.AuthActionLogin,
		Success:   true,
		IPAddress: "10.0.0.1",
		UserAgent: "test-agent",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
