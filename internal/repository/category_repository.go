package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	apperrors "github.com/azhur-katering/katering-api/pkg/errors"

	"github.com/azhur-katering/katering-api/internal/models"
)

// CategoryRepository provides database access for menu categories.
type CategoryRepository struct {
	db *sqlx.DB
}

// NewCategoryRepository creates a new instance of CategoryRepository.
func NewCategoryRepository(db *sqlx.DB) *CategoryRepository {
	return &CategoryRepository{db: db}
}

const categoryColumns = `id, name, descr, sort_order, is_active, version, created_at, updated_at`

// List returns categories ordered by their sort position. When
// includeInactive is false only categories shown on the public menu are
// returned.
func (r *CategoryRepository) List(ctx context.Context, includeInactive bool) ([]models.Category, error) {
	query := `SELECT ` + categoryColumns + ` FROM categories ORDER BY sort_order ASC, name ASC`
	if !includeInactive {
		query = `SELECT ` + categoryColumns + ` FROM categories WHERE is_active = TRUE ORDER BY sort_order ASC, name ASC`
	}
	var categories []models.Category
	if err := r.db.SelectContext(ctx, &categories, query); err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return categories, nil
}

// FindByID returns a category by identifier.
func (r *CategoryRepository) FindByID(ctx context.Context, id string) (*models.Category, error) {
	const query = `SELECT ` + categoryColumns + ` FROM categories WHERE id = $1 LIMIT 1`
	var category models.Category
	if err := r.db.GetContext(ctx, &category, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find category by id: %w", err)
	}
	return &category, nil
}

// Create inserts a new category, mapping name collisions onto the domain
// error.
func (r *CategoryRepository) Create(ctx context.Context, category *models.Category) error {
	if category.ID == "" {
		category.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	category.CreatedAt = now
	category.UpdatedAt = now

	const query = `INSERT INTO categories (id, name, descr, sort_order, is_active, version, created_at, updated_at) VALUES (:id, :name, :descr, :sort_order, :is_active, :version, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, category); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == pgerrcode.UniqueViolation {
			return apperrors.ErrCategoryExists
		}
		return fmt.Errorf("create category: %w", err)
	}
	return nil
}

// Update saves mutable fields guarded by the version counter.
func (r *CategoryRepository) Update(ctx context.Context, category *models.Category) error {
	const query = `UPDATE categories SET name = $2, descr = $3, sort_order = $4, is_active = $5, version = version + 1, updated_at = $6 WHERE id = $1 AND version = $7`
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, query, category.ID, category.Name, category.Description, category.SortOrder, category.Active, now, category.Version)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == pgerrcode.UniqueViolation {
			return apperrors.ErrCategoryExists
		}
		return fmt.Errorf("update category: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update category rows: %w", err)
	}
	if rows == 0 {
		return apperrors.ErrConflict
	}
	category.Version++
	category.UpdatedAt = now
	return nil
}

// SetActive toggles a category's visibility on the public menu.
func (r *CategoryRepository) SetActive(ctx context.Context, id string, active bool) error {
	const query = `UPDATE categories SET is_active = $2, version = version + 1, updated_at = $3 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, active, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set category status: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set category status rows: %w", err)
	}
	if rows == 0 {
		return apperrors.ErrCategoryNotFound
	}
	return nil
}

// Delete removes a category. Categories that still hold dishes are
// rejected.
func (r *CategoryRepository) Delete(ctx context.Context, id string) error {
	const countQuery = `SELECT COUNT(*) FROM dishes WHERE category_id = $1`
	var count int
	if err := r.db.GetContext(ctx, &count, countQuery, id); err != nil {
		return fmt.Errorf("count category dishes: %w", err)
	}
	if count > 0 {
		return apperrors.ErrCategoryHasDishes
	}

	const query = `DELETE FROM categories WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete category rows: %w", err)
	}
	if rows == 0 {
		return apperrors.ErrCategoryNotFound
	}
	return nil
}
