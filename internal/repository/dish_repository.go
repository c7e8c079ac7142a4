package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	apperrors "github.com/azhur-katering/katering-api/pkg/errors"

	"github.com/azhur-katering/katering-api/internal/models"
)

const dishColumns = `id, category_id, name, descr, price, weight_grams, is_available, image_url, thumbnail_url, version, created_at, updated_at`

// DishRepository provides database access for menu dishes.
type DishRepository struct {
	db *sqlx.DB
}

// NewDishRepository creates a new instance of DishRepository.
func NewDishRepository(db *sqlx.DB) *DishRepository {
	return &DishRepository{db: db}
}

// FindByID returns a dish by identifier.
func (r *DishRepository) FindByID(ctx context.Context, id string) (*models.Dish, error) {
	query := fmt.Sprintf(`SELECT %s FROM dishes WHERE id = $1 LIMIT 1`, dishColumns)
	var dish models.Dish
	if err := r.db.GetContext(ctx, &dish, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find dish by id: %w", err)
	}
	return &dish, nil
}

// List returns dishes matching the filter with total count.
func (r *DishRepository) List(ctx context.Context, filter models.DishFilter) ([]models.Dish, int, error) {
	baseQuery := `FROM dishes WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.CategoryID != "" {
		conditions = append(conditions, fmt.Sprintf("category_id = $%d", len(args)+1))
		args = append(args, filter.CategoryID)
	}
	if filter.Available != nil {
		conditions = append(conditions, fmt.Sprintf("is_available = $%d", len(args)+1))
		args = append(args, *filter.Available)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(name) LIKE $%d OR LOWER(descr) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY name ASC LIMIT %d OFFSET %d", dishColumns, baseQuery, pageSize, offset)

	var dishes []models.Dish
	if err := r.db.SelectContext(ctx, &dishes, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list dishes: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count dishes: %w", err)
	}

	return dishes, total, nil
}

// Create inserts a new dish.
func (r *DishRepository) Create(ctx context.Context, dish *models.Dish) error {
	if dish.ID == "" {
		dish.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	dish.CreatedAt = now
	dish.UpdatedAt = now

	const query = `INSERT INTO dishes (id, category_id, name, descr, price, weight_grams, is_available, image_url, thumbnail_url, version, created_at, updated_at) VALUES (:id, :category_id, :name, :descr, :price, :weight_grams, :is_available, :image_url, :thumbnail_url, :version, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, dish); err != nil {
		return fmt.Errorf("create dish: %w", err)
	}
	return nil
}

// Update saves mutable fields guarded by the version counter.
func (r *DishRepository) Update(ctx context.Context, dish *models.Dish) error {
	const query = `UPDATE dishes SET category_id = $2, name = $3, descr = $4, price = $5, weight_grams = $6, is_available = $7, version = version + 1, updated_at = $8 WHERE id = $1 AND version = $9`
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, query, dish.ID, dish.CategoryID, dish.Name, dish.Description, dish.Price, dish.WeightGrams, dish.Available, now, dish.Version)
	if err != nil {
		return fmt.Errorf("update dish: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update dish rows: %w", err)
	}
	if rows == 0 {
		return apperrors.ErrConflict
	}
	dish.Version++
	dish.UpdatedAt = now
	return nil
}

// UpdateImageURLs stores the uploaded image locations.
func (r *DishRepository) UpdateImageURLs(ctx context.Context, id string, imageURL, thumbnailURL *string) error {
	const query = `UPDATE dishes SET image_url = $2, thumbnail_url = $3, updated_at = $4 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, imageURL, thumbnailURL, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update dish images: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update dish images rows: %w", err)
	}
	if rows == 0 {
		return apperrors.ErrDishNotFound
	}
	return nil
}

// Delete removes a dish.
func (r *DishRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM dishes WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete dish: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete dish rows: %w", err)
	}
	if rows == 0 {
		return apperrors.ErrDishNotFound
	}
	return nil
}
