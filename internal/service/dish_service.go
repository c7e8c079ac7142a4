package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	appErrors "github.com/azhur-katering/katering-api/pkg/errors"
	"github.com/azhur-katering/katering-api/pkg/export"

	"github.com/azhur-katering/katering-api/internal/models"
)

type dishRepository interface {
	FindByID(ctx context.Context, id string) (*models.Dish, error)
	List(ctx context.Context, filter models.DishFilter) ([]models.Dish, int, error)
	Create(ctx context.Context, dish *models.Dish) error
	Update(ctx context.Context, dish *models.Dish) error
	UpdateImageURLs(ctx context.Context, id string, imageURL, thumbnailURL *string) error
	Delete(ctx context.Context, id string) error
}

type dishCategoryChecker interface {
	FindByID(ctx context.Context, id string) (*models.Category, error)
}

type dishImageStore interface {
	UploadOriginal(ctx context.Context, dishID, filename, contentType string, body io.Reader) (string, error)
	UploadThumbnail(ctx context.Context, dishID, filename, contentType string, body io.Reader) (string, error)
	DeleteDishImages(ctx context.Context, dishID string) error
}

type dishListCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// DishService provides menu dish use cases including image storage and
// tabular exports.
type DishService struct {
	repo       dishRepository
	categories dishCategoryChecker
	images     dishImageStore
	cache      dishListCache
	csv        *export.CSVExporter
	pdf        *export.PDFExporter
	validator  *validator.Validate
	logger     *zap.Logger
	metrics    *Metrics
	cacheTTL   time.Duration
}

// NewDishService constructs a DishService instance.
func NewDishService(repo dishRepository, categories dishCategoryChecker, images dishImageStore, cache dishListCache, validate *validator.Validate, logger *zap.Logger, metrics *Metrics, cacheTTL time.Duration) *DishService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if cacheTTL <= 0 {
		cacheTTL = 10 * time.Minute
	}
	return &DishService{
		repo:       repo,
		categories: categories,
		images:     images,
		cache:      cache,
		csv:        export.NewCSVExporter(),
		pdf:        export.NewPDFExporter(),
		validator:  validate,
		logger:     logger,
		metrics:    metrics,
		cacheTTL:   cacheTTL,
	}
}

// List returns dishes matching the filter. Unfiltered first pages are
// served from cache when possible.
func (s *DishService) List(ctx context.Context, filter models.DishFilter) (*models.DishList, error) {
	key := listCacheKey(filter)
	if s.cache != nil && key != "" {
		var cached models.DishList
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			return &cached, nil
		} else if !appErrors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("dish cache read failed", zap.Error(err))
		}
	}

	dishes, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list dishes")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	list := &models.DishList{
		Items:      dishes,
		Pagination: models.Pagination{Page: page, PageSize: pageSize, TotalCount: total},
	}

	if s.cache != nil && key != "" {
		if err := s.cache.Set(ctx, key, list, s.cacheTTL); err != nil {
			s.logger.Warn("dish cache write failed", zap.Error(err))
		}
	}
	return list, nil
}

// Get returns a dish by identifier.
func (s *DishService) Get(ctx context.Context, id string) (*models.Dish, error) {
	dish, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrDishNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load dish")
	}
	return dish, nil
}

// Create adds a new dish to an existing category.
func (s *DishService) Create(ctx context.Context, req models.CreateDishRequest) (*models.Dish, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid dish payload")
	}

	if _, err := s.categories.FindByID(ctx, req.CategoryID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrCategoryNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load category")
	}

	available := true
	if req.Available != nil {
		available = *req.Available
	}
	dish := &models.Dish{
		CategoryID:  req.CategoryID,
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		WeightGrams: req.WeightGrams,
		Available:   available,
	}
	if err := s.repo.Create(ctx, dish); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create dish")
	}

	s.invalidate(ctx)
	s.metrics.MenuOpInc("dish", "create")
	return dish, nil
}

// Update modifies a dish using optimistic concurrency.
func (s *DishService) Update(ctx context.Context, id string, req models.UpdateDishRequest) (*models.Dish, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid dish payload")
	}

	dish, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.CategoryID != nil {
		if _, err := s.categories.FindByID(ctx, *req.CategoryID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.ErrCategoryNotFound
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load category")
		}
		dish.CategoryID = *req.CategoryID
	}
	if req.Name != nil {
		dish.Name = *req.Name
	}
	if req.Description != nil {
		dish.Description = *req.Description
	}
	if req.Price != nil {
		dish.Price = *req.Price
	}
	if req.WeightGrams != nil {
		dish.WeightGrams = req.WeightGrams
	}
	if req.Available != nil {
		dish.Available = *req.Available
	}

	if err := s.repo.Update(ctx, dish); err != nil {
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return nil, err
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update dish")
	}

	s.invalidate(ctx)
	s.metrics.MenuOpInc("dish", "update")
	return dish, nil
}

// Delete removes a dish and any stored images.
func (s *DishService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return err
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete dish")
	}

	if s.images != nil {
		if err := s.images.DeleteDishImages(ctx, id); err != nil {
			s.logger.Warn("failed to delete dish images", zap.String("dish_id", id), zap.Error(err))
		}
	}

	s.invalidate(ctx)
	s.metrics.MenuOpInc("dish", "delete")
	return nil
}

// UploadImage stores the original and thumbnail renditions and records
// their public locations on the dish.
func (s *DishService) UploadImage(ctx context.Context, id, filename, contentType string, original, thumbnail io.Reader) (*models.Dish, error) {
	dish, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.images == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "image storage is not configured")
	}

	imageURL, err := s.images.UploadOriginal(ctx, dish.ID, filename, contentType, original)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to upload image")
	}
	thumbnailURL, err := s.images.UploadThumbnail(ctx, dish.ID, filename, contentType, thumbnail)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to upload thumbnail")
	}

	if err := s.repo.UpdateImageURLs(ctx, dish.ID, &imageURL, &thumbnailURL); err != nil {
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return nil, err
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store image urls")
	}

	dish.ImageURL = &imageURL
	dish.ThumbnailURL = &thumbnailURL
	s.invalidate(ctx)
	s.metrics.MenuOpInc("dish", "upload_image")
	return dish, nil
}

// Export renders the full dish list as CSV or PDF.
func (s *DishService) Export(ctx context.Context, format string) ([]byte, string, error) {
	dishes, _, err := s.repo.List(ctx, models.DishFilter{PageSize: 100})
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list dishes")
	}

	table := export.Table{
		Title:   "Menu",
		Columns: []string{"Name", "Category", "Price", "Weight (g)", "Available"},
	}
	for _, dish := range dishes {
		weight := ""
		if dish.WeightGrams != nil {
			weight = strconv.Itoa(*dish.WeightGrams)
		}
		table.AddRow(dish.Name, dish.CategoryID, fmt.Sprintf("%.2f", dish.Price), weight, strconv.FormatBool(dish.Available))
	}

	switch format {
	case "pdf":
		out, err := s.pdf.Render(table)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return out, "application/pdf", nil
	case "", "csv":
		out, err := s.csv.Render(table)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return out, "text/csv", nil
	default:
		return nil, "", appErrors.Clone(appErrors.ErrValidation, "unsupported export format")
	}
}

func (s *DishService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, "menu:*"); err != nil {
		s.logger.Warn("failed to invalidate menu cache", zap.Error(err))
	}
}

// listCacheKey builds a cache key for cacheable list queries. Search
// queries bypass the cache.
func listCacheKey(filter models.DishFilter) string {
	if filter.Search != "" {
		return ""
	}
	available := "all"
	if filter.Available != nil {
		available = strconv.FormatBool(*filter.Available)
	}
	category := filter.CategoryID
	if category == "" {
		category = "all"
	}
	return fmt.Sprintf("menu:dishes:%s:%s:%d:%d", category, available, filter.Page, filter.PageSize)
}
