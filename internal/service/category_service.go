package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	appErrors "github.com/azhur-katering/katering-api/pkg/errors"

	"github.com/azhur-katering/katering-api/internal/models"
)

type categoryRepository interface {
	List(ctx context.Context, includeInactive bool) ([]models.Category, error)
	FindByID(ctx context.Context, id string) (*models.Category, error)
	Create(ctx context.Context, category *models.Category) error
	Update(ctx context.Context, category *models.Category) error
	SetActive(ctx context.Context, id string, active bool) error
	Delete(ctx context.Context, id string) error
}

type menuCache interface {
	DeleteByPattern(ctx context.Context, pattern string) error
}

// CategoryService provides menu category use cases.
type CategoryService struct {
	repo      categoryRepository
	cache     menuCache
	validator *validator.Validate
	logger    *zap.Logger
	metrics   *Metrics
}

// NewCategoryService constructs a CategoryService instance.
func NewCategoryService(repo categoryRepository, cache menuCache, validate *validator.Validate, logger *zap.Logger, metrics *Metrics) *CategoryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &CategoryService{repo: repo, cache: cache, validator: validate, logger: logger, metrics: metrics}
}

// List returns categories in display order. includeInactive is reserved
// for the admin surface; the public menu only shows active categories.
func (s *CategoryService) List(ctx context.Context, includeInactive bool) ([]models.Category, error) {
	categories, err := s.repo.List(ctx, includeInactive)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list categories")
	}
	return categories, nil
}

// Get returns a category by identifier.
func (s *CategoryService) Get(ctx context.Context, id string) (*models.Category, error) {
	category, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrCategoryNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load category")
	}
	return category, nil
}

// Create adds a new category.
func (s *CategoryService) Create(ctx context.Context, req models.CreateCategoryRequest) (*models.Category, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid category payload")
	}

	category := &models.Category{
		Name:        req.Name,
		Description: req.Description,
		SortOrder:   req.SortOrder,
		Active:      true,
	}
	if err := s.repo.Create(ctx, category); err != nil {
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return nil, err
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create category")
	}

	s.invalidate(ctx)
	s.metrics.MenuOpInc("category", "create")
	return category, nil
}

// Update modifies a category using optimistic concurrency.
func (s *CategoryService) Update(ctx context.Context, id string, req models.UpdateCategoryRequest) (*models.Category, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid category payload")
	}

	category, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		category.Name = *req.Name
	}
	if req.Description != nil {
		category.Description = *req.Description
	}
	if req.SortOrder != nil {
		category.SortOrder = *req.SortOrder
	}

	if err := s.repo.Update(ctx, category); err != nil {
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return nil, err
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update category")
	}

	s.invalidate(ctx)
	s.metrics.MenuOpInc("category", "update")
	return category, nil
}

// SetStatus toggles a category's presence on the public menu.
func (s *CategoryService) SetStatus(ctx context.Context, id string, req models.UpdateCategoryStatusRequest) (*models.Category, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid status payload")
	}

	if err := s.repo.SetActive(ctx, id, *req.Active); err != nil {
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return nil, err
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update category status")
	}

	s.invalidate(ctx)
	s.metrics.MenuOpInc("category", "status")
	return s.Get(ctx, id)
}

// Delete removes an empty category.
func (s *CategoryService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return err
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete category")
	}

	s.invalidate(ctx)
	s.metrics.MenuOpInc("category", "delete")
	return nil
}

func (s *CategoryService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, "menu:*"); err != nil {
		s.logger.Warn("failed to invalidate menu cache", zap.Error(err))
	}
}
