package models

import "time"

// Category groups dishes on the menu.
type Category struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"descr" json:"description"`
	SortOrder   int       `db:"sort_order" json:"sort_order"`
	Active      bool      `db:"is_active" json:"is_active"`
	Version     int64     `db:"version" json:"-"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// Dish represents a single menu item.
type Dish struct {
	ID           string    `db:"id" json:"id"`
	CategoryID   string    `db:"category_id" json:"category_id"`
	Name         string    `db:"name" json:"name"`
	Description  string    `db:"descr" json:"description"`
	Price        float64   `db:"price" json:"price"`
	WeightGrams  *int      `db:"weight_grams" json:"weight_grams,omitempty"`
	Available    bool      `db:"is_available" json:"is_available"`
	ImageURL     *string   `db:"image_url" json:"image_url,omitempty"`
	ThumbnailURL *string   `db:"thumbnail_url" json:"thumbnail_url,omitempty"`
	Version      int64     `db:"version" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// CreateCategoryRequest payload for adding a menu category.
type CreateCategoryRequest struct {
	Name        string `json:"name" validate:"required,min=2,max=100"`
	Description string `json:"description" validate:"max=500"`
	SortOrder   int    `json:"sort_order" validate:"gte=0"`
}

// UpdateCategoryRequest payload for modifying a menu category.
type UpdateCategoryRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=2,max=100"`
	Description *string `json:"description" validate:"omitempty,max=500"`
	SortOrder   *int    `json:"sort_order" validate:"omitempty,gte=0"`
}

// UpdateCategoryStatusRequest toggles a category on the public menu.
type UpdateCategoryStatusRequest struct {
	Active *bool `json:"is_active" validate:"required"`
}

// CreateDishRequest payload for adding a dish.
type CreateDishRequest struct {
	CategoryID  string  `json:"category_id" validate:"required,uuid"`
	Name        string  `json:"name" validate:"required,min=2,max=150"`
	Description string  `json:"description" validate:"max=1000"`
	Price       float64 `json:"price" validate:"required,gt=0"`
	WeightGrams *int    `json:"weight_grams" validate:"omitempty,gt=0"`
	Available   *bool   `json:"is_available"`
}

// UpdateDishRequest payload for modifying a dish.
type UpdateDishRequest struct {
	CategoryID  *string  `json:"category_id" validate:"omitempty,uuid"`
	Name        *string  `json:"name" validate:"omitempty,min=2,max=150"`
	Description *string  `json:"description" validate:"omitempty,max=1000"`
	Price       *float64 `json:"price" validate:"omitempty,gt=0"`
	WeightGrams *int     `json:"weight_grams" validate:"omitempty,gt=0"`
	Available   *bool    `json:"is_available"`
}

// DishFilter captures filtering criteria for listing dishes.
type DishFilter struct {
	CategoryID string
	Available  *bool
	Search     string
	Page       int
	PageSize   int
}

// DishList bundles a page of dishes with pagination metadata.
type DishList struct {
	Items      []Dish     `json:"items"`
	Pagination Pagination `json:"pagination"`
}
