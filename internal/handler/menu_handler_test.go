package handler

import (
	"bytes"
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/azhur-katering/katering-api/pkg/errors"

	"github.com/azhur-katering/katering-api/internal/models"
	"github.com/azhur-katering/katering-api/internal/service"
)

type stubCategoryRepo struct {
	categories map[string]*models.Category
	deleteErr  error
}

func (m *stubCategoryRepo) List(ctx context.Context, includeInactive bool) ([]models.Category, error) {
	out := make([]models.Category, 0, len(m.categories))
	for _, c := range m.categories {
		if !includeInactive && !c.Active {
			continue
		}
		out = append(out, *c)
	}
	return out, nil
}

func (m *stubCategoryRepo) FindByID(ctx context.Context, id string) (*models.Category, error) {
	c, ok := m.categories[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return c, nil
}

func (m *stubCategoryRepo) Create(ctx context.Context, category *models.Category) error {
	category.ID = "cat-new"
	m.categories[category.ID] = category
	return nil
}

func (m *stubCategoryRepo) Update(ctx context.Context, category *models.Category) error {
	m.categories[category.ID] = category
	return nil
}

func (m *stubCategoryRepo) SetActive(ctx context.Context, id string, active bool) error {
	c, ok := m.categories[id]
	if !ok {
		return appErrors.ErrCategoryNotFound
	}
	c.Active = active
	return nil
}

func (m *stubCategoryRepo) Delete(ctx context.Context, id string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	delete(m.categories, id)
	return nil
}

type stubDishRepo struct {
	dishes     map[string]*models.Dish
	lastFilter models.DishFilter
}

func (m *stubDishRepo) FindByID(ctx context.Context, id string) (*models.Dish, error) {
	d, ok := m.dishes[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return d, nil
}

func (m *stubDishRepo) List(ctx context.Context, filter models.DishFilter) ([]models.Dish, int, error) {
	m.lastFilter = filter
	out := make([]models.Dish, 0, len(m.dishes))
	for _, d := range m.dishes {
		out = append(out, *d)
	}
	return out, len(out), nil
}

func (m *stubDishRepo) Create(ctx context.Context, dish *models.Dish) error {
	dish.ID = "dish-new"
	m.dishes[dish.ID] = dish
	return nil
}

func (m *stubDishRepo) Update(ctx context.Context, dish *models.Dish) error {
	m.dishes[dish.ID] = dish
	return nil
}

func (m *stubDishRepo) UpdateImageURLs(ctx context.Context, id string, imageURL, thumbnailURL *string) error {
	return nil
}

func (m *stubDishRepo) Delete(ctx context.Context, id string) error {
	delete(m.dishes, id)
	return nil
}

type menuEnv struct {
	router     *gin.Engine
	categories *stubCategoryRepo
	dishes     *stubDishRepo
}

func newMenuEnv(t *testing.T) *menuEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	categories := &stubCategoryRepo{categories: make(map[string]*models.Category)}
	dishes := &stubDishRepo{dishes: make(map[string]*models.Dish)}

	categorySvc := service.NewCategoryService(categories, nil, nil, nil, nil)
	dishSvc := service.NewDishService(dishes, categories, nil, nil, nil, nil, nil, 0)

	ch := NewCategoryHandler(categorySvc)
	dh := NewDishHandler(dishSvc, 0)

	r := gin.New()
	r.GET("/categories", ch.List)
	r.GET("/categories/all", ch.ListAll)
	r.POST("/categories", ch.Create)
	r.PATCH("/categories/:id/status", ch.UpdateStatus)
	r.DELETE("/categories/:id", ch.Delete)
	r.GET("/dishes", dh.List)
	r.GET("/dishes/available", dh.Available)
	r.GET("/dishes/search", dh.Search)
	r.GET("/dishes/export", dh.Export)
	r.GET("/dishes/:id", dh.Get)
	r.POST("/dishes", dh.Create)

	return &menuEnv{router: r, categories: categories, dishes: dishes}
}

func (e *menuEnv) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func TestCreateCategoryRejectsBadPayload(t *testing.T) {
	env := newMenuEnv(t)

	w := env.do(http.MethodPost, "/categories", `{"name":`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", decodeEnvelope(t, w).ErrorCode)

	// well formed but too short
	w = env.do(http.MethodPost, "/categories", `{"name":"x"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateDishUnknownCategory(t *testing.T) {
	env := newMenuEnv(t)

	w := env.do(http.MethodPost, "/dishes", `{"category_id":"7f0c2a4e-9f1b-4c4e-8a2d-1b3c5d7e9f01","name":"Borscht","price":12.5}`)
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "CATEGORY_NOT_FOUND", decodeEnvelope(t, w).ErrorCode)
}

func TestCreateDishSucceeds(t *testing.T) {
	env := newMenuEnv(t)
	env.categories.categories["7f0c2a4e-9f1b-4c4e-8a2d-1b3c5d7e9f01"] = &models.Category{
		ID:   "7f0c2a4e-9f1b-4c4e-8a2d-1b3c5d7e9f01",
		Name: "Soups",
	}

	w := env.do(http.MethodPost, "/dishes", `{"category_id":"7f0c2a4e-9f1b-4c4e-8a2d-1b3c5d7e9f01","name":"Borscht","price":12.5}`)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), "Borscht")
	assert.Contains(t, w.Body.String(), `"is_available":true`)
}

func TestDeleteCategoryWithDishesConflict(t *testing.T) {
	env := newMenuEnv(t)
	env.categories.deleteErr = appErrors.ErrCategoryHasDishes

	w := env.do(http.MethodDelete, "/categories/cat-1", "")
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "CATEGORY_HAS_DISHES", decodeEnvelope(t, w).ErrorCode)
}

func TestListDishesParsesQuery(t *testing.T) {
	env := newMenuEnv(t)
	env.dishes.dishes["d1"] = &models.Dish{ID: "d1", Name: "Olivier", Price: 8, Available: true}

	w := env.do(http.MethodGet, "/dishes?category_id=cat-1&available=true&page=2&page_size=5", "")
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, "cat-1", env.dishes.lastFilter.CategoryID)
	require.NotNil(t, env.dishes.lastFilter.Available)
	assert.True(t, *env.dishes.lastFilter.Available)
	assert.Equal(t, 2, env.dishes.lastFilter.Page)
	assert.Equal(t, 5, env.dishes.lastFilter.PageSize)

	w = env.do(http.MethodGet, "/dishes?available=maybe", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCategoryStatusToggle(t *testing.T) {
	env := newMenuEnv(t)
	env.categories.categories["c1"] = &models.Category{ID: "c1", Name: "Soups", Active: true}
	env.categories.categories["c2"] = &models.Category{ID: "c2", Name: "Seasonal", Active: true}

	w := env.do(http.MethodPatch, "/categories/c2/status", `{"is_active":false}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"is_active":false`)

	public := env.do(http.MethodGet, "/categories", "")
	require.Equal(t, http.StatusOK, public.Code)
	assert.NotContains(t, public.Body.String(), "Seasonal")

	all := env.do(http.MethodGet, "/categories/all", "")
	require.Equal(t, http.StatusOK, all.Code)
	assert.Contains(t, all.Body.String(), "Seasonal")
}

func TestAvailableDishesFilter(t *testing.T) {
	env := newMenuEnv(t)
	env.dishes.dishes["d1"] = &models.Dish{ID: "d1", Name: "Olivier", Available: true}

	w := env.do(http.MethodGet, "/dishes/available", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, env.dishes.lastFilter.Available)
	assert.True(t, *env.dishes.lastFilter.Available)
}

func TestSearchDishesRequiresTerm(t *testing.T) {
	env := newMenuEnv(t)

	w := env.do(http.MethodGet, "/dishes/search", "")
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodGet, "/dishes/search?q=borscht", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "borscht", env.dishes.lastFilter.Search)
}

func TestGetDishNotFound(t *testing.T) {
	env := newMenuEnv(t)

	w := env.do(http.MethodGet, "/dishes/missing", "")
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "DISH_NOT_FOUND", decodeEnvelope(t, w).ErrorCode)
}

func TestExportCSV(t *testing.T) {
	env := newMenuEnv(t)
	env.dishes.dishes["d1"] = &models.Dish{ID: "d1", Name: "Olivier", Price: 8.5, Available: true}

	w := env.do(http.MethodGet, "/dishes/export", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Equal(t, "attachment; filename=menu.csv", w.Header().Get("Content-Disposition"))

	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "Name,Category,Price,Weight (g),Available", strings.TrimSpace(lines[0]))
	assert.Contains(t, lines[1], "Olivier")
	assert.Contains(t, lines[1], "8.50")
}

func TestExportUnknownFormat(t *testing.T) {
	env := newMenuEnv(t)

	w := env.do(http.MethodGet, "/dishes/export?format=xlsx", "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", decodeEnvelope(t, w).ErrorCode)
}
